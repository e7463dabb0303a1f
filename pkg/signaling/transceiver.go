package signaling

import (
	"fmt"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// Encoding — один слой симулкаста внутри одного sender/receiver; несколько
// Encoding на одном Sender моделируют симулкаст (spec.md §3 Sender).
type Encoding struct {
	SSRC    rtcbase.SSRC
	RtxSSRC rtcbase.SSRC
	FecSSRC rtcbase.SSRC
	Rid     rtcbase.Rid
	Codec   string
}

// TrackInit — данные, достаточные для заводки трансивера/sender; захват
// и кодирование медиа — явный non-goal (host-side collaborator).
type TrackInit struct {
	Kind  string // "audio" | "video"
	Codec string
}

// Sender — см. spec.md §3. id присваивается при создании и не меняется.
type Sender struct {
	ID        string
	Track     *TrackInit
	Encodings []Encoding
}

// Receiver — см. spec.md §3.
type Receiver struct {
	ID        string
	Kind      string
	Encodings []Encoding
}

// Transceiver владеет одним Receiver и не более чем одним Sender:
// трансивер, созданный AddTransceiverFromKind с направлением recvonly или
// inactive либо по m-секции удалённого offer, не имеет Sender, пока
// AddTrack не привяжет к нему трек. Mid назначается в CreateOffer или
// берётся из m-секции удалённого offer в CreateAnswer, до этого пуст.
type Transceiver struct {
	ID               string
	Mid              rtcbase.Mid
	Direction        rtcbase.Direction
	CurrentDirection rtcbase.Direction
	Sender           *Sender
	Receiver         *Receiver
	CodecPreferences []string

	stopped bool
}

func (t *Transceiver) Stop() {
	t.stopped = true
	t.Direction = rtcbase.DirectionStopped
}

func (t *Transceiver) Stopped() bool { return t.stopped }

// idGenerator — монотонный счётчик, тот же паттерн, что
// pkg/dialog/tx.go использует для tx id: простой инкремент вместо
// UUID, так как идентификаторы видны только внутри процесса host-а.
type idGenerator struct {
	prefix string
	next   int
}

func (g *idGenerator) nextID() string {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}
