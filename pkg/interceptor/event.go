package interceptor

import "github.com/arzzra/rtcengine/pkg/rtcbase"

// EventKind — события, которые интерсептору имеет смысл видеть; отдельный,
// более узкий набор, чем pipeline.EventKind — цепочка интерсепторов работает
// только с медиа-уровнем, ей не нужны ICE/DTLS/SCTP события.
type EventKind int

const (
	EventStreamAdded EventKind = iota
	EventStreamRemoved
)

type Event struct {
	Kind EventKind
	SSRC rtcbase.SSRC
	Mid  rtcbase.Mid
}
