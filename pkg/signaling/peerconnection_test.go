package signaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
	"github.com/arzzra/rtcengine/pkg/stats"
)

func newTestPC(t *testing.T, controlling bool) *PeerConnection {
	t.Helper()
	cfg := DefaultConfiguration()
	cfg.Controlling = controlling
	pc, err := NewPeerConnection(cfg, nil)
	require.NoError(t, err)
	return pc
}

func TestSignalingStateStartsStable(t *testing.T) {
	pc := newTestPC(t, true)
	assert.Equal(t, rtcbase.SignalingStable, pc.SignalingState())
}

// TestOfferAnswerRoundTrip покрывает свойство 9 спецификации: полный
// обмен offer/answer возвращает оркестратор в stable с currentLocal/
// currentRemote выставленными.
func TestOfferAnswerRoundTrip(t *testing.T) {
	offerer := newTestPC(t, true)
	answerer := newTestPC(t, false)

	_, err := offerer.AddTransceiverFromKind("audio", rtcbase.DirectionSendRecv)
	require.NoError(t, err)

	offer, err := offerer.CreateOffer(CreateOfferOptions{})
	require.NoError(t, err)
	assert.Equal(t, SdpOffer, offer.Type)

	require.NoError(t, offerer.SetLocalDescription(offer))
	assert.Equal(t, rtcbase.SignalingHaveLocalOffer, offerer.SignalingState())

	require.NoError(t, answerer.SetRemoteDescription(offer))
	assert.Equal(t, rtcbase.SignalingHaveRemoteOffer, answerer.SignalingState())

	answer, err := answerer.CreateAnswer(CreateAnswerOptions{})
	require.NoError(t, err)
	assert.Equal(t, SdpAnswer, answer.Type)

	require.NoError(t, answerer.SetLocalDescription(answer))
	assert.Equal(t, rtcbase.SignalingStable, answerer.SignalingState())

	require.NoError(t, offerer.SetRemoteDescription(answer))
	assert.Equal(t, rtcbase.SignalingStable, offerer.SignalingState())

	assert.NotNil(t, offerer.CurrentLocalDescription())
	assert.NotNil(t, offerer.CurrentRemoteDescription())
	assert.Nil(t, offerer.PendingLocalDescription())
}

// TestRollbackFromHaveLocalOffer покрывает сценарий S5 спецификации:
// откат локального offer возвращает offerer в stable, откат удалённого
// offer возвращает answerer в stable, а откат из stable в любом
// направлении отвергается.
func TestRollbackFromHaveLocalOffer(t *testing.T) {
	offerer := newTestPC(t, true)
	answerer := newTestPC(t, false)

	offer, err := offerer.CreateOffer(CreateOfferOptions{})
	require.NoError(t, err)
	require.NoError(t, offerer.SetLocalDescription(offer))
	require.NoError(t, answerer.SetRemoteDescription(offer))

	require.NoError(t, offerer.SetLocalDescription(SessionDescription{Type: SdpRollback}))
	assert.Equal(t, rtcbase.SignalingStable, offerer.SignalingState())

	err = offerer.SetRemoteDescription(SessionDescription{Type: SdpRollback})
	assert.Error(t, err, "remote rollback is invalid once the fsm is already stable")

	require.NoError(t, answerer.SetRemoteDescription(SessionDescription{Type: SdpRollback}))
	assert.Equal(t, rtcbase.SignalingStable, answerer.SignalingState())

	err = answerer.SetLocalDescription(SessionDescription{Type: SdpRollback})
	assert.Error(t, err, "local rollback is invalid from stable")
}

func TestNegotiationNeededCoalesces(t *testing.T) {
	pc := newTestPC(t, true)

	_, err := pc.AddTransceiverFromKind("audio", rtcbase.DirectionSendOnly)
	require.NoError(t, err)
	_, err = pc.AddTransceiverFromKind("video", rtcbase.DirectionSendOnly)
	require.NoError(t, err)

	count := 0
	for {
		evt, ok := pc.PollEvent()
		if !ok {
			break
		}
		if evt.Kind == EventNegotiationNeeded {
			count++
		}
	}
	assert.Equal(t, 1, count, "two mutations in one host turn must coalesce to one event")

	offer, err := pc.CreateOffer(CreateOfferOptions{})
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	assert.False(t, pc.negotiationNeeded, "setting the offer consumes the pending flag")
}

func TestAddTrackReusesRecvOnlySenderlessTransceiver(t *testing.T) {
	pc := newTestPC(t, true)
	_, err := pc.AddTransceiverFromKind("audio", rtcbase.DirectionRecvOnly)
	require.NoError(t, err)

	senderID, err := pc.AddTrack(TrackInit{Kind: "audio", Codec: "opus"})
	require.NoError(t, err)
	assert.NotEmpty(t, senderID)
	assert.Len(t, pc.GetTransceivers(), 1, "must reuse the existing recvonly transceiver, not add a second one")
	assert.Equal(t, rtcbase.DirectionSendRecv, pc.GetTransceivers()[0].Direction)
}

func TestCreateDataChannelAllocatesStreamIDParity(t *testing.T) {
	offerer := newTestPC(t, true)
	answerer := newTestPC(t, false)

	h1, err := offerer.CreateDataChannel("chat", DefaultDataChannelInit())
	require.NoError(t, err)
	assert.Equal(t, rtcbase.DataChannelId(0), h1.ID, "controlling side allocates even ids starting at 0")

	h2, err := offerer.CreateDataChannel("chat2", DefaultDataChannelInit())
	require.NoError(t, err)
	assert.Equal(t, rtcbase.DataChannelId(2), h2.ID)

	h3, err := answerer.CreateDataChannel("chat", DefaultDataChannelInit())
	require.NoError(t, err)
	assert.Equal(t, rtcbase.DataChannelId(1), h3.ID, "answering side allocates odd ids starting at 1")
}

func TestSendDataRejectsUnopenedChannel(t *testing.T) {
	pc := newTestPC(t, true)
	init := DefaultDataChannelInit()
	handle, err := pc.CreateDataChannel("chat", init)
	require.NoError(t, err)
	assert.Equal(t, rtcbase.DataChannelConnecting, handle.State)

	err = pc.SendData(handle.ID, []byte("hi"), false)
	assert.Error(t, err, "cannot send before the channel reports open")
}

func TestGetStatsReflectsDataChannelBinding(t *testing.T) {
	pc := newTestPC(t, true)
	handle, err := pc.CreateDataChannel("chat", DefaultDataChannelInit())
	require.NoError(t, err)

	report := pc.GetStats(time.Unix(0, 0), stats.Selector{Kind: stats.SelectorNone})

	found := false
	for _, dc := range report.DataChannels {
		if dc.ChannelID == handle.ID {
			found = true
		}
	}
	assert.True(t, found, "bound data channel must appear in an unfiltered report")
}

func TestCloseIsIdempotent(t *testing.T) {
	pc := newTestPC(t, true)
	require.NoError(t, pc.Close())
	require.NoError(t, pc.Close())
	assert.Equal(t, rtcbase.PeerConnectionClosed, pc.PeerConnectionState())

	_, err := pc.AddTransceiverFromKind("audio", rtcbase.DirectionSendRecv)
	assert.Error(t, err, "mutations after close must be rejected")
}
