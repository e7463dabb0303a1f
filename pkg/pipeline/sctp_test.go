package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// drive feeds every pending write of src into dst's HandleRead; whatever
// dst writes in response stays queued on dst for the next drive call in the
// opposite direction — a tiny scripted loopback
// good enough for two association endpoints that only ever talk to each
// other.
func drive(t *testing.T, src, dst *Sctp) {
	t.Helper()
	for {
		msg, ok := src.PollWrite()
		if !ok {
			return
		}
		require.NoError(t, dst.HandleRead(msg))
	}
}

func TestSctpFourWayHandshakeReachesConnected(t *testing.T) {
	client := NewSctp(true)
	server := NewSctp(false)

	require.NoError(t, client.HandleEvent(Event{Kind: EventDtlsSrtpKeysReady}))
	assert.Equal(t, rtcbase.SctpConnecting, client.state)

	// client sends INIT -> server
	drive(t, client, server)
	assert.Equal(t, rtcbase.SctpConnecting, server.state)

	// server sends INIT-ACK -> client
	drive(t, server, client)
	assert.Equal(t, rtcbase.SctpConnecting, client.state)

	// client sends COOKIE-ECHO -> server, server reaches Connected
	drive(t, client, server)
	assert.Equal(t, rtcbase.SctpConnected, server.state)

	// server sends COOKIE-ACK -> client, client reaches Connected
	drive(t, server, client)
	assert.Equal(t, rtcbase.SctpConnected, client.state)

	var serverSawConnected, clientSawConnected bool
	for {
		evt, ok := server.PollEvent()
		if !ok {
			break
		}
		if evt.Kind == EventSctpStateChange && evt.SctpState == rtcbase.SctpConnected {
			serverSawConnected = true
		}
	}
	for {
		evt, ok := client.PollEvent()
		if !ok {
			break
		}
		if evt.Kind == EventSctpStateChange && evt.SctpState == rtcbase.SctpConnected {
			clientSawConnected = true
		}
	}
	assert.True(t, serverSawConnected)
	assert.True(t, clientSawConnected)
}

func establishedPair(t *testing.T) (client, server *Sctp) {
	t.Helper()
	client = NewSctp(true)
	server = NewSctp(false)
	require.NoError(t, client.HandleEvent(Event{Kind: EventDtlsSrtpKeysReady}))
	drive(t, client, server)
	drive(t, server, client)
	drive(t, client, server)
	drive(t, server, client)
	require.Equal(t, rtcbase.SctpConnected, client.state)
	require.Equal(t, rtcbase.SctpConnected, server.state)
	return client, server
}

func TestSctpDataChunkDeliversPayloadAndIncrementsTSN(t *testing.T) {
	client, server := establishedPair(t)
	tsnBefore := client.localTSN

	require.NoError(t, client.HandleWrite(PipelineMessage{
		Kind:               MsgDataChannelData,
		DataChannelID:      rtcbase.DataChannelId(2),
		DataChannelPayload: []byte("hello"),
		DataChannelIsText:  true,
	}))
	assert.Equal(t, tsnBefore+1, client.localTSN)

	drive(t, client, server)

	out, ok := server.PollRead()
	require.True(t, ok)
	assert.Equal(t, MsgDataChannelData, out.Kind)
	assert.Equal(t, rtcbase.DataChannelId(2), out.DataChannelID)
	assert.Equal(t, []byte("hello"), out.DataChannelPayload)
	assert.True(t, out.DataChannelIsText)
}

func TestSctpVerificationTagsAreUnpredictableAcrossInstances(t *testing.T) {
	a := NewSctp(true)
	b := NewSctp(true)
	assert.NotEqual(t, a.localTag, b.localTag)
	assert.NotEqual(t, a.localTSN, b.localTSN)
}

func TestSctpCloseStopsDelivery(t *testing.T) {
	client, server := establishedPair(t)
	require.NoError(t, server.Close())
	assert.Equal(t, rtcbase.SctpClosed, server.state)

	require.NoError(t, client.HandleWrite(PipelineMessage{
		Kind:               MsgDataChannelData,
		DataChannelID:      rtcbase.DataChannelId(2),
		DataChannelPayload: []byte("late"),
	}))
	drive(t, client, server)

	_, ok := server.PollRead()
	assert.False(t, ok, "closed association must not deliver further data")
}
