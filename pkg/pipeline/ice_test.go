package pipeline

import (
	"testing"
	"time"

	"github.com/pion/stun/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestIceCredentialsAreDistinctAndSized(t *testing.T) {
	a := NewIce(true)
	b := NewIce(false)

	aUfrag, aPwd := a.LocalCredentials()
	bUfrag, bPwd := b.LocalCredentials()

	assert.Len(t, aUfrag, lenUFrag)
	assert.Len(t, aPwd, lenPwd)
	assert.NotEqual(t, aUfrag, bUfrag, "two agents must not draw the same ufrag")
	assert.NotEqual(t, aPwd, bPwd)
}

func TestIceFormsPairsAndSelectsOnBindingSuccess(t *testing.T) {
	ice := NewIce(true)
	ice.SetRemoteCredentials("remoteufrag", "remotepwd")

	local := Candidate{Type: CandidateHost, Address: "10.0.0.1", Port: 1000, Priority: 100}
	remote := Candidate{Type: CandidateHost, Address: "10.0.0.2", Port: 2000, Priority: 100}

	ice.AddLocalCandidate(local)
	assert.Equal(t, rtcbase.IceConnectionNew, ice.connState, "no pair yet, no remote candidate")

	ice.AddRemoteCandidate(remote)
	require.Len(t, ice.pairs, 1)
	assert.Equal(t, rtcbase.IceConnectionChecking, ice.connState)

	evt, ok := ice.PollEvent()
	require.True(t, ok)
	assert.Equal(t, EventIceConnectionStateChange, evt.Kind)
	assert.Equal(t, rtcbase.IceConnectionChecking, evt.IceConnectionState)

	now := time.Unix(0, 0)
	ice.HandleTimeout(now)

	writeMsg, ok := ice.PollWrite()
	require.True(t, ok, "a connectivity check must have been sent")
	require.Equal(t, MsgStun, writeMsg.Kind)
	require.NotNil(t, writeMsg.Stun)
	assert.Equal(t, stun.BindingRequest, writeMsg.Stun.Type)

	pair := ice.pairs[0]
	require.True(t, pair.txPending)

	resp := stun.MustBuild(stun.BindingSuccess, stun.NewTransactionIDSetter(pair.txID))
	require.NoError(t, ice.HandleRead(PipelineMessage{Kind: MsgStun, Stun: resp}))

	assert.Equal(t, rtcbase.IceConnectionConnected, ice.connState)
	require.NotNil(t, ice.selected)
	assert.Equal(t, pair, ice.selected)

	var sawSelected, sawConnected bool
	for {
		e, ok := ice.PollEvent()
		if !ok {
			break
		}
		if e.Kind == EventSelectedCandidatePairChange {
			sawSelected = true
		}
		if e.Kind == EventIceConnectionStateChange && e.IceConnectionState == rtcbase.IceConnectionConnected {
			sawConnected = true
		}
	}
	assert.True(t, sawSelected)
	assert.True(t, sawConnected)
}

func TestIceRestartResetsPairsAndCredentials(t *testing.T) {
	ice := NewIce(true)
	ufragBefore, pwdBefore := ice.LocalCredentials()

	ice.AddLocalCandidate(Candidate{Type: CandidateHost, Address: "10.0.0.1", Port: 1000})
	ice.AddRemoteCandidate(Candidate{Type: CandidateHost, Address: "10.0.0.2", Port: 2000})
	require.NotEmpty(t, ice.pairs)

	ice.Restart()

	ufragAfter, pwdAfter := ice.LocalCredentials()
	assert.NotEqual(t, ufragBefore, ufragAfter)
	assert.NotEqual(t, pwdBefore, pwdAfter)
	assert.Empty(t, ice.pairs)
	assert.Nil(t, ice.selected)
	assert.Equal(t, rtcbase.IceConnectionNew, ice.connState)
}

func TestIceAnswersBindingRequest(t *testing.T) {
	ice := NewIce(false)
	req := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	require.NoError(t, ice.HandleRead(PipelineMessage{Kind: MsgStun, Stun: req}))

	out, ok := ice.PollWrite()
	require.True(t, ok)
	require.Equal(t, MsgStun, out.Kind)
	assert.Equal(t, stun.BindingSuccess, out.Stun.Type)
	assert.Equal(t, req.TransactionID, out.Stun.TransactionID)
}

func TestIceCloseStopsFurtherOutput(t *testing.T) {
	ice := NewIce(true)
	require.NoError(t, ice.Close())

	require.NoError(t, ice.HandleRead(PipelineMessage{Kind: MsgStun, Stun: stun.MustBuild(stun.TransactionID, stun.BindingRequest)}))
	_, ok := ice.PollWrite()
	assert.False(t, ok, "closed handler must not produce output")

	_, ok = ice.PollTimeout()
	assert.False(t, ok)
}
