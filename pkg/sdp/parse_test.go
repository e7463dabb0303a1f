package sdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestParseRoundTripPreservesSections(t *testing.T) {
	wantParams := sampleParams()
	wantSections := sampleSections()

	desc, err := Build(true, wantParams, wantSections)
	require.NoError(t, err)

	gotParams, gotSections, err := Parse(desc)
	require.NoError(t, err)

	assert.Equal(t, wantParams.IceUfrag, gotParams.IceUfrag)
	assert.Equal(t, wantParams.IcePwd, gotParams.IcePwd)
	assert.Equal(t, wantParams.Fingerprint, gotParams.Fingerprint)
	assert.Equal(t, wantParams.BundleMids, gotParams.BundleMids)

	require.Len(t, gotSections, 2)
	assert.Equal(t, rtcbase.Mid("0"), gotSections[0].Mid)
	assert.Equal(t, "audio", gotSections[0].Kind)
	require.Len(t, gotSections[0].Streams, 1)
	assert.Equal(t, rtcbase.SSRC(1111), gotSections[0].Streams[0].SSRC)
	assert.Equal(t, rtcbase.PayloadType(111), gotSections[0].Streams[0].PayloadType)
	assert.ElementsMatch(t, wantSections[0].Streams[0].RTCPFeedback, gotSections[0].Streams[0].RTCPFeedback)

	assert.Equal(t, rtcbase.Mid("1"), gotSections[1].Mid)
	assert.Equal(t, rtcbase.DirectionSendOnly, gotSections[1].Direction)
	require.Len(t, gotSections[1].Streams, 1)
	assert.True(t, gotSections[1].Streams[0].HasRtx)
	assert.Equal(t, rtcbase.SSRC(2223), gotSections[1].Streams[0].RtxSSRC)
	assert.Equal(t, rtcbase.SSRC(2223), gotSections[1].RtxGroup[2222])
}

func TestParseBundleGroupMids(t *testing.T) {
	desc, err := Build(true, sampleParams(), sampleSections())
	require.NoError(t, err)

	params, _, err := Parse(desc)
	require.NoError(t, err)
	assert.Equal(t, []rtcbase.Mid{"0", "1"}, params.BundleMids)
}
