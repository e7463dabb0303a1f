package sdp

import (
	"testing"

	"github.com/pion/sdp/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func sampleSections() []MediaSection {
	return []MediaSection{
		{
			Mid:       "0",
			Kind:      "audio",
			Direction: rtcbase.DirectionSendRecv,
			Streams: []rtcbase.StreamInfo{
				{
					SSRC:        1111,
					PayloadType: 111,
					Mid:         "0",
					RTCPFeedback: []rtcbase.RTCPFeedback{
						{Type: "transport-cc"},
						{Type: "nack", Parameter: "pli"},
					},
					HeaderExtensions: []rtcbase.RTPHeaderExtension{
						{ID: 3, URI: rtcbase.ExtensionURITransportWideCC},
					},
				},
			},
		},
		{
			Mid:       "1",
			Kind:      "video",
			Direction: rtcbase.DirectionSendOnly,
			Streams: []rtcbase.StreamInfo{
				{SSRC: 2222, RtxSSRC: 2223, HasRtx: true, PayloadType: 96, Mid: "1"},
			},
			RtxGroup: map[rtcbase.SSRC]rtcbase.SSRC{2222: 2223},
		},
	}
}

func sampleParams() SessionParams {
	return SessionParams{
		IceUfrag:    "abcd",
		IcePwd:      "0123456789012345678901",
		Fingerprint: "sha-256 AA:BB:CC",
		BundleMids:  []rtcbase.Mid{"0", "1"},
	}
}

func TestBuildOfferProducesBundleGroup(t *testing.T) {
	desc, err := Build(true, sampleParams(), sampleSections())
	require.NoError(t, err)
	require.Len(t, desc.MediaDescriptions, 2)

	found := false
	for _, a := range desc.Attributes {
		if a.Key == "group" {
			assert.Equal(t, "BUNDLE 0 1", a.Value)
			found = true
		}
	}
	assert.True(t, found, "ожидался a=group:BUNDLE на уровне сессии")
}

func TestBuildOfferSetupDefaultsToActpass(t *testing.T) {
	desc, err := Build(true, sampleParams(), sampleSections())
	require.NoError(t, err)
	assert.Equal(t, "actpass", attrValue(desc.MediaDescriptions[0].Attributes, "setup"))
}

func TestBuildAnswerSetupDefaultsToActive(t *testing.T) {
	desc, err := Build(false, sampleParams(), sampleSections())
	require.NoError(t, err)
	assert.Equal(t, "active", attrValue(desc.MediaDescriptions[0].Attributes, "setup"))
}

func TestBuildWritesRtcpFeedbackAndExtmap(t *testing.T) {
	desc, err := Build(true, sampleParams(), sampleSections())
	require.NoError(t, err)

	audio := desc.MediaDescriptions[0]
	var fbValues, extValues []string
	for _, a := range audio.Attributes {
		switch a.Key {
		case "rtcp-fb":
			fbValues = append(fbValues, a.Value)
		case "extmap":
			extValues = append(extValues, a.Value)
		}
	}
	assert.Contains(t, fbValues, "111 transport-cc")
	assert.Contains(t, fbValues, "111 nack pli")
	assert.Contains(t, extValues, "3 "+rtcbase.ExtensionURITransportWideCC)
}

func TestBuildWritesFidSsrcGroup(t *testing.T) {
	desc, err := Build(true, sampleParams(), sampleSections())
	require.NoError(t, err)

	video := desc.MediaDescriptions[1]
	assert.Equal(t, "FID 2222 2223", attrValue(video.Attributes, "ssrc-group"))
	assert.Equal(t, "sendonly", mediaDirection(t, video))
}

func mediaDirection(t *testing.T, media *sdp.MediaDescription) string {
	t.Helper()
	for _, a := range media.Attributes {
		switch a.Key {
		case "sendonly", "recvonly", "inactive", "sendrecv":
			return a.Key
		}
	}
	return ""
}
