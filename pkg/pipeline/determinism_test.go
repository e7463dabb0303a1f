package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/pipeline"
	"github.com/arzzra/rtcengine/pkg/pipeline/pipelinetest"
	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

// TestDemuxerScriptedDeterminism покрывает свойство 1 спецификации: та
// же начальная конфигурация и та же последовательность handle_*/
// handle_timeout вызовов обязана воспроизводить побайтово идентичный
// выход независимо от того, какой именно экземпляр её обработал.
func TestDemuxerScriptedDeterminism(t *testing.T) {
	transport := rtcbase.TransportContext{}
	rtp := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 0, 0, 0, 0, 0}
	rtcp := []byte{0x80, 0xC8, 0x00, 0x06, 0, 0, 0, 0}

	steps := []pipelinetest.Step{
		pipelinetest.ReadStep(pipeline.RawMessage(transport, rtp)),
		pipelinetest.ReadStep(pipeline.RawMessage(transport, rtcp)),
	}

	a, b, err := pipelinetest.RunTwice(func() pipeline.Handler { return pipeline.NewDemuxer() }, steps)
	require.NoError(t, err)
	require.Len(t, a, 2)
	require.Len(t, b, 2)

	assert.Equal(t, a[0].Reads, b[0].Reads)
	assert.Equal(t, a[1].Reads, b[1].Reads)
	require.Len(t, a[0].Reads, 1)
	assert.Equal(t, pipeline.MsgRtpRaw, a[0].Reads[0].Kind)
	require.Len(t, a[1].Reads, 1)
	assert.Equal(t, pipeline.MsgRtcpRaw, a[1].Reads[0].Kind)
}
