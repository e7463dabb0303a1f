package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/arzzra/rtcengine/pkg/rtcbase"
)

func TestPrometheusExporterCollectsOutboundCounters(t *testing.T) {
	acc := NewAccumulator()
	acc.BindSender("sender-0", rtcbase.SSRC(7), "0")
	acc.RecordRtpSent(rtcbase.SSRC(7), 100)
	acc.RecordRtpSent(rtcbase.SSRC(7), 50)

	fixedNow := time.Unix(1000, 0)
	exporter := NewPrometheusExporter(acc, func() time.Time { return fixedNow }, DefaultPrometheusExporterConfig())

	count := testutil.CollectAndCount(exporter)
	require.Greater(t, count, 0)
}
