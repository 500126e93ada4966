package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	ProbeDuration      = metric.NewHistogram("15m10s")
	ProbeFailures      = metric.NewCounter("15m10s")
	ProbeRuns          = metric.NewCounter("1h1m")
	SentBytesPerSecond = metric.NewCounter("10s1s")
	RecvBytesPerSecond = metric.NewCounter("10s1s")
	TransfersComplete  = metric.NewCounter("1h1m")
	TransfersFailed    = metric.NewCounter("1h1m")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("nyroute:ProbeDuration (ms)", ProbeDuration)
	expvar.Publish("nyroute:ProbeFailures", ProbeFailures)
	expvar.Publish("nyroute:ProbeRuns", ProbeRuns)
	expvar.Publish("nyroute:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("nyroute:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("nyroute:TransfersComplete", TransfersComplete)
	expvar.Publish("nyroute:TransfersFailed", TransfersFailed)
}
