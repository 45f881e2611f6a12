package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_perf_stats_cpu = "perf-stats.cpu"
	perfStatsInterval     = 30 * time.Second
)

type perfGauges struct {
	cpu        metric.Float64Gauge
	heapMB     metric.Int64Gauge
	goroutines metric.Int64Gauge
}

func (g perfGauges) record(ctx context.Context, tel API) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.heapMB.Record(ctx, int64(mem.HeapAlloc>>20))
	g.goroutines.Record(ctx, int64(runtime.NumGoroutine()))

	usage, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		tel.ReportWarning(report_perf_stats_cpu, err)
		return
	}
	if len(usage) > 0 {
		g.cpu.Record(ctx, usage[0])
	}
}

// InstrumentPerfStats samples process cpu, heap and goroutine gauges until
// ctx is done.
func InstrumentPerfStats(ctx context.Context, tel API) {
	meter := otel.Meter("milesfare.perf_stats")
	var g perfGauges
	g.cpu, _ = meter.Float64Gauge("process.cpu.percent")
	g.heapMB, _ = meter.Int64Gauge("process.heap.mb")
	g.goroutines, _ = meter.Int64Gauge("process.goroutines")

	go func() {
		ticker := time.NewTicker(perfStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.record(ctx, tel)
			case <-ctx.Done():
				return
			}
		}
	}()
}
