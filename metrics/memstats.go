package metrics

import (
	"runtime"
	"time"

	gocontext "context"
)

// ReportMemstatsMetrics records runtime Memstats gauges every 10 seconds
// until the context is done.
func ReportMemstatsMetrics(ctx gocontext.Context) {
	memStats := &runtime.MemStats{}
	lastSampleTime := time.Now()
	var lastPauseNs uint64
	var lastNumGC uint64

	sleep := 10 * time.Second
	ticker := time.NewTicker(sleep)
	defer ticker.Stop()

	for {
		runtime.ReadMemStats(memStats)
		now := time.Now()

		for n, v := range map[string]int64{
			"goroutines":            int64(runtime.NumGoroutine()),
			"memory.allocated":      int64(memStats.Alloc),
			"memory.mallocs":        int64(memStats.Mallocs),
			"memory.frees":          int64(memStats.Frees),
			"memory.gc.total_pause": int64(memStats.PauseTotalNs),
			"memory.gc.heap":        int64(memStats.HeapAlloc),
			"memory.gc.stack":       int64(memStats.StackInuse),
		} {
			Gauge("cloudadapter."+n, v)
		}

		if lastPauseNs > 0 {
			pauseSinceLastSample := memStats.PauseTotalNs - lastPauseNs
			Gauge("cloudadapter.memory.gc.pause_per_second", int64(float64(pauseSinceLastSample)/sleep.Seconds()))
		}
		lastPauseNs = memStats.PauseTotalNs

		countGC := uint64(memStats.NumGC) - lastNumGC
		if lastNumGC > 0 {
			diffTime := now.Sub(lastSampleTime).Seconds()
			Gauge("cloudadapter.memory.gc.gc_per_second", int64(float64(countGC)/diffTime))
		}

		lastNumGC = uint64(memStats.NumGC)
		lastSampleTime = now

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
