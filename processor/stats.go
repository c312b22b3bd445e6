package processor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nvr-ai/go-darkroom/optimizer"
)

// Stats is a snapshot of the cumulative call counters.
type Stats struct {
	TotalCalls          int64   `json:"total_calls"`
	CacheHits           int64   `json:"cache_hits"`
	CacheMisses         int64   `json:"cache_misses"`
	GPUCalls            int64   `json:"gpu_calls"`
	FastApproxCalls     int64   `json:"fast_approx_calls"`
	StandardCalls       int64   `json:"standard_calls"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}

// counters backs Stats. The integer counters are atomics; the running mean
// needs a consistent (count, mean) pair so it sits behind a mutex.
type counters struct {
	totalCalls      atomic.Int64
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	gpuCalls        atomic.Int64
	fastApproxCalls atomic.Int64
	standardCalls   atomic.Int64

	timeMu   sync.Mutex
	timed    int64
	avgMilli float64
}

func (c *counters) recordImplementation(impl optimizer.Implementation) {
	switch impl {
	case optimizer.GPUVulkan:
		c.gpuCalls.Add(1)
	case optimizer.FastApproximation:
		c.fastApproxCalls.Add(1)
	case optimizer.StandardCPU:
		c.standardCalls.Add(1)
	}
}

func (c *counters) recordDuration(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	c.timeMu.Lock()
	c.timed++
	c.avgMilli += (ms - c.avgMilli) / float64(c.timed)
	c.timeMu.Unlock()
}

func (c *counters) snapshot() Stats {
	c.timeMu.Lock()
	avg := c.avgMilli
	c.timeMu.Unlock()
	return Stats{
		TotalCalls:          c.totalCalls.Load(),
		CacheHits:           c.cacheHits.Load(),
		CacheMisses:         c.cacheMisses.Load(),
		GPUCalls:            c.gpuCalls.Load(),
		FastApproxCalls:     c.fastApproxCalls.Load(),
		StandardCalls:       c.standardCalls.Load(),
		AvgProcessingTimeMs: avg,
	}
}

func (c *counters) reset() {
	c.totalCalls.Store(0)
	c.cacheHits.Store(0)
	c.cacheMisses.Store(0)
	c.gpuCalls.Store(0)
	c.fastApproxCalls.Store(0)
	c.standardCalls.Store(0)
	c.timeMu.Lock()
	c.timed = 0
	c.avgMilli = 0
	c.timeMu.Unlock()
}
