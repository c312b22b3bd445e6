// Package benchmark - Throughput and quality measurements for the bilateral
// filter implementations.
package benchmark

import "time"

// PerformanceMetrics captures the outcome of one scenario.
type PerformanceMetrics struct {
	Scenario  Scenario  `json:"scenario"`
	Timestamp time.Time `json:"timestamp"`
	// Implementation is what the optimizer actually ran on the last iteration.
	Implementation      string        `json:"implementation"`
	TotalDuration       time.Duration `json:"total_duration"`
	MinDuration         time.Duration `json:"min_duration"`
	MaxDuration         time.Duration `json:"max_duration"`
	P50Duration         time.Duration `json:"p50_duration"`
	P95Duration         time.Duration `json:"p95_duration"`
	P99Duration         time.Duration `json:"p99_duration"`
	StdDevDuration      time.Duration `json:"stddev_duration"`
	MegapixelsPerSecond float64       `json:"megapixels_per_second"`
	// MeanAbsoluteError is measured against the Standard filter on the first
	// iteration's output.
	MeanAbsoluteError float64       `json:"mean_absolute_error"`
	MemoryStats       MemoryMetrics `json:"memory_stats"`
	CPUStats          CPUMetrics    `json:"cpu_stats"`
	ErrorRate         float64       `json:"error_rate"`
}

// MeanDuration is TotalDuration divided by the scenario's iterations.
func (m PerformanceMetrics) MeanDuration() time.Duration {
	if m.Scenario.Iterations <= 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.Scenario.Iterations)
}

// MemoryMetrics captures memory usage statistics
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
}

// CPUMetrics captures CPU configuration.
type CPUMetrics struct {
	NumCPU  int `json:"num_cpu"`
	Workers int `json:"workers"`
}
