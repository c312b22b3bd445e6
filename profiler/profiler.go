// Package profiler - Per-operation timing for filter calls.
package profiler

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultMaxSamples bounds the recent-duration window kept per operation.
const DefaultMaxSamples = 600

// OperationStats summarises the timings recorded for one operation.
type OperationStats struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	// Recent is the mean over the retained window.
	Recent time.Duration `json:"recent"`
}

// Mean is Total / Count.
func (s OperationStats) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// timeTracker tracks operation timing statistics.
type timeTracker struct {
	durations  []time.Duration
	windowTime time.Duration
	totalTime  time.Duration
	minTime    time.Duration
	maxTime    time.Duration
	count      int64
}

// Profiler records durations keyed by operation name. It is safe for
// concurrent use.
type Profiler struct {
	mu         sync.Mutex
	maxSamples int
	operations map[string]*timeTracker
	now        func() time.Time
}

// New creates a profiler.
//
// Arguments:
//   - maxSamples: Size of the recent window per operation. Zero means
//     DefaultMaxSamples.
//
// Returns:
//   - *Profiler: The profiler.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		maxSamples: maxSamples,
		operations: make(map[string]*timeTracker),
		now:        time.Now,
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func() time.Duration: Stops the timer, records and returns the duration.
func (p *Profiler) StartOperation(name string) func() time.Duration {
	start := p.now()
	return func() time.Duration {
		d := p.now().Sub(start)
		p.Record(name, d)
		return d
	}
}

// Record adds one duration for name.
func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operations[name]
	if !exists {
		tracker = &timeTracker{minTime: d, maxTime: d}
		p.operations[name] = tracker
	}

	tracker.durations = append(tracker.durations, d)
	tracker.windowTime += d
	if len(tracker.durations) > p.maxSamples {
		// Drop the oldest sample.
		tracker.windowTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += d
	tracker.count++
	tracker.minTime = min(tracker.minTime, d)
	tracker.maxTime = max(tracker.maxTime, d)
}

// Snapshot returns the stats of every operation, sorted by name.
func (p *Profiler) Snapshot() []OperationStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]OperationStats, 0, len(p.operations))
	for name, t := range p.operations {
		s := OperationStats{
			Name:  name,
			Count: t.count,
			Total: t.totalTime,
			Min:   t.minTime,
			Max:   t.maxTime,
		}
		if n := len(t.durations); n > 0 {
			s.Recent = t.windowTime / time.Duration(n)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset drops every recorded operation.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.operations = make(map[string]*timeTracker)
}

// FormatBytes formats byte counts in human-readable format.
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
