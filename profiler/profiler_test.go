package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAggregates(t *testing.T) {
	p := New(2)
	p.Record("standard_cpu", 10*time.Millisecond)
	p.Record("standard_cpu", 30*time.Millisecond)
	p.Record("standard_cpu", 50*time.Millisecond)
	p.Record("fast_approximation", 5*time.Millisecond)

	stats := p.Snapshot()
	require.Len(t, stats, 2)
	assert.Equal(t, "fast_approximation", stats[0].Name)

	std := stats[1]
	assert.Equal(t, int64(3), std.Count)
	assert.Equal(t, 90*time.Millisecond, std.Total)
	assert.Equal(t, 10*time.Millisecond, std.Min)
	assert.Equal(t, 50*time.Millisecond, std.Max)
	assert.Equal(t, 30*time.Millisecond, std.Mean())
	// Window of two keeps 30ms and 50ms.
	assert.Equal(t, 40*time.Millisecond, std.Recent)
}

func TestStartOperationUsesClock(t *testing.T) {
	p := New(0)
	base := time.Unix(0, 0)
	calls := 0
	p.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 7 * time.Millisecond)
	}

	stop := p.StartOperation("gpu_vulkan")
	assert.Equal(t, 7*time.Millisecond, stop())
	assert.Equal(t, int64(1), p.Snapshot()[0].Count)

	p.Reset()
	assert.Empty(t, p.Snapshot())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{in: 512, want: "512 B"},
		{in: 1536, want: "1.5 KB"},
		{in: 500 * 1024 * 1024, want: "500.0 MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}

func TestMeanOfEmptyStats(t *testing.T) {
	assert.Equal(t, time.Duration(0), OperationStats{}.Mean())
}
