package processor

import "sync"

var (
	defaultOnce      sync.Once
	defaultProcessor *Processor
)

// Default returns a process-wide Processor built from DefaultConfig on first
// use. Applications that need several configurations should call New.
func Default() *Processor {
	defaultOnce.Do(func() {
		p, err := New(DefaultConfig())
		if err != nil {
			// DefaultConfig always validates.
			panic(err)
		}
		defaultProcessor = p
	})
	return defaultProcessor
}
