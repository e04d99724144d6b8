package extsorter

import (
	"go.uber.org/zap"

	"github.com/ryogrid/extsorter/interfaces"
)

// Option configures a Sorter at construction time. The teacher never
// grew a config-file/flag layer for BufMgr — it took every knob as a
// constructor parameter — so this module follows the same shape with
// functional options instead of a config struct.
type Option func(*Sorter)

// WithLogger attaches a structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Sorter) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTaskContext registers cleanupResources with the given task context
// so it runs on task completion — success, failure, or cancellation.
func WithTaskContext(tc interfaces.TaskContext) Option {
	return func(s *Sorter) {
		if tc != nil {
			tc.OnCompletion(s.CleanupResources)
		}
	}
}

// WithInitialArrayCapacity overrides the number of index entries the
// first pointer-array allocation holds.
func WithInitialArrayCapacity(n int64) Option {
	return func(s *Sorter) {
		if n > 0 {
			s.initialArrayCapacity = n
		}
	}
}

// Deliberately small: the first pointer-array allocation is charged
// against the same memory budget as pages, so starting large enough to
// leave no room for even a single page would make a tight budget
// unworkable on the very first insert. Growth beyond this doubles from
// the current record count, so steady-state throughput is unaffected.
const defaultInitialArrayCapacity int64 = 8
