package extsorter

import (
	"go.uber.org/zap"

	"github.com/ryogrid/extsorter/interfaces"
)

// spillRun is one entry in the registry: a closed writer plus how many
// records it holds. Entries are immutable once appended — the only way
// one leaves the registry is cleanupResources deleting the lot.
type spillRun struct {
	writer     interfaces.SpillWriter
	numRecords int64
	opened     bool
}

// runRegistry is the ordered list of spill runs produced by successive
// drains of the in-memory index. Order always matches creation order,
// which is what lets insertionOrderIterator chain runs correctly.
type runRegistry struct {
	runs []*spillRun
}

func (r *runRegistry) append(w interfaces.SpillWriter, numRecords int64) {
	r.runs = append(r.runs, &spillRun{writer: w, numRecords: numRecords})
}

func (r *runRegistry) len() int {
	return len(r.runs)
}

func (r *runRegistry) empty() bool {
	return len(r.runs) == 0
}

// readers opens one reader per run, in registry order. Each run may only
// be opened once; calling readers twice on the same registry is a
// contract violation since the earlier readers would still hold the runs'
// cursors.
func (r *runRegistry) readers() ([]interfaces.RecordIterator, error) {
	out := make([]interfaces.RecordIterator, 0, len(r.runs))
	for _, run := range r.runs {
		assertNoContractViolation(!run.opened, "spill run opened for reading more than once")
		rd, err := run.writer.GetReader()
		if err != nil {
			return nil, wrapIO(err)
		}
		run.opened = true
		out = append(out, rd)
	}
	return out, nil
}

// deleteAll removes every run's backing file. Failures are logged and
// swallowed so that cleanup always completes, per the error-handling
// design's removal policy.
func (r *runRegistry) deleteAll(log *zap.Logger) {
	for _, run := range r.runs {
		if err := run.writer.RemoveFile(); err != nil {
			log.Warn("failed to remove spill run file during cleanup", zap.Error(err))
		}
	}
	r.runs = nil
}
