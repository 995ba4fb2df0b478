package tree

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/dartlab/dart-triage/types"
)

// Result partitions a stream's completed tests by outcome. The lists keep
// registry order, which is insertion order, so repeated runs of the same
// suite categorize identically.
type Result struct {
	Succeeded []*types.Test
	Failed    []*types.Test
	Skipped   []*types.Test
	Duration  time.Duration
}

// Total returns the number of categorized tests.
func (r *Result) Total() int {
	return len(r.Succeeded) + len(r.Failed) + len(r.Skipped)
}

// Status summarizes the result: fail beats skip beats pass.
func (r *Result) Status() string {
	switch {
	case len(r.Failed) > 0:
		return "fail"
	case len(r.Skipped) > 0 && len(r.Succeeded) == 0:
		return "skip"
	default:
		return "pass"
	}
}

func (r *Result) String() string {
	return fmt.Sprintf("%d tests: %d passed, %d failed, %d skipped (%s)",
		r.Total(), len(r.Succeeded), len(r.Failed), len(r.Skipped), formatDuration(r.Duration))
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Categorize scans all Test nodes in registry order and classifies each by
// its terminal outcome. A result of error or failure classifies as failed
// regardless of the skipped flag; otherwise the skipped flag classifies as
// skipped; otherwise succeeded. A test that never received an outcome is
// excluded from every list.
func Categorize(registry *Registry, duration time.Duration, logger log.Logger) *Result {
	if logger == nil {
		logger = log.New()
	}
	result := &Result{Duration: duration}

	for _, node := range registry.Nodes() {
		test, ok := node.(*types.Test)
		if !ok {
			continue
		}
		if test.Outcome == nil {
			// Started but never completed. The report stays silent about
			// these; the log line is the only diagnostic.
			logger.Debug("Excluding test with no outcome", "test_id", test.ID, "name", test.Name)
			continue
		}
		switch {
		case test.Failed():
			result.Failed = append(result.Failed, test)
		case test.Outcome.Skipped:
			result.Skipped = append(result.Skipped, test)
		default:
			result.Succeeded = append(result.Succeeded, test)
		}
	}

	return result
}
