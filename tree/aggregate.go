package tree

// Merge combines results from independent event streams (one per package)
// into one. Each category is concatenated in per-stream order with each
// stream's internal order preserved; tests from different streams are
// assumed disjoint, so no de-duplication happens.
//
// Known durations are summed; a stream with an unknown duration contributes
// nothing to the sum. The merged duration is unknown only when no stream
// reported one.
func Merge(results ...*Result) *Result {
	merged := &Result{Duration: UnknownDuration}

	for _, result := range results {
		if result == nil {
			continue
		}
		merged.Succeeded = append(merged.Succeeded, result.Succeeded...)
		merged.Failed = append(merged.Failed, result.Failed...)
		merged.Skipped = append(merged.Skipped, result.Skipped...)
		if result.Duration >= 0 {
			if merged.Duration < 0 {
				merged.Duration = 0
			}
			merged.Duration += result.Duration
		}
	}

	return merged
}
