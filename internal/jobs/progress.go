package jobs

// The pipeline reports coarse states, not percentages, so displayed progress
// is a heuristic: seeded low on submission, bumped when the pipeline
// acknowledges the job, then nudged per tick up to a ceiling that is only
// crossed by an actual completion.
const (
	ProgressSeed    = 10
	ProgressDone    = 100
	progressAck     = 30
	progressStep    = 5
	progressCeiling = 90
)

// Advance derives the next displayable percentage from the previous value
// and a newly observed status. It is pure and monotonically non-decreasing;
// a failed status freezes the value where it was.
func Advance(prev int, status string) int {
	switch Normalize(status) {
	case StatusCompleted:
		return ProgressDone
	case StatusFailed:
		return prev
	}
	if Acknowledged(status) && prev < progressAck {
		return progressAck
	}
	next := prev + progressStep
	if next < ProgressSeed {
		next = ProgressSeed
	}
	if next > progressCeiling {
		next = progressCeiling
	}
	if next < prev {
		next = prev
	}
	return next
}
