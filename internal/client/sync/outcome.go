package sync

// State is the engine's coarse activity state, readable while a cycle runs.
type State int32

const (
	StateIdle State = iota
	StatePushing
	StatePulling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePushing:
		return "pushing"
	case StatePulling:
		return "pulling"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// PushOutcome summarizes the upload half of a cycle.
type PushOutcome struct {
	// Attempted counts dirty records gathered for the request.
	Attempted int
	// Accepted counts records the server inserted or updated.
	Accepted int
	// Conflicts counts records the server skipped or rejected.
	Conflicts int
	// TombstonesAcked counts tombstones purged after acknowledgement.
	TombstonesAcked int
	// Skipped is true when there was nothing to push.
	Skipped bool
}

// PullOutcome summarizes the download half of a cycle.
type PullOutcome struct {
	// Applied counts records inserted or overwritten locally.
	Applied int
	// Deleted counts local rows removed by remote tombstones.
	Deleted int
	// Cursor is the watermark committed with the merge.
	Cursor int64
}

// Result is the outcome of one full cycle. PushErr is non-nil when the
// upload failed but the download still ran.
type Result struct {
	Push    PushOutcome
	Pull    PullOutcome
	PushErr error
	Success bool
}
