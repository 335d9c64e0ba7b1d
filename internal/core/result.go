package core

import "time"

// Conclusion is the terminal outcome of a step, entry, or run.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionSkipped   Conclusion = "skipped"
)

// StepResult records one executed (or skipped) step.
type StepResult struct {
	Name        string
	Conclusion  Conclusion
	Output      string
	LogPath     string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

// EntryResult records one matrix entry: its resolved values and the result of
// every step in declared order.
type EntryResult struct {
	Job        string
	Name       string
	Values     map[string]string
	Conclusion Conclusion
	Steps      []StepResult
}

// RunResult is the aggregate outcome of one workflow run.
type RunResult struct {
	ID          string
	Workflow    string
	Event       Event
	Conclusion  Conclusion
	StartedAt   time.Time
	CompletedAt time.Time
	Entries     []EntryResult
}

// Failed reports whether any entry concluded failure or was cancelled.
func (r *RunResult) Failed() bool {
	return r.Conclusion != ConclusionSuccess
}
