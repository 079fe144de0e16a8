package audits

// Status is the closed set of audit lifecycle states.
type Status string

const (
	StatusStarted          Status = "STARTED"
	StatusAnalyzing        Status = "ANALYZING"
	StatusDetecting        Status = "DETECTING"
	StatusGeneratingReport Status = "GENERATING_REPORT"
	StatusCompleted        Status = "COMPLETED"
	StatusError            Status = "ERROR"

	// StatusFetching is never stored as an audit status. It only appears as a
	// transient progress-event label when a client re-reads existing state.
	StatusFetching Status = "FETCHING"
)

// stageRank orders the processing stages. ERROR is reachable from any
// non-terminal stage and has no rank of its own.
var stageRank = map[Status]int{
	StatusStarted:          0,
	StatusAnalyzing:        1,
	StatusDetecting:        2,
	StatusGeneratingReport: 3,
	StatusCompleted:        4,
}

// IsTerminal reports whether no further transitions leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// IsStage reports whether s is a processing stage (part of the ordered
// STARTED -> ... -> COMPLETED sequence).
func (s Status) IsStage() bool {
	_, ok := stageRank[s]
	return ok
}

// CanTransition reports whether the state machine allows moving from s to
// next: one stage forward along the ordered sequence, or to ERROR from any
// non-terminal state.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusError {
		return true
	}
	from, ok := stageRank[s]
	if !ok {
		return false
	}
	to, ok := stageRank[next]
	if !ok {
		return false
	}
	return to == from+1
}
