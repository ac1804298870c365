package workflow

import "time"

// Action is the lifecycle stage of the webhook delivery itself.
type Action string

const (
	ActionRequested  Action = "requested"
	ActionInProgress Action = "in_progress"
	ActionCompleted  Action = "completed"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRequested, ActionInProgress, ActionCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further events are expected for the run.
func (a Action) IsTerminal() bool { return a == ActionCompleted }

// Status is the workflow run's own reported state.
type Status string

const (
	StatusRequested  Status = "requested"
	StatusQueued     Status = "queued"
	StatusPending    Status = "pending"
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is the final outcome of a completed run.
type Conclusion string

const (
	ConclusionSuccess        Conclusion = "success"
	ConclusionFailure        Conclusion = "failure"
	ConclusionTimedOut       Conclusion = "timed_out"
	ConclusionActionRequired Conclusion = "action_required"
	ConclusionStale          Conclusion = "stale"
	ConclusionNeutral        Conclusion = "neutral"
	ConclusionCancelled      Conclusion = "cancelled"
	ConclusionSkipped        Conclusion = "skipped"
	ConclusionStartupFailure Conclusion = "startup_failure"
)

// Outcome is either Pending or Completed. Consumers switch on the concrete type.
type Outcome interface {
	isOutcome()
}

// Pending is any run that has not reported a conclusion yet.
type Pending struct {
	Status Status
}

// Completed is a run with status completed and a non-null conclusion.
type Completed struct {
	Conclusion Conclusion
}

func (Pending) isOutcome()   {}
func (Completed) isOutcome() {}

// Actor is the user that triggered the run.
type Actor struct {
	Login     string
	HTMLURL   string
	AvatarURL string
}

// Event is one validated workflow_run delivery.
type Event struct {
	RunID   string
	Action  Action
	Outcome Outcome

	// Raw values as reported, kept for display.
	Status     Status
	Conclusion Conclusion

	Repository    string // owner/name
	RepositoryURL string
	Name          string
	RunNumber     int64
	RunAttempt    int64
	Branch        string
	HeadSHA       string
	Trigger       string // push, pull_request, schedule, ...
	Actor         Actor
	HTMLURL       string

	StartedAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
