package export

import "time"

// Status is the lifecycle state of a Job.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Job is one generation attempt. Artifact is set only when Ready and Err only
// when Failed.
type Job struct {
	ID          string
	Status      Status
	Channel     Channel
	Artifact    *Artifact
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time

	cancel func()
}

// JobSnapshot is a read-only copy of a Job.
type JobSnapshot struct {
	ID          string    `json:"id,omitempty"`
	Status      Status    `json:"status"`
	Channel     Channel   `json:"channel,omitempty"`
	Pages       int       `json:"pages,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}

func (j *Job) snapshot() JobSnapshot {
	snap := JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Channel:     j.Channel,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.Artifact != nil {
		snap.Pages = j.Artifact.Pages
	}
	if j.Err != nil {
		snap.Error = j.Err.Error()
	}
	return snap
}
