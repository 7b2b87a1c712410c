package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a reconnaissance job.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
	StatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal returns true if the status represents a final state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// JobKind identifies which external tool a job runs.
type JobKind string

const (
	KindPing          JobKind = "ping"
	KindPortScan      JobKind = "port_scan"
	KindSubdomainEnum JobKind = "subdomain_enum"
	KindPathEnum      JobKind = "path_enum"
)

// IsValid checks if the kind is supported.
func (k JobKind) IsValid() bool {
	switch k {
	case KindPing, KindPortScan, KindSubdomainEnum, KindPathEnum:
		return true
	}
	return false
}

// PathResult is one row discovered by a path enumeration.
type PathResult struct {
	Path       string `json:"path"`
	StatusCode string `json:"status_code"`
	Size       string `json:"size"`
}

// JobResult holds the partial or final output of a job. Which fields are
// populated depends on the job kind.
type JobResult struct {
	Output     string       `json:"output,omitempty"`
	Subdomains []string     `json:"subdomains,omitempty"`
	Paths      []PathResult `json:"paths,omitempty"`
}

// Clone returns a copy that shares no slices with r.
func (r JobResult) Clone() JobResult {
	out := JobResult{Output: r.Output}
	if r.Subdomains != nil {
		out.Subdomains = append([]string(nil), r.Subdomains...)
	}
	if r.Paths != nil {
		out.Paths = append([]PathResult(nil), r.Paths...)
	}
	return out
}

// JobState is the polled record of a job.
type JobState struct {
	JobID     uuid.UUID `json:"job_id"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Progress  float64   `json:"progress"`
	Result    JobResult `json:"result"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the state.
func (s *JobState) Clone() *JobState {
	if s == nil {
		return nil
	}
	out := *s
	out.Result = s.Result.Clone()
	return &out
}

// JobMessage is what travels over the dispatch channel. Ack and Nack are set
// by the consumer and are not serialized.
type JobMessage struct {
	JobID uuid.UUID `json:"job_id"`
	Spec  JobSpec   `json:"spec"`

	Ack  func() error             `json:"-"`
	Nack func(requeue bool) error `json:"-"`
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

// ToolInfo describes a supported job kind.
type ToolInfo struct {
	Kind      JobKind  `json:"kind"`
	Tool      string   `json:"tool"`
	Options   []string `json:"options,omitempty"`
	Wordlists []int    `json:"wordlists,omitempty"`
}
