package model

import "time"

// RunStatus is the outcome of one pipeline invocation.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one pipeline invocation for a tender. Runs are an audit
// trail; the tender record remains the checkpoint.
type Run struct {
	ID        string    `json:"id"`
	RegNumber string    `json:"reg_number"`
	Status    RunStatus `json:"status"`
	Stage     Stage     `json:"stage"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
