package domain

import (
	"fmt"
	"time"
)

// TriggerType records how an execution run was started.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerScheduled TriggerType = "scheduled"
)

// RunStatus is the lifecycle state of an execution run or batch job. The
// values come from the dispatch engine; the client never computes status
// locally.
type RunStatus string

const (
	RunInitiated RunStatus = "INITIATED"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	RunFailed    RunStatus = "FAILED"
	RunPartial   RunStatus = "PARTIAL"
)

// Terminal reports whether the status ends the polling protocol. A terminal
// run is never polled or mutated again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunPartial:
		return true
	}
	return false
}

// ExecutionRun is one instance of a rule being evaluated and acted upon by
// the dispatch engine, tracked through the status lifecycle
// INITIATED → RUNNING → {COMPLETED | FAILED | PARTIAL}.
type ExecutionRun struct {
	ID     string `json:"id"`
	RuleID string `json:"ruleId"`

	// RemoteID is the dispatch engine's identifier for this run, used for
	// status polling.
	RemoteID string `json:"remoteId"`

	TriggerType TriggerType `json:"triggerType"`
	Status      RunStatus   `json:"status"`

	TotalProcessed int `json:"totalProcessed"`
	SuccessCount   int `json:"successCount"`
	FailedCount    int `json:"failedCount"`

	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorSummary string     `json:"errorSummary,omitempty"`
}

// Outcome renders the operator-facing message for a terminal run.
func (r *ExecutionRun) Outcome() string {
	switch r.Status {
	case RunCompleted:
		return fmt.Sprintf("run completed: %d cases processed", r.TotalProcessed)
	case RunPartial:
		return fmt.Sprintf("run partially completed: %d succeeded, %d failed", r.SuccessCount, r.FailedCount)
	case RunFailed:
		if r.ErrorSummary != "" {
			return fmt.Sprintf("run failed: %s", r.ErrorSummary)
		}
		return "run failed"
	}
	return string(r.Status)
}

// BatchKind identifies which CSV back-office flow a batch job belongs to.
type BatchKind string

const (
	BatchAllocation   BatchKind = "allocation"
	BatchReallocation BatchKind = "reallocation"
	BatchCaseIntake   BatchKind = "case-intake"
)

// Valid reports whether k is a known batch kind.
func (k BatchKind) Valid() bool {
	switch k {
	case BatchAllocation, BatchReallocation, BatchCaseIntake:
		return true
	}
	return false
}

// BatchJob tracks an uploaded case file through the dispatch engine. It
// follows the same terminal-status polling protocol as ExecutionRun.
type BatchJob struct {
	ID       string    `json:"id"`
	Kind     BatchKind `json:"kind"`
	RemoteID string    `json:"remoteId"`
	FileName string    `json:"fileName,omitempty"`

	Status     RunStatus `json:"status"`
	TotalCases int       `json:"totalCases"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`

	SubmittedAt time.Time  `json:"submittedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
