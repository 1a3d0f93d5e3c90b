// internal/models/workflow.go
package models

import (
	"encoding/json"
	"time"
)

// WorkflowStatus is the canonical lifecycle state of a workflow.
type WorkflowStatus string

const (
	StatusRunning  WorkflowStatus = "RUNNING"
	StatusApproved WorkflowStatus = "APPROVED"
	StatusRejected WorkflowStatus = "REJECTED"
	StatusError    WorkflowStatus = "ERROR"
)

// IsTerminal reports whether no further transition is allowed.
func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusError
}

// Workflow is one tracked approval request.
type Workflow struct {
	ID             string          `json:"workflowId"`
	ApplicantEmail string          `json:"applicantEmail"`
	BusinessName   string          `json:"businessName"`
	Status         WorkflowStatus  `json:"status"`
	ExternalID     string          `json:"externalId,omitempty"`
	FormData       json.RawMessage `json:"formData,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// WorkflowFilter narrows ListWorkflows. Zero values match everything.
type WorkflowFilter struct {
	Status         WorkflowStatus
	ApplicantEmail string
	BusinessName   string
	ExternalID     string
	Limit          int
}

// WorkflowStatusView is the read model returned to status queries.
type WorkflowStatusView struct {
	WorkflowID       string            `json:"workflowId"`
	Status           WorkflowStatus    `json:"status"`
	CurrentStep      string            `json:"currentStep"`
	ApproverStatuses map[string]string `json:"approverStatuses"`
	LastUpdate       time.Time         `json:"lastUpdate"`
	FormData         json.RawMessage   `json:"formData,omitempty"`
}

// ApplicationView is a workflow with its derived progress and uploaded files,
// as listed to reviewers.
type ApplicationView struct {
	Workflow
	CurrentStep      string            `json:"currentStep"`
	ApproverStatuses map[string]string `json:"approverStatuses"`
	Files            []FileRecord      `json:"files"`
}
