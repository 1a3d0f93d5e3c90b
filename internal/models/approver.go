// internal/models/approver.go
package models

import (
	"fmt"
	"time"
)

// Decision is an approver's verdict.
type Decision string

const (
	DecisionPending  Decision = "PENDING"
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Valid reports whether d is one of the known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionPending, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// ApproverRecord holds one approver's decision for one workflow.
type ApproverRecord struct {
	WorkflowID string    `json:"workflowId"`
	Ordinal    int       `json:"approverId"`
	Decision   Decision  `json:"decision"`
	Reason     string    `json:"reason,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ApproverKey is the key used in approverStatuses views, e.g. "approver2".
func ApproverKey(ordinal int) string {
	return fmt.Sprintf("approver%d", ordinal)
}

// ApproverIdentity is a configured approver.
type ApproverIdentity struct {
	Ordinal int    `json:"ordinal"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}

// ApproverQueueItem is one RUNNING workflow still waiting on a given approver.
type ApproverQueueItem struct {
	ApplicationView
	CurrentDecision Decision `json:"currentDecision"`
}
