// internal/models/transaction.go
package models

import "time"

// Transaction types and statuses written by the onboarding service.
const (
	TxTypeSubmission       = "SUBMISSION"
	TxTypeWorkflow         = "WORKFLOW"
	TxTypeApproverResponse = "APPROVER_RESPONSE"
	TxTypeWebhook          = "WEBHOOK"
	TxTypeError            = "ERROR"

	TxStatusSubmitted = "SUBMITTED"
	TxStatusStarted   = "STARTED"
	TxStatusForwarded = "DECISION_FORWARDED"
	TxStatusFailed    = "FAILED"
)

// Transaction is an immutable audit log entry.
type Transaction struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflowId"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"createdAt"`

	// Joined from the owning workflow on listing; not persisted.
	BusinessName   string `json:"businessName,omitempty"`
	ApplicantEmail string `json:"applicantEmail,omitempty"`
}
