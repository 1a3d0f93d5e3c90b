// internal/models/notification.go
package models

import "time"

// DecisionEvent is published when a workflow reaches a terminal decision.
type DecisionEvent struct {
	WorkflowID     string         `json:"workflowId"`
	ApplicantEmail string         `json:"applicantEmail"`
	BusinessName   string         `json:"businessName"`
	Status         WorkflowStatus `json:"status"`
	Strategy       string         `json:"correlationStrategy"`
	Source         string         `json:"source"` // "webhook" or "zeebe"
	DecidedAt      time.Time      `json:"decidedAt"`
}

type NotificationTemplate struct {
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	HTMLBody string `json:"htmlBody,omitempty"`
}
