package correlator

import (
	"context"

	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
)

// Payload keys understood by each strategy.
var (
	EmailKeys      = []string{"applicant_email", "applicantEmail", "contact_email", "email"}
	ExternalIDKeys = []string{"correlation_id", "workflowInstanceId", "processInstanceKey", "workflowId", "workflow_id"}
	WorkflowIDKeys = []string{"workflowId", "workflow_id"}
	BusinessKeys   = []string{"business_name", "businessName"}
)

// ApplicantEmail prefers the most recent RUNNING workflow for the email and
// falls back to the most recent one of any status.
type ApplicantEmail struct{}

func (ApplicantEmail) Name() string { return "applicant_email" }

func (ApplicantEmail) Lookup(ctx context.Context, store storage.Store, p Payload) (*models.Workflow, error) {
	email := p.Field(EmailKeys...)
	if email == "" {
		return nil, nil
	}
	running, err := store.ListWorkflows(ctx, models.WorkflowFilter{
		ApplicantEmail: email,
		Status:         models.StatusRunning,
		Limit:          1,
	})
	if err != nil {
		return nil, err
	}
	if len(running) > 0 {
		return &running[0], nil
	}
	return store.GetWorkflowByApplicantEmail(ctx, email)
}

// ExternalID matches the correlation identifier the engine reported back.
type ExternalID struct{}

func (ExternalID) Name() string { return "external_id" }

func (ExternalID) Lookup(ctx context.Context, store storage.Store, p Payload) (*models.Workflow, error) {
	id := p.Field(ExternalIDKeys...)
	if id == "" {
		return nil, nil
	}
	list, err := store.ListWorkflows(ctx, models.WorkflowFilter{ExternalID: id, Limit: 1})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// WorkflowID matches the local identifier echoed by the engine.
type WorkflowID struct{}

func (WorkflowID) Name() string { return "workflow_id" }

func (WorkflowID) Lookup(ctx context.Context, store storage.Store, p Payload) (*models.Workflow, error) {
	id := p.Field(WorkflowIDKeys...)
	if id == "" {
		return nil, nil
	}
	return store.GetWorkflowByID(ctx, id)
}

// BusinessName matches the most recent RUNNING workflow for a business.
type BusinessName struct{}

func (BusinessName) Name() string { return "business_name" }

func (BusinessName) Lookup(ctx context.Context, store storage.Store, p Payload) (*models.Workflow, error) {
	name := p.Field(BusinessKeys...)
	if name == "" {
		return nil, nil
	}
	list, err := store.ListWorkflows(ctx, models.WorkflowFilter{
		BusinessName: name,
		Status:       models.StatusRunning,
		Limit:        1,
	})
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}
