// Package storage defines the persistence capability shared by every
// backend. Reads of missing entities return nil, nil; only I/O failures
// return errors.
package storage

import (
	"context"

	"github.com/google/uuid"

	"vendor-onboarding/internal/models"
)

// Store is implemented by the postgres, sqlite, elasticsearch and memory backends.
type Store interface {
	CreateWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	// GetWorkflowByApplicantEmail returns the most recently created workflow for email.
	GetWorkflowByApplicantEmail(ctx context.Context, email string) (*models.Workflow, error)
	// UpdateWorkflowStatus moves id from one status to another. updated is
	// false when the stored status no longer equals from.
	UpdateWorkflowStatus(ctx context.Context, id string, from, to models.WorkflowStatus) (updated bool, err error)
	SetExternalID(ctx context.Context, id, externalID string) error
	// ListWorkflows returns matches ordered by creation time, newest first.
	ListWorkflows(ctx context.Context, filter models.WorkflowFilter) ([]models.Workflow, error)

	UpsertApproverAction(ctx context.Context, rec *models.ApproverRecord) error
	ListApproverActions(ctx context.Context, workflowID string) ([]models.ApproverRecord, error)

	AppendTransaction(ctx context.Context, tx *models.Transaction) error
	// ListTransactions returns entries newest first; an empty workflowID lists all.
	ListTransactions(ctx context.Context, workflowID string, limit int) ([]models.Transaction, error)

	// CreateFileRecord stores one upload. A record without a FileID is given
	// a generated one, so uploads the portal did not label never collide.
	CreateFileRecord(ctx context.Context, f *models.FileRecord) error
	ListFileRecords(ctx context.Context, workflowID string) ([]models.FileRecord, error)

	Health(ctx context.Context) error
	Close() error
}

// AssignFileID gives f a random identifier when the upload carried none.
func AssignFileID(f *models.FileRecord) {
	if f.FileID == "" {
		f.FileID = uuid.NewString()
	}
}
