// Package statemachine owns the canonical workflow status and the approver
// decisions, and enforces the allowed transitions between them.
package statemachine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/common/metrics"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
)

// Step labels reported by CurrentStep.
const (
	StepCompleted    = "Completed"
	StepRejected     = "Rejected"
	StepWaitingAll   = "Waiting for all approvers"
	StepAllResponded = "All approvers responded — processing"
)

// Machine applies workflow transitions against a storage backend.
type Machine struct {
	store     storage.Store
	approvers int
	logger    logger.Logger
	now       func() time.Time
}

func New(store storage.Store, approverCount int, log logger.Logger) *Machine {
	return &Machine{
		store:     store,
		approvers: approverCount,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ApproverCount is N.
func (m *Machine) ApproverCount() int {
	return m.approvers
}

// SubmitInput carries a validated submission.
type SubmitInput struct {
	WorkflowID     string
	ApplicantEmail string
	BusinessName   string
	FormData       json.RawMessage
}

// Submit creates the workflow in RUNNING and one PENDING record per approver.
func (m *Machine) Submit(ctx context.Context, in SubmitInput) (*models.Workflow, error) {
	var missing []string
	if strings.TrimSpace(in.ApplicantEmail) == "" {
		missing = append(missing, "applicant_email")
	}
	if strings.TrimSpace(in.BusinessName) == "" {
		missing = append(missing, "business_name")
	}
	if in.WorkflowID == "" {
		missing = append(missing, "workflow_id")
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}

	ts := m.now()
	wf := &models.Workflow{
		ID:             in.WorkflowID,
		ApplicantEmail: strings.TrimSpace(in.ApplicantEmail),
		BusinessName:   strings.TrimSpace(in.BusinessName),
		Status:         models.StatusRunning,
		FormData:       in.FormData,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if err := m.store.CreateWorkflow(ctx, wf); err != nil {
		return nil, errors.NewStorageError("create workflow", err)
	}

	for ordinal := 1; ordinal <= m.approvers; ordinal++ {
		rec := &models.ApproverRecord{
			WorkflowID: wf.ID,
			Ordinal:    ordinal,
			Decision:   models.DecisionPending,
			UpdatedAt:  ts,
		}
		if err := m.store.UpsertApproverAction(ctx, rec); err != nil {
			return nil, errors.NewStorageError("create approver record", err)
		}
	}

	metrics.WorkflowTransitions.WithLabelValues(string(models.StatusRunning)).Inc()
	m.logger.Info("Workflow created", map[string]interface{}{
		"workflowId": wf.ID,
		"approvers":  m.approvers,
	})
	return wf, nil
}

// RecordApproverDecision upserts one approver's decision. It never changes
// the workflow status.
func (m *Machine) RecordApproverDecision(ctx context.Context, workflowID string, ordinal int, decision models.Decision, reason string) (*models.Workflow, error) {
	if ordinal < 1 || ordinal > m.approvers {
		return nil, errors.NewValidationError(fmt.Sprintf("approver ordinal must be between 1 and %d, got %d", m.approvers, ordinal))
	}
	if !decision.Valid() {
		return nil, errors.NewValidationError(fmt.Sprintf("unknown decision %q", decision))
	}

	wf, err := m.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf.Status != models.StatusRunning {
		return nil, errors.NewWorkflowNotRunningError(workflowID, string(wf.Status))
	}

	rec := &models.ApproverRecord{
		WorkflowID: workflowID,
		Ordinal:    ordinal,
		Decision:   decision,
		Reason:     reason,
		UpdatedAt:  m.now(),
	}
	if err := m.store.UpsertApproverAction(ctx, rec); err != nil {
		return nil, errors.NewStorageError("upsert approver record", err)
	}

	metrics.ApproverDecisions.WithLabelValues(models.ApproverKey(ordinal), string(decision)).Inc()
	return wf, nil
}

// Resolve moves a RUNNING workflow to APPROVED or REJECTED. A workflow that
// is already terminal is left alone and changed is false. Concurrent callers
// race on a conditional update; only one observes changed == true.
func (m *Machine) Resolve(ctx context.Context, workflowID string, status models.WorkflowStatus) (wf *models.Workflow, changed bool, err error) {
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, false, errors.NewValidationError(fmt.Sprintf("cannot resolve to %q", status))
	}
	return m.transition(ctx, workflowID, status)
}

// MarkError moves a RUNNING workflow to ERROR. Terminal workflows are left alone.
func (m *Machine) MarkError(ctx context.Context, workflowID, reason string) (changed bool, err error) {
	_, changed, err = m.transition(ctx, workflowID, models.StatusError)
	if changed {
		m.logger.Warn("Workflow marked as error", map[string]interface{}{
			"workflowId": workflowID,
			"reason":     reason,
		})
	}
	return changed, err
}

func (m *Machine) transition(ctx context.Context, workflowID string, to models.WorkflowStatus) (*models.Workflow, bool, error) {
	wf, err := m.load(ctx, workflowID)
	if err != nil {
		return nil, false, err
	}
	if wf.Status.IsTerminal() {
		return wf, false, nil
	}

	updated, err := m.store.UpdateWorkflowStatus(ctx, workflowID, wf.Status, to)
	if err != nil {
		return nil, false, errors.NewStorageError("update workflow status", err)
	}
	if !updated {
		// lost the race; report what won
		current, err := m.load(ctx, workflowID)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}

	wf.Status = to
	wf.UpdatedAt = m.now()
	metrics.WorkflowTransitions.WithLabelValues(string(to)).Inc()
	m.logger.Info("Workflow status changed", map[string]interface{}{
		"workflowId": workflowID,
		"status":     string(to),
	})
	return wf, true, nil
}

func (m *Machine) load(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := m.store.GetWorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, errors.NewStorageError("get workflow", err)
	}
	if wf == nil {
		return nil, errors.NewWorkflowNotFoundError(workflowID)
	}
	return wf, nil
}

// View assembles the status read model for one workflow.
func (m *Machine) View(ctx context.Context, workflowID string) (*models.WorkflowStatusView, error) {
	wf, err := m.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	records, err := m.store.ListApproverActions(ctx, workflowID)
	if err != nil {
		return nil, errors.NewStorageError("list approver records", err)
	}

	statuses := make(map[string]string, len(records))
	lastUpdate := wf.UpdatedAt
	for _, rec := range records {
		statuses[models.ApproverKey(rec.Ordinal)] = string(rec.Decision)
		if rec.UpdatedAt.After(lastUpdate) {
			lastUpdate = rec.UpdatedAt
		}
	}

	return &models.WorkflowStatusView{
		WorkflowID:       wf.ID,
		Status:           wf.Status,
		CurrentStep:      CurrentStep(wf.Status, records),
		ApproverStatuses: statuses,
		LastUpdate:       lastUpdate,
		FormData:         wf.FormData,
	}, nil
}

// CurrentStep derives the human-readable progress label. It works on
// whatever records are present, even fewer than N.
func CurrentStep(status models.WorkflowStatus, records []models.ApproverRecord) string {
	switch status {
	case models.StatusApproved:
		return StepCompleted
	case models.StatusRejected:
		return StepRejected
	}

	approved, pending := 0, 0
	for _, rec := range records {
		switch rec.Decision {
		case models.DecisionApproved:
			approved++
		case models.DecisionPending:
			pending++
		}
	}

	switch {
	case pending == len(records):
		return StepWaitingAll
	case pending == 0:
		return StepAllResponded
	default:
		return fmt.Sprintf("%d approved, %d pending", approved, pending)
	}
}
