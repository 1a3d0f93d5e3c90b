package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/statemachine"
)

// DefaultListLimit caps list queries that do not set their own limit.
const DefaultListLimit = 100

// GetWorkflowStatus returns the status read model. It is the only read that
// reports an unknown workflow as an error.
func (s *Service) GetWorkflowStatus(ctx context.Context, workflowID string) (*models.WorkflowStatusView, error) {
	return s.machine.View(ctx, workflowID)
}

// ListApplications returns workflows newest first with their progress and files.
func (s *Service) ListApplications(ctx context.Context, filter models.WorkflowFilter) ([]models.ApplicationView, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	list, err := s.store.ListWorkflows(ctx, filter)
	if err != nil {
		return nil, storageErr("list workflows", err)
	}

	views := make([]models.ApplicationView, 0, len(list))
	for _, wf := range list {
		view, _, err := s.applicationView(ctx, wf)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *Service) applicationView(ctx context.Context, wf models.Workflow) (*models.ApplicationView, []models.ApproverRecord, error) {
	records, err := s.store.ListApproverActions(ctx, wf.ID)
	if err != nil {
		return nil, nil, storageErr("list approver records", err)
	}
	files, err := s.store.ListFileRecords(ctx, wf.ID)
	if err != nil {
		return nil, nil, storageErr("list file records", err)
	}
	if files == nil {
		files = []models.FileRecord{}
	}

	statuses := make(map[string]string, len(records))
	for _, rec := range records {
		statuses[models.ApproverKey(rec.Ordinal)] = string(rec.Decision)
	}
	return &models.ApplicationView{
		Workflow:         wf,
		CurrentStep:      statemachine.CurrentStep(wf.Status, records),
		ApproverStatuses: statuses,
		Files:            files,
	}, records, nil
}

// ListTransactions returns audit entries newest first.
func (s *Service) ListTransactions(ctx context.Context, workflowID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	txs, err := s.store.ListTransactions(ctx, workflowID, limit)
	if err != nil {
		return nil, storageErr("list transactions", err)
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return txs, nil
}

// ApproverQueue lists RUNNING workflows on which approver ordinal has not yet
// decided. A missing record counts as pending.
func (s *Service) ApproverQueue(ctx context.Context, ordinal int) ([]models.ApproverQueueItem, error) {
	if n := s.ApproverCount(); ordinal < 1 || ordinal > n {
		return nil, errors.NewValidationError(fmt.Sprintf("approver id must be between 1 and %d, got %d", n, ordinal))
	}

	running, err := s.store.ListWorkflows(ctx, models.WorkflowFilter{Status: models.StatusRunning})
	if err != nil {
		return nil, storageErr("list workflows", err)
	}

	queue := make([]models.ApproverQueueItem, 0, len(running))
	for _, wf := range running {
		view, records, err := s.applicationView(ctx, wf)
		if err != nil {
			return nil, err
		}
		current := models.DecisionPending
		for _, rec := range records {
			if rec.Ordinal == ordinal {
				current = rec.Decision
			}
		}
		if current != models.DecisionPending {
			continue
		}
		queue = append(queue, models.ApproverQueueItem{ApplicationView: *view, CurrentDecision: current})
	}
	return queue, nil
}

// TransactionInput is a manually recorded audit entry.
type TransactionInput struct {
	WorkflowID string `json:"workflowId"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Details    string `json:"details"`
}

// AddTransaction appends an audit entry for an existing workflow.
func (s *Service) AddTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	var missing []string
	if strings.TrimSpace(in.WorkflowID) == "" {
		missing = append(missing, "workflowId")
	}
	if strings.TrimSpace(in.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(in.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return nil, errors.NewValidationError("missing required fields: " + strings.Join(missing, ", "))
	}

	wf, err := s.store.GetWorkflowByID(ctx, in.WorkflowID)
	if err != nil {
		return nil, storageErr("get workflow", err)
	}
	if wf == nil {
		return nil, errors.NewWorkflowNotFoundError(in.WorkflowID)
	}

	tx := &models.Transaction{
		ID:         uuid.NewString(),
		WorkflowID: wf.ID,
		Type:       strings.ToUpper(in.Type),
		Status:     strings.ToUpper(in.Status),
		Details:    in.Details,
		CreatedAt:  s.now(),
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		return nil, storageErr("append transaction", err)
	}
	return tx, nil
}

// HealthReport summarises component reachability and workflow counts.
type HealthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Workflows  map[string]int    `json:"workflows,omitempty"`
	Strategies []string          `json:"correlationStrategies"`
	Approvers  int               `json:"approvers"`
}

// Health checks storage and every registered component. Status is "healthy"
// only when all of them respond.
func (s *Service) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:     "healthy",
		Components: map[string]string{},
		Strategies: s.correlator.Strategies(),
		Approvers:  s.ApproverCount(),
	}

	checks := append([]namedCheck{{"storage", s.store.Health}}, s.healthCheck...)
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			report.Status = "degraded"
			report.Components[c.name] = err.Error()
			continue
		}
		report.Components[c.name] = "ok"
	}

	if report.Components["storage"] == "ok" {
		report.Workflows = map[string]int{}
		for _, st := range []models.WorkflowStatus{models.StatusRunning, models.StatusApproved, models.StatusRejected, models.StatusError} {
			list, err := s.store.ListWorkflows(ctx, models.WorkflowFilter{Status: st})
			if err != nil {
				continue
			}
			report.Workflows[string(st)] = len(list)
		}
	}
	return report
}
