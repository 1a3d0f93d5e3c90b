package service

import (
	"context"
	stderrors "errors"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/common/metrics"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/correlator"
)

// Callback sources.
const (
	SourceWebhook = "webhook"
	SourceZeebe   = "zeebe"
)

// CallbackResult acknowledges a decision callback. Matched is false when no
// workflow could be correlated; the caller is still acknowledged.
type CallbackResult struct {
	Success    bool                  `json:"success"`
	Matched    bool                  `json:"matched"`
	WorkflowID string                `json:"workflowId,omitempty"`
	Status     models.WorkflowStatus `json:"status,omitempty"`
	Changed    bool                  `json:"changed"`
	Strategy   string                `json:"strategy,omitempty"`
}

// HandleApprovalCallback resolves the correlated workflow to APPROVED.
func (s *Service) HandleApprovalCallback(ctx context.Context, payload map[string]interface{}) (*CallbackResult, error) {
	return s.HandleDecision(ctx, SourceWebhook, models.StatusApproved, payload)
}

// HandleRejectionCallback resolves the correlated workflow to REJECTED.
func (s *Service) HandleRejectionCallback(ctx context.Context, payload map[string]interface{}) (*CallbackResult, error) {
	return s.HandleDecision(ctx, SourceWebhook, models.StatusRejected, payload)
}

// HandleDecision correlates payload to a workflow and applies the terminal
// status. Duplicate and late callbacks are acknowledged without effect.
func (s *Service) HandleDecision(ctx context.Context, source string, status models.WorkflowStatus, payload map[string]interface{}) (*CallbackResult, error) {
	match, err := s.correlator.Resolve(ctx, correlator.Payload(payload))
	if err != nil {
		if stderrors.Is(err, correlator.ErrNoMatch) {
			metrics.CallbacksReceived.WithLabelValues(source, "none", "miss").Inc()
			s.logger.Warn("Decision callback did not match any workflow", map[string]interface{}{
				"source": source,
				"status": string(status),
				"error":  errors.NewCorrelationMissError(err.Error()).Error(),
			})
			return &CallbackResult{Success: true}, nil
		}
		return nil, storageErr("correlate callback", err)
	}

	wf, changed, err := s.machine.Resolve(ctx, match.Workflow.ID, status)
	if err != nil {
		metrics.CallbacksReceived.WithLabelValues(source, match.Strategy, "error").Inc()
		return nil, err
	}

	res := &CallbackResult{
		Success:    true,
		Matched:    true,
		WorkflowID: wf.ID,
		Status:     wf.Status,
		Changed:    changed,
		Strategy:   match.Strategy,
	}
	if !changed {
		metrics.CallbacksReceived.WithLabelValues(source, match.Strategy, "duplicate").Inc()
		s.logger.Info("Decision callback ignored, workflow already terminal", map[string]interface{}{
			"workflowId": wf.ID,
			"status":     string(wf.Status),
			"requested":  string(status),
		})
		return res, nil
	}

	metrics.CallbacksReceived.WithLabelValues(source, match.Strategy, "applied").Inc()
	txType := models.TxTypeWebhook
	if source == SourceZeebe {
		txType = models.TxTypeWorkflow
	}
	s.appendTransaction(ctx, wf.ID, txType, string(status),
		"Workflow "+string(status)+" via "+source+" ("+match.Strategy+")")
	s.dropEnvironment(ctx, wf.ID)

	if s.notifier != nil {
		ev := models.DecisionEvent{
			WorkflowID:     wf.ID,
			ApplicantEmail: wf.ApplicantEmail,
			BusinessName:   wf.BusinessName,
			Status:         wf.Status,
			Strategy:       match.Strategy,
			Source:         source,
			DecidedAt:      s.now(),
		}
		if err := s.notifier.DecisionMade(ctx, ev); err != nil {
			s.logger.Warn("Decision notification failed", map[string]interface{}{
				"workflowId": wf.ID,
				"error":      err,
			})
		}
	}
	return res, nil
}
