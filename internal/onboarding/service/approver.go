package service

import (
	"context"
	"fmt"
	"strings"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/environment"
	"vendor-onboarding/internal/onboarding/variables"
)

// ApproverResponse is one approver's verdict on one workflow.
type ApproverResponse struct {
	WorkflowID string          `json:"workflowId"`
	ApproverID int             `json:"approverId"`
	Decision   models.Decision `json:"decision"`
	Reason     string          `json:"reason,omitempty"`
}

// Ack is the generic acknowledgement returned by write operations.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// RecordApproverResponse stores the decision and forwards it to the engine
// through the approver sequence. A failed sequence is audited but the
// decision stays recorded and the workflow status is untouched.
func (s *Service) RecordApproverResponse(ctx context.Context, in ApproverResponse) (*Ack, error) {
	in.Decision = models.Decision(strings.ToUpper(strings.TrimSpace(string(in.Decision))))
	if in.WorkflowID == "" {
		return nil, errors.NewValidationError("workflowId is required")
	}
	if in.Decision == models.DecisionPending {
		return nil, errors.NewValidationError("decision must be APPROVED or REJECTED")
	}

	wf, err := s.machine.RecordApproverDecision(ctx, in.WorkflowID, in.ApproverID, in.Decision, in.Reason)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(map[string]interface{}{
		"workflowId": wf.ID,
		"approverId": in.ApproverID,
	})

	reason := in.Reason
	if reason == "" {
		reason = "No reason provided"
	}
	s.appendTransaction(ctx, wf.ID, models.TxTypeApproverResponse, string(in.Decision),
		fmt.Sprintf("Approver %d decision: %s", in.ApproverID, reason))

	env, err := s.environmentFor(ctx, wf)
	if err != nil {
		return nil, err
	}
	environment.AppendDecision(env, in.ApproverID, in.Decision, in.Reason)

	result, err := s.invoker.Invoke(ctx, s.cfg.ApproverSequence, env)
	if err != nil {
		log.Error("Approver sequence failed", map[string]interface{}{"error": err})
		s.appendTransaction(ctx, wf.ID, models.TxTypeError, models.TxStatusFailed,
			fmt.Sprintf("Approver %d decision could not be forwarded: %v", in.ApproverID, err))
		if _, saveErr := s.writeBack(ctx, wf.ID, env, in, nil); saveErr != nil {
			log.Error("Failed to persist environment", map[string]interface{}{"error": saveErr})
		}
		return &Ack{Success: true, Message: "Decision recorded; forwarding to the workflow engine failed"}, nil
	}

	saved, err := s.writeBack(ctx, wf.ID, env, in, environment.Changed(env, result.Reported))
	if err != nil {
		log.Error("Failed to persist environment", map[string]interface{}{"error": err})
		saved = env
		environment.Merge(saved, result.Reported)
	}
	s.stampExternalID(ctx, wf, saved)
	s.appendTransaction(ctx, wf.ID, models.TxTypeWorkflow, models.TxStatusForwarded,
		fmt.Sprintf("Approver %d decision forwarded (%d steps, %d variables reported)",
			in.ApproverID, len(result.Summary.Steps), len(result.Reported)))

	log.Info("Approver response recorded", map[string]interface{}{
		"decision": string(in.Decision),
	})
	return &Ack{Success: true, Message: "Decision recorded"}, nil
}

// writeBack folds one approver's decision and the variables its sequence
// changed into the latest stored document. Other approvers may have written
// in the meantime; their keys are kept. base seeds a missing document.
func (s *Service) writeBack(ctx context.Context, workflowID string, base *variables.Store, in ApproverResponse, changes []variables.Variable) (*variables.Store, error) {
	var saved *variables.Store
	err := s.envs.Update(ctx, workflowID, func(current *variables.Store) (*variables.Store, error) {
		doc := current
		if doc == nil {
			doc = base.Clone()
		}
		environment.AppendDecision(doc, in.ApproverID, in.Decision, in.Reason)
		environment.Merge(doc, changes)
		saved = doc
		return doc, nil
	})
	return saved, err
}
