package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/environment"
	"vendor-onboarding/internal/onboarding/statemachine"
	"vendor-onboarding/internal/onboarding/variables"
)

// SubmitResult is returned to the applicant.
type SubmitResult struct {
	WorkflowID string                `json:"workflowId"`
	Status     models.WorkflowStatus `json:"status"`
}

// SubmitApplication validates the form, creates the workflow with N pending
// approver records and runs the start sequence. A failed start sequence
// leaves the workflow in ERROR but still returns its id.
func (s *Service) SubmitApplication(ctx context.Context, form map[string]interface{}, baseURL string) (*SubmitResult, error) {
	if s.validator != nil {
		verrs, err := s.validator.Validate(form)
		if err != nil {
			return nil, err
		}
		if len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i, v := range verrs {
				msgs[i] = v.Field + ": " + v.Message
			}
			return nil, errors.NewValidationError(strings.Join(msgs, "; "))
		}
	}

	app, err := models.ParseApplication(form)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("malformed application: %v", err))
	}
	formData, err := json.Marshal(form)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("malformed application: %v", err))
	}
	if baseURL == "" {
		baseURL = s.cfg.BaseURL
	}

	workflowID := s.newID()
	wf, err := s.machine.Submit(ctx, statemachine.SubmitInput{
		WorkflowID:     workflowID,
		ApplicantEmail: app.ApplicantEmail,
		BusinessName:   app.BusinessName,
		FormData:       formData,
	})
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(map[string]interface{}{"workflowId": wf.ID})

	for _, f := range app.UploadedFiles {
		rec := &models.FileRecord{
			WorkflowID:   wf.ID,
			FileID:       f.FileID,
			OriginalName: f.OriginalName,
			Filename:     path.Base(f.PublicURL),
			PublicURL:    f.PublicURL,
			Size:         f.Size,
			MimeType:     f.Type,
			CreatedAt:    s.now(),
		}
		if err := s.store.CreateFileRecord(ctx, rec); err != nil {
			log.Error("Failed to store file record", map[string]interface{}{
				"fileId": rec.FileID,
				"error":  err,
			})
		}
	}
	s.appendTransaction(ctx, wf.ID, models.TxTypeSubmission, models.TxStatusSubmitted,
		"Application submitted by "+wf.ApplicantEmail)

	env := s.synth.BuildInitial(app, wf.ID, baseURL)
	if err := s.envs.Save(ctx, wf.ID, env); err != nil {
		return nil, storageErr("save environment", err)
	}

	result, err := s.invoker.Invoke(ctx, s.cfg.StartSequence, env)
	if err != nil {
		log.Error("Start sequence failed", map[string]interface{}{"error": err})
		if _, markErr := s.machine.MarkError(ctx, wf.ID, err.Error()); markErr != nil {
			log.Error("Failed to mark workflow as error", map[string]interface{}{"error": markErr})
		}
		s.appendTransaction(ctx, wf.ID, models.TxTypeError, models.TxStatusFailed,
			"Workflow start failed: "+err.Error())
		s.dropEnvironment(ctx, wf.ID)
		return &SubmitResult{WorkflowID: wf.ID, Status: models.StatusError}, nil
	}

	applied := environment.Merge(env, result.Reported)
	if err := s.envs.Save(ctx, wf.ID, env); err != nil {
		log.Error("Failed to persist reported variables", map[string]interface{}{"error": err})
	}
	s.stampExternalID(ctx, wf, env)

	s.appendTransaction(ctx, wf.ID, models.TxTypeWorkflow, models.TxStatusStarted,
		fmt.Sprintf("Workflow started (%d steps, %d variables reported)", len(result.Summary.Steps), applied))
	log.Info("Application submitted", map[string]interface{}{
		"businessName": wf.BusinessName,
		"duration":     result.Summary.Duration.String(),
	})

	return &SubmitResult{WorkflowID: wf.ID, Status: models.StatusRunning}, nil
}

// environmentFor loads the document of a running workflow, rebuilding it from
// the stored form when it has expired or was never written.
func (s *Service) environmentFor(ctx context.Context, wf *models.Workflow) (*variables.Store, error) {
	env, err := s.envs.Load(ctx, wf.ID)
	if err != nil {
		return nil, storageErr("load environment", err)
	}
	if env != nil {
		return env, nil
	}

	form := map[string]interface{}{}
	if len(wf.FormData) > 0 {
		if err := json.Unmarshal(wf.FormData, &form); err != nil {
			return nil, errors.NewStorageError("decode form data", err)
		}
	}
	app, err := models.ParseApplication(form)
	if err != nil {
		return nil, errors.NewStorageError("decode form data", err)
	}
	s.logger.Warn("Environment document missing, rebuilding from form data", map[string]interface{}{
		"workflowId": wf.ID,
	})
	env = s.synth.BuildInitial(app, wf.ID, s.cfg.BaseURL)
	if wf.ExternalID != "" && s.cfg.CorrelationVariable != "" {
		env.Set(s.cfg.CorrelationVariable, wf.ExternalID)
	}
	return env, nil
}
