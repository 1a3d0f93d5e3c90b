// internal/workers/onboarding/record-decision/handler.go
package recorddecision

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
	"vendor-onboarding/internal/onboarding/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "record-onboarding-decision"
)

// DecisionService applies a terminal decision to the correlated workflow.
type DecisionService interface {
	HandleDecision(ctx context.Context, source string, status models.WorkflowStatus, payload map[string]interface{}) (*service.CallbackResult, error)
}

type Handler struct {
	config       *Config
	service      DecisionService
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, svc DecisionService, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		service:      svc,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	vars, err := jobVariables(job.GetVariables())
	if err != nil {
		err = errors.NewValidationError(fmt.Sprintf("parse job variables: %v", err))
		h.fail(ctx, client, job, err)
		return err
	}
	if _, ok := vars["processInstanceKey"]; !ok {
		vars["processInstanceKey"] = job.ProcessInstanceKey
	}

	output, err := h.execute(ctx, vars)
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}
	if _, err := cmd.Send(ctx); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) execute(ctx context.Context, vars map[string]interface{}) (*Output, error) {
	status, err := decisionStatus(vars)
	if err != nil {
		return nil, err
	}

	res, err := h.service.HandleDecision(ctx, service.SourceZeebe, status, vars)
	if err != nil {
		return nil, err
	}

	h.logger.Info("decision recorded", map[string]interface{}{
		"workflowId": res.WorkflowID,
		"status":     string(res.Status),
		"changed":    res.Changed,
		"matched":    res.Matched,
	})

	return &Output{
		OnboardingWorkflowID: res.WorkflowID,
		OnboardingStatus:     string(res.Status),
		StatusChanged:        res.Changed,
		CorrelationStrategy:  res.Strategy,
		Matched:              res.Matched,
	}, nil
}

// jobVariables decodes the job payload keeping numbers as json.Number, so
// process instance keys above 2^53 are not rounded.
func jobVariables(raw string) (map[string]interface{}, error) {
	vars := map[string]interface{}{}
	if strings.TrimSpace(raw) == "" {
		return vars, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// decisionStatus reads the terminal status from "decision", "status" or the
// boolean "approved", in that order.
func decisionStatus(vars map[string]interface{}) (models.WorkflowStatus, error) {
	raw, err := json.Marshal(vars)
	if err != nil {
		return "", errors.NewValidationError(err.Error())
	}
	var in Input
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", errors.NewValidationError(fmt.Sprintf("parse input: %v", err))
	}

	for _, v := range []string{in.Decision, in.Status} {
		switch strings.ToUpper(strings.TrimSpace(v)) {
		case "APPROVED", "APPROVE":
			return models.StatusApproved, nil
		case "REJECTED", "REJECT":
			return models.StatusRejected, nil
		}
	}
	if in.Approved != nil {
		if *in.Approved {
			return models.StatusApproved, nil
		}
		return models.StatusRejected, nil
	}
	return "", errors.NewValidationError("job carries no decision: expected decision, status or approved")
}
