// Package trigger runs named step sequences from the script collection
// against one workflow's variables.
package trigger

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"vendor-onboarding/internal/common/errors"
	commonhttp "vendor-onboarding/internal/common/http"
	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/common/metrics"
	"vendor-onboarding/internal/onboarding/variables"
	"vendor-onboarding/pkg/collection"
)

// DefaultTimeout bounds one sequence when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// StepResult describes one executed step.
type StepResult struct {
	Name       string        `json:"name"`
	Kind       string        `json:"kind"`
	StatusCode int           `json:"statusCode,omitempty"`
	Wrote      []string      `json:"wrote,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Summary describes a completed sequence.
type Summary struct {
	Collection string        `json:"collection"`
	Version    string        `json:"version"`
	Steps      []StepResult  `json:"steps"`
	Duration   time.Duration `json:"duration"`
}

// Result of a successful invocation. Reported holds the complete final
// variable context.
type Result struct {
	Summary  Summary
	Reported []variables.Variable
}

// Invoker executes step sequences. It holds no per-invocation state and is
// safe for concurrent use.
type Invoker struct {
	collection *collection.Collection
	http       *commonhttp.Client
	zeebe      ZeebeGateway
	timeout    time.Duration
	logger     logger.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithTimeout sets the per-sequence ceiling.
func WithTimeout(d time.Duration) Option {
	return func(inv *Invoker) {
		if d > 0 {
			inv.timeout = d
		}
	}
}

// WithHTTPClient replaces the client used by http and oauth2 steps.
func WithHTTPClient(c *commonhttp.Client) Option {
	return func(inv *Invoker) { inv.http = c }
}

// WithZeebe enables zeebe.* steps.
func WithZeebe(gw ZeebeGateway) Option {
	return func(inv *Invoker) { inv.zeebe = gw }
}

func NewInvoker(col *collection.Collection, log logger.Logger, opts ...Option) *Invoker {
	inv := &Invoker{
		collection: col,
		timeout:    DefaultTimeout,
		logger:     log,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.http == nil {
		inv.http = commonhttp.NewClient(inv.timeout)
	}
	return inv
}

// Invoke runs steps in order against a context seeded from store. The store
// itself is never modified; callers merge Result.Reported back.
func (inv *Invoker) Invoke(ctx context.Context, steps []string, store *variables.Store) (*Result, error) {
	sequence := strings.Join(steps, " > ")
	start := time.Now()

	resolved, err := inv.collection.Resolve(steps)
	if err != nil {
		metrics.TriggerInvocations.WithLabelValues(sequence, "invalid").Inc()
		return nil, errors.NewTriggerExecutionError(sequence, err)
	}

	ctx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	rc := newRunContext(store)
	workflowID, _ := rc.get("workflow_id")
	log := inv.logger.WithFields(map[string]interface{}{
		"sequence":   sequence,
		"workflowId": workflowID,
	})

	summary := Summary{Collection: inv.collection.Name, Version: inv.collection.Version}

	for _, step := range resolved {
		stepStart := time.Now()
		res, err := inv.runStep(ctx, step, rc)
		res.Name = step.Name
		res.Kind = step.Kind
		res.Duration = time.Since(stepStart)
		summary.Steps = append(summary.Steps, res)

		if err != nil {
			metrics.TriggerStepFailures.WithLabelValues(step.Name, step.Kind).Inc()
			metrics.TriggerDuration.WithLabelValues(sequence).Observe(time.Since(start).Seconds())

			if ctx.Err() != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
				metrics.TriggerInvocations.WithLabelValues(sequence, "timeout").Inc()
				log.Warn("Step sequence timed out", map[string]interface{}{
					"step":    step.Name,
					"timeout": inv.timeout.String(),
				})
				return nil, errors.NewTriggerTimeoutError(sequence, fmt.Errorf("step %q: %w", step.Name, err))
			}

			metrics.TriggerInvocations.WithLabelValues(sequence, "failed").Inc()
			log.Warn("Step failed", map[string]interface{}{
				"step":  step.Name,
				"kind":  step.Kind,
				"error": err.Error(),
			})
			return nil, errors.NewTriggerExecutionError(sequence, fmt.Errorf("step %q: %w", step.Name, err))
		}

		log.Debug("Step completed", map[string]interface{}{
			"step":     step.Name,
			"duration": res.Duration.String(),
		})
	}

	summary.Duration = time.Since(start)
	metrics.TriggerInvocations.WithLabelValues(sequence, "success").Inc()
	metrics.TriggerDuration.WithLabelValues(sequence).Observe(summary.Duration.Seconds())

	log.Info("Step sequence completed", map[string]interface{}{
		"steps":    len(summary.Steps),
		"duration": summary.Duration.String(),
	})

	return &Result{Summary: summary, Reported: rc.reported()}, nil
}

func sortedCaptureNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
