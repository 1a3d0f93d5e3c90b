// Package service implements the onboarding operations exposed over HTTP and
// to the decision job worker. It owns no state of its own; everything lives
// in storage and the per-workflow environment documents.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/common/validation"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/onboarding/correlator"
	"vendor-onboarding/internal/onboarding/environment"
	"vendor-onboarding/internal/onboarding/statemachine"
	"vendor-onboarding/internal/onboarding/trigger"
	"vendor-onboarding/internal/onboarding/variables"
	"vendor-onboarding/internal/storage"
)

// Invoker runs a named step sequence against a variable store.
type Invoker interface {
	Invoke(ctx context.Context, steps []string, store *variables.Store) (*trigger.Result, error)
}

// EnvironmentStore persists one variable document per workflow.
type EnvironmentStore interface {
	Save(ctx context.Context, workflowID string, doc *variables.Store) error
	Load(ctx context.Context, workflowID string) (*variables.Store, error)
	// Update applies fn to the latest stored document atomically with
	// respect to other writers of the same workflow.
	Update(ctx context.Context, workflowID string, fn func(current *variables.Store) (*variables.Store, error)) error
	Delete(ctx context.Context, workflowID string) error
}

type Validator interface {
	Validate(doc map[string]interface{}) ([]validation.ValidationError, error)
}

type Notifier interface {
	DecisionMade(ctx context.Context, ev models.DecisionEvent) error
}

// Config holds the sequences and naming the service needs at runtime.
type Config struct {
	StartSequence    []string
	ApproverSequence []string
	// CorrelationVariable names the reported variable carrying the engine's
	// identifier for the workflow; it is stored as the external id.
	CorrelationVariable string
	BaseURL             string
}

type Service struct {
	cfg         Config
	store       storage.Store
	envs        EnvironmentStore
	synth       *environment.Synthesizer
	invoker     Invoker
	machine     *statemachine.Machine
	correlator  *correlator.Correlator
	validator   Validator
	notifier    Notifier
	logger      logger.Logger
	newID       func() string
	now         func() time.Time
	healthCheck []namedCheck
}

type namedCheck struct {
	name  string
	check func(ctx context.Context) error
}

type Option func(*Service)

func WithValidator(v Validator) Option {
	return func(s *Service) { s.validator = v }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithCorrelator(c *correlator.Correlator) Option {
	return func(s *Service) { s.correlator = c }
}

// WithHealthCheck adds a component to the Health report.
func WithHealthCheck(name string, check func(ctx context.Context) error) Option {
	return func(s *Service) { s.healthCheck = append(s.healthCheck, namedCheck{name, check}) }
}

func withIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func New(cfg Config, store storage.Store, envs EnvironmentStore, synth *environment.Synthesizer, invoker Invoker, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		store:   store,
		envs:    envs,
		synth:   synth,
		invoker: invoker,
		machine: statemachine.New(store, synth.ApproverCount(), log),
		logger:  log.WithFields(map[string]interface{}{"component": "onboarding"}),
		newID:   NewWorkflowID,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.correlator == nil {
		s.correlator = correlator.New(store, log)
	}
	return s
}

// NewWorkflowID returns "wf_" followed by 8 lowercase hex characters.
func NewWorkflowID() string {
	return "wf_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ApproverCount is N.
func (s *Service) ApproverCount() int {
	return s.machine.ApproverCount()
}

// appendTransaction writes an audit entry. Audit failures are logged, never
// surfaced, once the primary change has been persisted.
func (s *Service) appendTransaction(ctx context.Context, workflowID, txType, status, details string) {
	tx := &models.Transaction{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Type:       txType,
		Status:     status,
		Details:    details,
		CreatedAt:  s.now(),
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		s.logger.Error("Failed to write transaction", map[string]interface{}{
			"workflowId": workflowID,
			"type":       txType,
			"error":      err,
		})
	}
}

// stampExternalID records the engine correlation id once a sequence has
// reported it into env.
func (s *Service) stampExternalID(ctx context.Context, wf *models.Workflow, env *variables.Store) {
	if s.cfg.CorrelationVariable == "" {
		return
	}
	ext := env.Value(s.cfg.CorrelationVariable)
	if ext == "" || ext == wf.ExternalID {
		return
	}
	if err := s.store.SetExternalID(ctx, wf.ID, ext); err != nil {
		s.logger.Error("Failed to store external id", map[string]interface{}{
			"workflowId": wf.ID,
			"error":      err,
		})
		return
	}
	wf.ExternalID = ext
}

// dropEnvironment deletes the environment document of a finished workflow.
func (s *Service) dropEnvironment(ctx context.Context, workflowID string) {
	if err := s.envs.Delete(ctx, workflowID); err != nil {
		s.logger.Warn("Failed to delete environment document", map[string]interface{}{
			"workflowId": workflowID,
			"error":      err,
		})
	}
}

func storageErr(op string, err error) error {
	if _, ok := err.(*errors.StandardError); ok {
		return err
	}
	return errors.NewStorageError(op, err)
}
