// Package correlator maps loose inbound callback payloads to one tracked
// workflow through an ordered chain of lookup strategies.
package correlator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/models"
	"vendor-onboarding/internal/storage"
)

// ErrNoMatch is returned when no strategy resolves the payload.
var ErrNoMatch = stderrors.New("no workflow matches callback payload")

// Payload is a decoded callback body.
type Payload map[string]interface{}

// Match is the workflow a payload resolved to and the strategy that found it.
type Match struct {
	Workflow *models.Workflow
	Strategy string
}

// Strategy is one link of the chain. Lookup returns nil, nil when the
// payload carries nothing it can use or nothing matches.
type Strategy interface {
	Name() string
	Lookup(ctx context.Context, store storage.Store, p Payload) (*models.Workflow, error)
}

// Correlator walks its strategies in order; the first hit wins.
type Correlator struct {
	store      storage.Store
	strategies []Strategy
	logger     logger.Logger
}

// New builds a correlator. With no strategies the default chain is used.
func New(store storage.Store, log logger.Logger, strategies ...Strategy) *Correlator {
	if len(strategies) == 0 {
		strategies = DefaultChain()
	}
	return &Correlator{store: store, strategies: strategies, logger: log}
}

// DefaultChain is applicant email, engine correlation id, local workflow id,
// then business name.
func DefaultChain() []Strategy {
	return []Strategy{
		ApplicantEmail{},
		ExternalID{},
		WorkflowID{},
		BusinessName{},
	}
}

// Strategies lists the configured strategy names in order.
func (c *Correlator) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Resolve returns the matching workflow or ErrNoMatch. Storage errors inside
// one strategy are logged and the chain continues.
func (c *Correlator) Resolve(ctx context.Context, p Payload) (*Match, error) {
	var lastErr error
	for _, s := range c.strategies {
		wf, err := s.Lookup(ctx, c.store, p)
		if err != nil {
			c.logger.Warn("Correlation strategy failed", map[string]interface{}{
				"strategy": s.Name(),
				"error":    err.Error(),
			})
			lastErr = err
			continue
		}
		if wf != nil {
			c.logger.Debug("Callback correlated", map[string]interface{}{
				"strategy":   s.Name(),
				"workflowId": wf.ID,
			})
			return &Match{Workflow: wf, Strategy: s.Name()}, nil
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w (last strategy error: %v)", ErrNoMatch, lastErr)
	}
	return nil, ErrNoMatch
}

// ==========================
// Payload field lookup
// ==========================

// nestedSections are searched one level below the top of the payload.
var nestedSections = []string{"input", "output", "workflowInput", "variables", "data"}

// Field returns the first non-empty value among keys, looked up at the top
// level and then under each nested section. Numbers are rendered in decimal.
func (p Payload) Field(keys ...string) string {
	for _, k := range keys {
		if v := scalar(p[k]); v != "" {
			return v
		}
	}
	for _, section := range nestedSections {
		nested, ok := p[section].(map[string]interface{})
		if !ok {
			continue
		}
		for _, k := range keys {
			if v := scalar(nested[k]); v != "" {
				return v
			}
		}
	}
	return ""
}

func scalar(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
