// pkg/collection/collection.go
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnknownStep is returned when a requested step name is not in the collection.
var ErrUnknownStep = errors.New("unknown step")

// Load reads and parses a collection file.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a collection document and validates it.
func Parse(data []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if problems := c.Validate(); len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return &c, nil
}

// Step looks up a step by exact name.
func (c *Collection) Step(name string) (Step, bool) {
	for _, s := range c.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return Step{}, false
}

// Resolve returns the named steps in the given order. Any unknown name fails
// the whole lookup.
func (c *Collection) Resolve(names []string) ([]Step, error) {
	steps := make([]Step, 0, len(names))
	for _, name := range names {
		s, ok := c.Step(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownStep, name)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// Names lists step names in collection order.
func (c *Collection) Names() []string {
	out := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		out[i] = s.Name
	}
	return out
}

// Validate reports structural problems: duplicate or empty names, unknown
// kinds, and kind-specific required fields.
func (c *Collection) Validate() []error {
	var problems []error
	seen := map[string]bool{}

	for i, s := range c.Steps {
		label := s.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
			problems = append(problems, fmt.Errorf("step %s: name is required", label))
		} else if seen[s.Name] {
			problems = append(problems, fmt.Errorf("step %q: duplicate name", s.Name))
		}
		seen[s.Name] = true

		switch s.Kind {
		case KindHTTP:
			if s.Request == nil || s.Request.URL == "" {
				problems = append(problems, fmt.Errorf("step %s: http step needs request.url", label))
			} else if s.Request.Method != "" && strings.ToUpper(s.Request.Method) != s.Request.Method {
				problems = append(problems, fmt.Errorf("step %s: method must be upper case", label))
			}
		case KindOAuth2:
			if s.OAuth2 == nil || s.OAuth2.TokenURL == "" || s.OAuth2.TokenVariable == "" {
				problems = append(problems, fmt.Errorf("step %s: oauth2 step needs tokenUrl and tokenVariable", label))
			}
		case KindZeebeCreateInstance:
			if s.Zeebe == nil || s.Zeebe.BPMNProcessID == "" {
				problems = append(problems, fmt.Errorf("step %s: zeebe.create_instance needs bpmnProcessId", label))
			}
		case KindZeebePublishMessage:
			if s.Zeebe == nil || s.Zeebe.MessageName == "" || s.Zeebe.CorrelationKey == "" {
				problems = append(problems, fmt.Errorf("step %s: zeebe.publish_message needs messageName and correlationKey", label))
			}
		default:
			problems = append(problems, fmt.Errorf("step %s: unknown kind %q", label, s.Kind))
		}
	}

	return problems
}
