package environment

import (
	"encoding/json"
	"fmt"
	"os"

	"vendor-onboarding/internal/onboarding/variables"
)

// LoadTemplate reads the base environment document shipped next to the
// step collection. An empty path yields an empty template.
func LoadTemplate(path string) (*variables.Store, error) {
	if path == "" {
		return variables.New(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment template: %w", err)
	}
	store := variables.New()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, err
	}
	return store, nil
}
