package variables

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetOverwritesInPlace(t *testing.T) {
	s := New()
	s.Set("a", "1")
	s.Set("b", "2")
	s.Set("a", "3")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	assert.Equal(t, "3", s.Value("a"))
}

func TestStore_PutIgnoresEmptyKey(t *testing.T) {
	s := New()
	s.Put(Variable{Key: "", Value: "x"})
	assert.Equal(t, 0, s.Len())
}

func TestStore_ContextSkipsDisabled(t *testing.T) {
	s := FromVariables([]Variable{
		{Key: "on", Value: "1", Enabled: true},
		{Key: "off", Value: "2", Enabled: false},
	})

	ctx := s.Context()
	assert.Equal(t, map[string]string{"on": "1"}, ctx)
}

func TestStore_CloneIsIndependent(t *testing.T) {
	s := New()
	s.Set("k", "v")
	c := s.Clone()
	c.Set("k", "changed")
	c.Set("new", "x")

	assert.Equal(t, "v", s.Value("k"))
	assert.False(t, s.Has("new"))
}

func TestStore_DocumentEncoding(t *testing.T) {
	input := `{
		"id": "env-1",
		"name": "Onboarding",
		"values": [
			{"key": "base_url", "value": "https://engine.example.com", "type": "default", "enabled": true},
			{"key": "retries", "value": 3},
			{"key": "disabled", "value": "x", "enabled": false},
			{"key": "base_url", "value": "https://override.example.com", "enabled": true}
		]
	}`

	var s Store
	require.NoError(t, json.Unmarshal([]byte(input), &s))

	assert.Equal(t, "env-1", s.ID)
	assert.Equal(t, "Onboarding", s.Name)
	assert.Equal(t, []string{"base_url", "retries", "disabled"}, s.Keys())
	assert.Equal(t, "https://override.example.com", s.Value("base_url"))
	assert.Equal(t, "3", s.Value("retries"))
	assert.NotContains(t, s.Context(), "disabled")

	out, err := json.Marshal(&s)
	require.NoError(t, err)

	var back Store
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, s.Variables(), back.Variables())
}

func TestStore_EmptyMarshalsValuesArray(t *testing.T) {
	out, err := json.Marshal(New())
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":[]}`, string(out))
}
