// Package variables holds the ordered, key-unique variable set carried by
// one workflow between trigger invocations.
package variables

import (
	"encoding/json"
	"fmt"
)

// Variable is one named value. Type is advisory only.
type Variable struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Type    string `json:"type,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Store is an insertion-ordered set of variables with unique keys.
// It is not safe for concurrent use; each request works on its own copy.
type Store struct {
	ID   string
	Name string

	vars  []Variable
	index map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{index: map[string]int{}}
}

// FromVariables builds a store from vars, later duplicates overwriting earlier ones.
func FromVariables(vars []Variable) *Store {
	s := New()
	for _, v := range vars {
		s.Put(v)
	}
	return s
}

// Set overwrites the value of key or appends it, leaving other keys untouched.
func (s *Store) Set(key, value string) {
	s.Put(Variable{Key: key, Value: value, Type: "default", Enabled: true})
}

// Put overwrites the entry with v.Key in place or appends v.
// Entries with an empty key are ignored.
func (s *Store) Put(v Variable) {
	if v.Key == "" {
		return
	}
	if s.index == nil {
		s.index = map[string]int{}
	}
	if i, ok := s.index[v.Key]; ok {
		s.vars[i] = v
		return
	}
	s.index[v.Key] = len(s.vars)
	s.vars = append(s.vars, v)
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	return s.vars[i].Value, true
}

// Value returns the value for key or "".
func (s *Store) Value(key string) string {
	v, _ := s.Get(key)
	return v
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Len is the number of distinct keys.
func (s *Store) Len() int {
	return len(s.vars)
}

// Variables returns a copy of the entries in insertion order.
func (s *Store) Variables() []Variable {
	out := make([]Variable, len(s.vars))
	copy(out, s.vars)
	return out
}

// Keys returns the keys in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.vars))
	for i, v := range s.vars {
		out[i] = v.Key
	}
	return out
}

// Context returns the enabled variables as a plain map.
func (s *Store) Context() map[string]string {
	out := make(map[string]string, len(s.vars))
	for _, v := range s.vars {
		if v.Enabled {
			out[v.Key] = v.Value
		}
	}
	return out
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	c := FromVariables(s.vars)
	c.ID = s.ID
	c.Name = s.Name
	return c
}

// document is the Postman-style environment layout.
type document struct {
	ID     string     `json:"id,omitempty"`
	Name   string     `json:"name,omitempty"`
	Values []Variable `json:"values"`
}

// rawDocument tolerates missing enabled flags, which default to true.
type rawDocument struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Values []struct {
		Key     string          `json:"key"`
		Value   json.RawMessage `json:"value"`
		Type    string          `json:"type,omitempty"`
		Enabled *bool           `json:"enabled,omitempty"`
	} `json:"values"`
}

// MarshalJSON encodes the store as {"id","name","values":[...]}.
func (s *Store) MarshalJSON() ([]byte, error) {
	vals := s.vars
	if vals == nil {
		vals = []Variable{}
	}
	return json.Marshal(document{ID: s.ID, Name: s.Name, Values: vals})
}

// UnmarshalJSON decodes a Postman-style environment document. Non-string
// values are kept in their JSON text form.
func (s *Store) UnmarshalJSON(data []byte) error {
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode variable document: %w", err)
	}

	fresh := New()
	fresh.ID = doc.ID
	fresh.Name = doc.Name
	for _, raw := range doc.Values {
		enabled := true
		if raw.Enabled != nil {
			enabled = *raw.Enabled
		}
		fresh.Put(Variable{
			Key:     raw.Key,
			Value:   rawString(raw.Value),
			Type:    raw.Type,
			Enabled: enabled,
		})
	}
	*s = *fresh
	return nil
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}
