package trigger

import "vendor-onboarding/internal/onboarding/variables"

// runContext is the variable context shared by the steps of one invocation.
// Keys keep first-write order so the reported list is stable.
type runContext struct {
	values map[string]string
	order  []string
}

func newRunContext(store *variables.Store) *runContext {
	rc := &runContext{values: map[string]string{}}
	if store == nil {
		return rc
	}
	for _, v := range store.Variables() {
		if v.Enabled {
			rc.set(v.Key, v.Value)
		}
	}
	return rc
}

func (rc *runContext) get(key string) (string, bool) {
	v, ok := rc.values[key]
	return v, ok
}

func (rc *runContext) set(key, value string) {
	if _, ok := rc.values[key]; !ok {
		rc.order = append(rc.order, key)
	}
	rc.values[key] = value
}

// subset returns the named variables, or all of them when names is empty.
func (rc *runContext) subset(names []string) map[string]interface{} {
	out := map[string]interface{}{}
	if len(names) == 0 {
		for k, v := range rc.values {
			out[k] = v
		}
		return out
	}
	for _, n := range names {
		if v, ok := rc.values[n]; ok {
			out[n] = v
		}
	}
	return out
}

func (rc *runContext) reported() []variables.Variable {
	out := make([]variables.Variable, 0, len(rc.order))
	for _, k := range rc.order {
		out = append(out, variables.Variable{Key: k, Value: rc.values[k], Type: "default", Enabled: true})
	}
	return out
}
