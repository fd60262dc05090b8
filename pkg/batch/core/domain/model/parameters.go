package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// JobParameters is the flat string-keyed property map supplied at start or restart.
type JobParameters map[string]string

// NewJobParameters creates an empty parameter map.
func NewJobParameters() JobParameters {
	return make(JobParameters)
}

// Get returns the value for key and whether it was set.
func (p JobParameters) Get(key string) (string, bool) {
	v, ok := p[key]
	return v, ok
}

// Copy returns an independent copy.
func (p JobParameters) Copy() JobParameters {
	out := make(JobParameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns p overlaid with overrides: keys in overrides win, other keys of p are kept.
func (p JobParameters) Merge(overrides JobParameters) JobParameters {
	out := p.Copy()
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Masked returns a copy where the values of the given keys are hidden.
func (p JobParameters) Masked(keys []string) JobParameters {
	out := p.Copy()
	for _, k := range keys {
		for pk := range out {
			if strings.EqualFold(pk, k) {
				out[pk] = "********"
			}
		}
	}
	return out
}

// String renders parameters in key order.
func (p JobParameters) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Value implements driver.Valuer.
func (p JobParameters) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *JobParameters) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*p = NewJobParameters()
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JobParameters: %T", value)
	}
	out := NewJobParameters()
	if len(b) > 0 {
		if err := json.Unmarshal(b, (*map[string]string)(&out)); err != nil {
			return fmt.Errorf("failed to unmarshal JobParameters JSON: %w", err)
		}
	}
	*p = out
	return nil
}
