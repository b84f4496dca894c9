// Package v1alpha1 contains the blueprint API types for
// harrow.cofront.xyz/v1alpha1.
package v1alpha1

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// TypeMeta carries the apiVersion and kind of a document.
type TypeMeta struct {
	Kind       string `json:"kind,omitempty" yaml:"kind,omitempty"`
	APIVersion string `json:"apiVersion,omitempty" yaml:"apiVersion,omitempty"`
}

// ObjectMeta is the metadata of a blueprint.
type ObjectMeta struct {
	// Name identifies the blueprint in logs and state listings.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Labels are free-form and ignored by harrow.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	// CreationTimestamp is set by `harrow init`.
	CreationTimestamp Time `json:"creationTimestamp,omitempty" yaml:"creationTimestamp,omitempty"`
}

// Time is a time.Time serialized as an RFC3339 string, empty when zero.
type Time struct {
	time.Time `json:"-" yaml:"-"`
}

func (t Time) text() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (t *Time) parse(s string) error {
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.text())
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return t.parse("")
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.parse(s)
}

func (t Time) MarshalYAML() (any, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.text(), nil
}

func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	return t.parse(node.Value)
}
