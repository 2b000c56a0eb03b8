// Package secretstring wraps sensitive strings (tokens, passwords) so that
// accidental logging or serialization never leaks their value.
package secretstring

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Secret holds a sensitive value. Its zero value is the empty secret.
type Secret struct {
	value string
}

// New wraps a raw value.
func New(value string) Secret {
	return Secret{value: value}
}

// Expose returns the underlying raw value. Callers must not log the result.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether the secret carries no value.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// String implements fmt.Stringer with a redacted representation.
func (s Secret) String() string {
	return fmt.Sprintf("<REDACTED, length %d>", len(s.value))
}

// GoString implements fmt.GoStringer so %#v also redacts.
func (s Secret) GoString() string {
	return s.String()
}

// MarshalYAML redacts the value when a Secret accidentally ends up in a
// config dump (e.g. debug logging of a loaded Config).
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML reads a plain scalar string into the secret.
func (s *Secret) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.value = raw
	return nil
}
