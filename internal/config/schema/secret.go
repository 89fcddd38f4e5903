package schema

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Secret wraps sensitive values so they are masked when logged or printed
type Secret string

// String returns a masked representation
func (s Secret) String() string {
	switch {
	case len(s) == 0:
		return ""
	case len(s) <= 4:
		return "****"
	default:
		return string(s[:2]) + "****" + string(s[len(s)-2:])
	}
}

// Value returns the actual secret value
func (s Secret) Value() string {
	return string(s)
}

// IsEmpty reports whether the secret is unset
func (s Secret) IsEmpty() bool {
	return len(s) == 0
}

// MarshalJSON masks the value
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML masks the value
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (s *Secret) UnmarshalYAML(node *yaml.Node) error {
	*s = Secret(node.Value)
	return nil
}
