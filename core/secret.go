package core

// Secret wraps the API key with protection against accidental logging.
// The underlying value is never exposed through String(), JSON or text
// marshaling; use Expose() when the value is genuinely needed.
type Secret struct {
	value string
}

// NewSecret creates a new Secret from a string value.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String returns a redacted placeholder. Implements fmt.Stringer.
func (s Secret) String() string {
	return "[REDACTED]"
}

// MarshalJSON returns a redacted JSON string.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText returns a redacted text representation.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// Expose returns the actual secret value. Be careful not to log or
// serialize the returned value.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether the secret value is empty.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}
