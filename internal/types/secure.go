package types

import "log/slog"

// redactedPlaceholder replaces secret values in logs and serialized output.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential (access key, secret key, session token)
// and refuses to print it. fmt, encoding/json and log/slog all see the
// redacted placeholder; Unmask returns the plaintext.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// GoString keeps %#v from printing the raw value.
func (s SecretString) GoString() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// IsSet reports whether a non-empty value is present.
func (s SecretString) IsSet() bool {
	return s != ""
}

// Unmask returns the raw plaintext value. Only the AWS credential provider
// should need it.
func (s SecretString) Unmask() string {
	return string(s)
}
