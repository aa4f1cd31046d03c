package config

import "log/slog"

const redacted = "[redacted]"

// Secret holds a sensitive value that must never reach logs or terminal output.
// Use Reveal at the single point where the raw value is handed to a collaborator.
type Secret string

// Reveal returns the raw secret value.
func (s Secret) Reveal() string { return string(s) }

// Empty reports whether the secret carries no value.
func (s Secret) Empty() bool { return len(s) == 0 }

func (s Secret) String() string {
	if s.Empty() {
		return ""
	}
	return redacted
}

// GoString keeps %#v from printing the raw value.
func (s Secret) GoString() string { return s.String() }

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

// MarshalText keeps encoders from serialising the raw value.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }
