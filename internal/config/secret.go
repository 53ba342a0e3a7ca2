package config

import "log/slog"

const redacted = "***REDACTED***"

// SecretString holds a credential such as DATABASE_URL. It prints, marshals
// and logs as a placeholder; Unmask returns the value.
type SecretString string

func (s SecretString) String() string { return redacted }

func (s SecretString) MarshalJSON() ([]byte, error) { return []byte(`"` + redacted + `"`), nil }

// LogValue keeps the value out of slog output, including nested groups.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// Unmask returns the raw value. Pass it straight to the driver that needs it.
func (s SecretString) Unmask() string { return string(s) }
