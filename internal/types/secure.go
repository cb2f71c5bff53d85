package types

// SecretString holds a sensitive value (API keys, connection strings) and
// redacts itself in fmt output and JSON serialization so secrets cannot leak
// through config dumps or structured logs. Call Unmask only at the point the
// raw value is genuinely needed (HTTP headers, pool construction).
type SecretString string

const redacted = "***REDACTED***"

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string { return redacted }

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string { return string(s) }
