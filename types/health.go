package types

import "time"

// TokenStatus classifies the credential's token material independently of
// reachability: a handshake can be reachable but credential-invalid, or
// hold valid tokens for an unreachable provider.
type TokenStatus string

const (
	// TokenValid indicates the stored token is present and unexpired.
	TokenValid TokenStatus = "valid"

	// TokenExpired indicates the stored token has a known expiry that has
	// passed.
	TokenExpired TokenStatus = "expired"

	// TokenInvalid indicates the provider rejected the stored token.
	TokenInvalid TokenStatus = "invalid"

	// TokenMissing indicates no token material is stored.
	TokenMissing TokenStatus = "missing"
)

// HealthReport is the output of a handshake health check. Healthy reflects
// provider reachability with the stored credentials; TokenStatus reports
// the credential state on its own axis.
type HealthReport struct {
	// Healthy is true when the probe completed with usable credentials.
	Healthy bool `json:"healthy"`

	// TokenStatus classifies the stored token material.
	TokenStatus TokenStatus `json:"token_status"`

	// Latency is the round-trip time of the probe request.
	Latency time.Duration `json:"latency_ms"`

	// CanRefresh indicates the module supports refreshing the stored
	// token.
	CanRefresh bool `json:"can_refresh"`

	// Message describes the outcome in human-readable form.
	Message string `json:"message,omitempty"`

	// CheckedAt is when the probe ran.
	CheckedAt time.Time `json:"checked_at"`
}

// HealthyReport builds a passing report with the given token status.
func HealthyReport(status TokenStatus, latency time.Duration, message string) HealthReport {
	return HealthReport{
		Healthy:     true,
		TokenStatus: status,
		Latency:     latency,
		Message:     message,
		CheckedAt:   time.Now(),
	}
}

// UnhealthyReport builds a failing report with the given token status.
func UnhealthyReport(status TokenStatus, latency time.Duration, message string) HealthReport {
	return HealthReport{
		Healthy:     false,
		TokenStatus: status,
		Latency:     latency,
		Message:     message,
		CheckedAt:   time.Now(),
	}
}
