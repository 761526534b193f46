package refresh

// Reason records why a refresh token was revoked. The set is closed;
// values are persisted and must stay stable.
type Reason string

const (
	ReasonLogout             Reason = "logout"
	ReasonLogoutAll          Reason = "logout_all"
	ReasonPasswordChange     Reason = "password_change"
	ReasonSuspiciousActivity Reason = "suspicious_activity"
	ReasonExpired            Reason = "expired"
	ReasonIdleTimeout        Reason = "idle_timeout"
	ReasonRotated            Reason = "rotated"
)

// Valid reports whether r is one of the closed set of revocation reasons.
func (r Reason) Valid() bool {
	switch r {
	case ReasonLogout, ReasonLogoutAll, ReasonPasswordChange,
		ReasonSuspiciousActivity, ReasonExpired, ReasonIdleTimeout, ReasonRotated:
		return true
	}
	return false
}
