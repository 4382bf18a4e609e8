package internaldefs

import authgate "github.com/authgate/authgate"

// CounterDef describes one engine counter for exposition.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter with its stable exposition
// name. Order is the exposition order.
var CounterDefs = []CounterDef{
	{authgate.MetricRegisterSuccess, "authgate_register_success_total", "Successful registrations."},
	{authgate.MetricRegisterConflict, "authgate_register_conflict_total", "Registrations rejected for a taken email or username."},
	{authgate.MetricLoginSuccess, "authgate_login_success_total", "Successful logins."},
	{authgate.MetricLoginFailure, "authgate_login_failure_total", "Logins rejected for bad credentials."},
	{authgate.MetricLoginRateLimited, "authgate_login_rate_limited_total", "Logins rejected by the throttle."},
	{authgate.MetricRefreshSuccess, "authgate_refresh_success_total", "Successful refresh rotations."},
	{authgate.MetricRefreshFailure, "authgate_refresh_failure_total", "Refreshes rejected for an invalid session."},
	{authgate.MetricRefreshReuseDetected, "authgate_refresh_reuse_detected_total", "Replays of already-rotated refresh tokens."},
	{authgate.MetricLogout, "authgate_logout_total", "Successful logouts."},
	{authgate.MetricLogoutAll, "authgate_logout_all_total", "Whole-identity session revocations."},
	{authgate.MetricSessionCreated, "authgate_session_created_total", "Refresh tokens issued."},
	{authgate.MetricSessionRevoked, "authgate_session_revoked_total", "Refresh tokens revoked."},
}

// AuditDroppedName is the exposition name for the audit dispatcher's
// drop counter.
const AuditDroppedName = "authgate_audit_dropped_total"

// AuditDroppedHelp describes the drop counter.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
