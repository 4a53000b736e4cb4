package domain

import "time"

// AuditLog represents an audit event for an identity.
type AuditLog struct {
	ID        string
	Identity  string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}

// Actions recorded by the auth flows.
const (
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionLoginLocked  = "login_locked"
	ActionRegister     = "register"
	ActionChangePIN    = "change_pin"
	ActionResetPIN     = "reset_pin"
)
