// Package queue defines message payloads exchanged over the message broker.
package queue

// Notification kinds published by the identity core.
const (
	EventOtpIssued           = "otp.issued"
	EventInviteCreated       = "invite.created"
	EventTenantStatusChanged = "tenant.status_changed"
)

// NotificationEvent is published whenever the core needs an out-of-band
// message delivered: an OTP code, an invite link, or a tenant status
// change. A downstream notifier consumes these; this service never sends
// email itself.
type NotificationEvent struct {
	Kind     string `json:"kind"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Code     string `json:"code,omitempty"`      // OTP code for otp.issued
	Token    string `json:"token,omitempty"`     // invite token for invite.created
	TenantID string `json:"tenant_id,omitempty"` // public tenant id, when tenant-scoped
	Status   string `json:"status,omitempty"`    // new tenant status
	Link     string `json:"link,omitempty"`      // activation link, when one was generated
	IssuedAt string `json:"issued_at"`
}
