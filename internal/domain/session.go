package domain

import "time"

// SessionStatus is the outcome of a guard evaluation.
type SessionStatus string

const (
	SessionStatusLoading          SessionStatus = "LOADING"
	SessionStatusAuthenticated    SessionStatus = "AUTHENTICATED"
	SessionStatusNoCredential     SessionStatus = "NO_CREDENTIAL"
	SessionStatusExpired          SessionStatus = "EXPIRED"
	SessionStatusInsufficientRole SessionStatus = "INSUFFICIENT_ROLE"
	SessionStatusMalformed        SessionStatus = "MALFORMED"
)

// Terminal reports whether the status ends an evaluation.
func (s SessionStatus) Terminal() bool {
	return s != SessionStatusLoading && s != ""
}

// Claims is the decoded payload of a credential.
type Claims struct {
	SubjectID   string     `json:"subject_id"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Role        string     `json:"role,omitempty"`
	IssuedAt    *time.Time `json:"issued_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Session is the runtime projection consumed by views.
type Session struct {
	Credential string        `json:"-"`
	Claims     *Claims       `json:"claims,omitempty"`
	Status     SessionStatus `json:"status"`
}

// Authenticated reports whether the protected view may render.
func (s Session) Authenticated() bool {
	return s.Status == SessionStatusAuthenticated
}
