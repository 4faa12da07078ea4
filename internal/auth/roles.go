package auth

import (
	"strings"
	"time"

	"github.com/spec-kit/session-gate/internal/domain"
)

// Verdict is the outcome of classifying claims.
type Verdict string

const (
	VerdictValid        Verdict = "VALID"
	VerdictExpired      Verdict = "EXPIRED"
	VerdictUnauthorized Verdict = "UNAUTHORIZED"
)

// Err returns the sentinel error matching the verdict, nil for VerdictValid.
func (v Verdict) Err() error {
	switch v {
	case VerdictExpired:
		return ErrExpiredCredential
	case VerdictUnauthorized:
		return ErrInsufficientRole
	default:
		return nil
	}
}

// Policy accepts claims carrying any one of its roles.
//
// Roles compare case-insensitively: the issuer is known to send "Admin",
// "ADMIN" and "admin" for the same role, and all of them must match.
// A policy without roles accepts any authenticated subject.
type Policy struct {
	roles []string
}

// NewPolicy builds a policy for the accepted roles.
func NewPolicy(roles ...string) Policy {
	accepted := make([]string, 0, len(roles))
	for _, role := range roles {
		if trimmed := strings.TrimSpace(role); trimmed != "" {
			accepted = append(accepted, trimmed)
		}
	}
	return Policy{roles: accepted}
}

// Roles returns the accepted roles.
func (p Policy) Roles() []string {
	return append([]string{}, p.roles...)
}

// Classify decides whether claims are valid at now.
// A missing exp claim never expires here; staleness is then detected by the
// API rejecting the credential.
func (p Policy) Classify(claims *domain.Claims, now time.Time) Verdict {
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(now) {
		return VerdictExpired
	}
	if len(p.roles) == 0 {
		return VerdictValid
	}
	for _, role := range p.roles {
		if strings.EqualFold(claims.Role, role) {
			return VerdictValid
		}
	}
	return VerdictUnauthorized
}

// Classify checks claims against a single required role.
func Classify(claims *domain.Claims, requiredRole string, now time.Time) Verdict {
	return NewPolicy(requiredRole).Classify(claims, now)
}
