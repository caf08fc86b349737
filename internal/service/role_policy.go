package service

import (
	"strings"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// RolePolicy derives a role from a verified email address. Admin allowlist
// entries win over the student domain.
type RolePolicy struct {
	admins        map[string]struct{}
	studentDomain string
}

// NewRolePolicy builds a policy from the admin allowlist and the student email domain.
func NewRolePolicy(adminEmails []string, studentDomain string) *RolePolicy {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email != "" {
			admins[email] = struct{}{}
		}
	}
	return &RolePolicy{
		admins:        admins,
		studentDomain: strings.TrimPrefix(strings.ToLower(strings.TrimSpace(studentDomain)), "@"),
	}
}

// Resolve returns the role for email or a forbidden error.
func (p *RolePolicy) Resolve(email string) (models.UserRole, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, ok := p.admins[email]; ok {
		return models.RoleAdmin, nil
	}
	at := strings.LastIndex(email, "@")
	if at > 0 && p.studentDomain != "" && email[at+1:] == p.studentDomain {
		return models.RoleStudent, nil
	}
	return "", appErrors.Clone(appErrors.ErrForbidden, "email is not allowed to sign in")
}
