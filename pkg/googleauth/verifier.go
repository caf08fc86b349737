// Package googleauth verifies Google Sign-In ID tokens and extracts the
// identity fields the auth service needs.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

// ErrEmailNotVerified is returned when Google has not verified the account email.
var ErrEmailNotVerified = errors.New("google account email not verified")

// Identity is the verified subset of a Google ID token.
type Identity struct {
	GoogleID      string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Verifier validates ID tokens against the configured OAuth client ID.
type Verifier struct {
	audience string
	validate validateFunc
}

// NewVerifier builds a verifier for the given OAuth client ID.
func NewVerifier(clientID string) *Verifier {
	return &Verifier{audience: clientID, validate: idtoken.Validate}
}

// Verify checks signature, audience and expiry, then returns the identity.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.New("id token required")
	}
	if v.audience == "" {
		return nil, errors.New("google client id not configured")
	}
	payload, err := v.validate(ctx, rawToken, v.audience)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}
	identity := &Identity{
		GoogleID:      payload.Subject,
		Email:         strings.ToLower(claimString(payload.Claims, "email")),
		Name:          claimString(payload.Claims, "name"),
		Picture:       claimString(payload.Claims, "picture"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
	}
	if identity.Email == "" {
		return nil, errors.New("google id token has no email claim")
	}
	if !identity.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return identity, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// email_verified arrives as a bool from Google but some proxies stringify it.
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}
