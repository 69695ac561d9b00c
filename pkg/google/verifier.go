package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/idtoken"
)

var ErrNotConfigured = errors.New("google sign-in is not configured")

// Identity is what a verified Google ID token says about the account.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Name          string
	Picture       string
}

// Verifier checks Google ID tokens.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

type validateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// IDTokenVerifier validates tokens against Google's public keys for one
// OAuth client id.
type IDTokenVerifier struct {
	audience string
	validate validateFunc
}

func NewVerifier(clientID string) *IDTokenVerifier {
	return &IDTokenVerifier{audience: strings.TrimSpace(clientID), validate: idtoken.Validate}
}

func (v *IDTokenVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	if v == nil || v.audience == "" {
		return nil, ErrNotConfigured
	}
	payload, err := v.validate(ctx, rawToken, v.audience)
	if err != nil {
		return nil, fmt.Errorf("validate google id token: %w", err)
	}
	return identityFromPayload(payload)
}

func identityFromPayload(p *idtoken.Payload) (*Identity, error) {
	if p == nil || p.Subject == "" {
		return nil, errors.New("google id token has no subject")
	}
	id := &Identity{
		Subject:       p.Subject,
		Email:         claimString(p.Claims, "email"),
		EmailVerified: claimBool(p.Claims, "email_verified"),
		GivenName:     claimString(p.Claims, "given_name"),
		FamilyName:    claimString(p.Claims, "family_name"),
		Name:          claimString(p.Claims, "name"),
		Picture:       claimString(p.Claims, "picture"),
	}
	if id.Email == "" {
		return nil, errors.New("google id token has no email")
	}
	return id, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// email_verified arrives as a bool or, from some issuers, the string "true".
func claimBool(claims map[string]interface{}, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
