package identity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/idtoken"
	"mpc-wallet/go-backend/internal/outcome"
)

const defaultVerifierIDField = "sub"

var (
	ErrLoginHintRequired        = outcome.PreconditionError("login hint is required when no session can be reused")
	ErrUnsupportedLoginProvider = errors.New("unsupported login provider")
	ErrLoginRejected            = errors.New("login hint rejected")
)

type loginClaims struct {
	VerifierID string
	Email      string
	Name       string
	Picture    string
}

// verifyLoginHint checks the tenant claims of a JWT issued by the login
// provider. Signature verification belongs to the issuing tenant and is not
// repeated here.
func verifyLoginHint(hint string, opts contracts.ExtraLoginOptions, audience string, now time.Time) (loginClaims, error) {
	claims, err := idtoken.Decode(hint)
	if err != nil {
		return loginClaims{}, err
	}
	domain := normalizeIssuer(opts.Domain)
	if domain == "" {
		return loginClaims{}, fmt.Errorf("%w: tenant domain is not configured", ErrLoginRejected)
	}
	if iss := normalizeIssuer(claims.String("iss")); iss != domain {
		return loginClaims{}, fmt.Errorf("%w: issuer %q does not match tenant", ErrLoginRejected, claims.String("iss"))
	}
	if audience != "" && !slices.Contains(claims.Audience(), audience) {
		return loginClaims{}, fmt.Errorf("%w: audience does not include %q", ErrLoginRejected, audience)
	}
	exp, ok := claims.Time("exp")
	if !ok {
		return loginClaims{}, fmt.Errorf("%w: exp claim is missing", ErrLoginRejected)
	}
	if !now.Before(exp) {
		return loginClaims{}, fmt.Errorf("%w: token expired at %s", ErrLoginRejected, exp.Format(time.RFC3339))
	}
	field := strings.TrimSpace(opts.VerifierIDField)
	if field == "" {
		field = defaultVerifierIDField
	}
	verifierID := claims.String(field)
	if verifierID == "" {
		return loginClaims{}, fmt.Errorf("%w: claim %q is empty", ErrLoginRejected, field)
	}
	return loginClaims{
		VerifierID: verifierID,
		Email:      claims.String("email"),
		Name:       claims.String("name"),
		Picture:    claims.String("picture"),
	}, nil
}

// normalizeIssuer compares tenants by scheme+host, ignoring a trailing slash.
func normalizeIssuer(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(strings.ToLower(raw), "/")
}
