package contracts

import "context"

// AuthConfig is the static identity configuration handed to
// IdentityProvider.Init.
type AuthConfig struct {
	ClientID       string
	Network        string
	UXMode         string
	LoginProvider  string
	LoginConfig    LoginConfig
	ChainNamespace string
	ChainID        string
}

// LoginConfig describes the custom verifier a login is routed through.
type LoginConfig struct {
	Name        string
	Verifier    string
	TypeOfLogin string
	ClientID    string
}

type ExtraLoginOptions struct {
	Domain          string `json:"domain,omitempty"`
	VerifierIDField string `json:"verifierIdField,omitempty"`
}

type LoginParams struct {
	LoginProvider     string            `json:"loginProvider"`
	Relogin           bool              `json:"relogin"`
	LoginHint         string            `json:"loginHint,omitempty"`
	ExtraLoginOptions ExtraLoginOptions `json:"extraLoginOptions"`
}

type UserInfo struct {
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	ProfileImage      string `json:"profileImage,omitempty"`
	AggregateVerifier string `json:"aggregateVerifier,omitempty"`
	Verifier          string `json:"verifier"`
	VerifierID        string `json:"verifierId"`
	TypeOfLogin       string `json:"typeOfLogin"`
	OAuthIDToken      string `json:"oAuthIdToken,omitempty"`
}

type IdentityToken struct {
	IDToken string `json:"idToken"`
}

// IdentityProvider is the external login collaborator. Init may return a
// non-nil SigningProvider when an earlier session was restored silently.
type IdentityProvider interface {
	Init(ctx context.Context, cfg AuthConfig) (SigningProvider, error)
	Connect(ctx context.Context, params LoginParams) (SigningProvider, error)
	AuthenticateUser(ctx context.Context) (IdentityToken, error)
	GetUserInfo(ctx context.Context) (UserInfo, error)
	Logout(ctx context.Context) error
}
