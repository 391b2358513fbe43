// Package identity is the local IdentityProvider. It turns a verified login
// hint into a deterministic secp256k1 wallet key derived from an on-disk seed
// and hands out a SigningProvider bound to that key.
package identity

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/idtoken"
	"mpc-wallet/go-backend/internal/outcome"
	"mpc-wallet/go-backend/internal/securestore"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	componentName      = "identity"
	DefaultTokenTTL    = time.Hour
	DefaultIssuer      = "mpc-wallet"
	LoginProviderJWT   = "jwt"
	walletTypeHex      = "hex"
	walletCurveSecp256 = "secp256k1"
)

var (
	ErrNotInitialized     = outcome.PreconditionError("identity provider not initialized yet")
	ErrAlreadyInitialized = outcome.PreconditionError("identity provider already initialized")
	ErrNotLoggedIn        = outcome.PreconditionError("no user is logged in")
	ErrInvalidConfig      = errors.New("invalid auth config")
	ErrNoProviderFactory  = errors.New("signing provider factory is not configured")
)

// SigningProviderFactory builds the chain-facing provider for a wallet key.
type SigningProviderFactory func(ctx context.Context, key *ecdsa.PrivateKey) (contracts.SigningProvider, error)

type Options struct {
	// Store persists the seed and the last session. When nil or
	// unconfigured the seed lives only in memory.
	Store           *securestore.Store
	Issuer          string
	TokenTTL        time.Duration
	ProviderFactory SigningProviderFactory
	Now             func() time.Time
	Logger          *slog.Logger
}

type activeSession struct {
	record   persistedSession
	key      *ecdsa.PrivateKey
	provider contracts.SigningProvider
}

type Provider struct {
	mu          sync.Mutex
	store       *securestore.Store
	seeds       *SeedManager
	issuer      string
	ttl         time.Duration
	factory     SigningProviderFactory
	now         func() time.Time
	logger      *slog.Logger
	cfg         contracts.AuthConfig
	initialized bool
	active      *activeSession
}

var _ contracts.IdentityProvider = (*Provider)(nil)

func NewProvider(opts Options) *Provider {
	p := &Provider{
		store:   opts.Store,
		seeds:   NewSeedManager(),
		issuer:  strings.TrimSpace(opts.Issuer),
		ttl:     opts.TokenTTL,
		factory: opts.ProviderFactory,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	if p.issuer == "" {
		p.issuer = DefaultIssuer
	}
	if p.ttl <= 0 {
		p.ttl = DefaultTokenTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", componentName)
	return p
}

// Init loads or creates the seed and silently restores the last session.
// A session that cannot be restored is kept cached so a later relogin can
// retry it; Init still succeeds with a nil provider.
func (p *Provider) Init(ctx context.Context, cfg contracts.AuthConfig) (contracts.SigningProvider, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil, ErrAlreadyInitialized
	}
	if err := p.loadSeed(); err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	p.cfg = cfg
	p.initialized = true

	record, ok := p.loadSession()
	if !ok {
		return nil, nil
	}
	if record.Network != cfg.Network || record.Verifier != cfg.LoginConfig.Verifier {
		p.logger.Info("identity.session.discarded", "operation", "init", "reason", "config_changed")
		_ = p.deleteSession()
		return nil, nil
	}
	active, err := p.openSession(ctx, record)
	if err != nil {
		p.logger.Warn("identity.session.restore_failed", "operation", "init", "verifier_id", record.VerifierID, "error", err.Error())
		p.active = &activeSession{record: record}
		return nil, nil
	}
	p.active = active
	p.logger.Info("identity.session.restored", "operation", "init", "session_id", BuildSessionID(&active.key.PublicKey))
	return active.provider, nil
}

// Connect establishes a session from a login hint. With no hint, a cached
// session is reused; relogin forces a fresh signing provider for it.
func (p *Provider) Connect(ctx context.Context, params contracts.LoginParams) (contracts.SigningProvider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil, ErrNotInitialized
	}
	loginProvider := strings.TrimSpace(params.LoginProvider)
	if loginProvider == "" {
		loginProvider = p.cfg.LoginProvider
	}
	if loginProvider != p.cfg.LoginProvider {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLoginProvider, loginProvider)
	}

	if strings.TrimSpace(params.LoginHint) == "" {
		if p.active == nil {
			return nil, ErrLoginHintRequired
		}
		if p.active.provider != nil && !params.Relogin {
			return p.active.provider, nil
		}
		active, err := p.openSession(ctx, p.active.record)
		if err != nil {
			return nil, err
		}
		p.replaceActive(active)
		p.logger.Info("identity.session.reconnected", "operation", "connect", "session_id", BuildSessionID(&active.key.PublicKey))
		return active.provider, nil
	}

	claims, err := verifyLoginHint(params.LoginHint, params.ExtraLoginOptions, p.cfg.LoginConfig.ClientID, p.now())
	if err != nil {
		return nil, err
	}
	record := persistedSession{
		Network:    p.cfg.Network,
		Verifier:   p.cfg.LoginConfig.Verifier,
		VerifierID: claims.VerifierID,
		User: contracts.UserInfo{
			Email:        claims.Email,
			Name:         claims.Name,
			ProfileImage: claims.Picture,
			Verifier:     p.cfg.LoginConfig.Verifier,
			VerifierID:   claims.VerifierID,
			TypeOfLogin:  p.cfg.LoginConfig.TypeOfLogin,
			OAuthIDToken: strings.TrimSpace(params.LoginHint),
		},
		CreatedAt: p.now().UTC(),
	}
	active, err := p.openSession(ctx, record)
	if err != nil {
		return nil, err
	}
	if err := p.saveSession(record); err != nil {
		p.logger.Warn("identity.session.persist_failed", "operation", "connect", "error", err.Error())
	}
	p.replaceActive(active)
	p.logger.Info("identity.session.connected", "operation", "connect", "session_id", BuildSessionID(&active.key.PublicKey), "verifier_id", claims.VerifierID)
	return active.provider, nil
}

// AuthenticateUser issues an ES256K identity token signed by the wallet key.
func (p *Provider) AuthenticateUser(context.Context) (contracts.IdentityToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return contracts.IdentityToken{}, ErrNotInitialized
	}
	if p.active == nil || p.active.key == nil {
		return contracts.IdentityToken{}, ErrNotLoggedIn
	}
	key := p.active.key
	user := p.active.record.User
	sessionID := BuildSessionID(&key.PublicKey)
	now := p.now().UTC()
	claims := idtoken.Claims{
		"iss":        p.issuer,
		"aud":        p.cfg.ClientID,
		"sub":        user.VerifierID,
		"iat":        now.Unix(),
		"exp":        now.Add(p.ttl).Unix(),
		"verifier":   user.Verifier,
		"verifierId": user.VerifierID,
		"wallets": []map[string]string{{
			"public_key": hexutil.Encode(crypto.CompressPubkey(&key.PublicKey)),
			"type":       walletTypeHex,
			"curve":      walletCurveSecp256,
			"address":    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		}},
	}
	if user.Email != "" {
		claims["email"] = user.Email
	}
	if user.Name != "" {
		claims["name"] = user.Name
	}
	token, err := idtoken.Issue(key, sessionID, claims)
	if err != nil {
		return contracts.IdentityToken{}, fmt.Errorf("issue identity token: %w", err)
	}
	return contracts.IdentityToken{IDToken: token}, nil
}

func (p *Provider) GetUserInfo(context.Context) (contracts.UserInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return contracts.UserInfo{}, ErrNotInitialized
	}
	if p.active == nil {
		return contracts.UserInfo{}, ErrNotLoggedIn
	}
	return p.active.record.User, nil
}

// Logout forgets the session in memory and on disk.
func (p *Provider) Logout(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotInitialized
	}
	if p.active == nil {
		return ErrNotLoggedIn
	}
	p.replaceActive(nil)
	if err := p.deleteSession(); err != nil && !errors.Is(err, securestore.ErrNotConfigured) {
		return fmt.Errorf("delete session: %w", err)
	}
	p.logger.Info("identity.session.logged_out", "operation", "logout")
	return nil
}

func (p *Provider) openSession(ctx context.Context, record persistedSession) (*activeSession, error) {
	if p.factory == nil {
		return nil, ErrNoProviderFactory
	}
	key, err := p.seeds.DeriveWalletKey(record.Network, record.Verifier, record.VerifierID)
	if err != nil {
		return nil, err
	}
	provider, err := p.factory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open signing provider: %w", err)
	}
	return &activeSession{record: record, key: key, provider: provider}, nil
}

func (p *Provider) replaceActive(next *activeSession) {
	if p.active != nil && p.active.provider != nil {
		if next == nil || next.provider != p.active.provider {
			closeProvider(p.active.provider)
		}
	}
	p.active = next
}

func closeProvider(provider contracts.SigningProvider) {
	if c, ok := provider.(interface{ Close() }); ok {
		c.Close()
	}
}

func (p *Provider) loadSeed() error {
	if !p.store.Configured() {
		p.logger.Warn("identity.seed.ephemeral", "operation", "init", "reason", "securestore_not_configured")
		_, err := p.seeds.Create()
		return err
	}
	var rec seedRecord
	err := p.store.Load(seedRecordName, &rec)
	switch {
	case err == nil:
		return p.seeds.Import(rec.Mnemonic)
	case errors.Is(err, os.ErrNotExist):
		mnemonic, err := p.seeds.Create()
		if err != nil {
			return err
		}
		p.logger.Info("identity.seed.created", "operation", "init")
		return p.store.Save(seedRecordName, seedRecord{Mnemonic: mnemonic, CreatedAt: p.now().UTC()})
	default:
		return err
	}
}

func (p *Provider) loadSession() (persistedSession, bool) {
	if !p.store.Configured() {
		return persistedSession{}, false
	}
	var rec persistedSession
	if err := p.store.Load(sessionRecordName, &rec); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("identity.session.load_failed", "operation", "init", "error", err.Error())
		}
		return persistedSession{}, false
	}
	if rec.VerifierID == "" {
		return persistedSession{}, false
	}
	return rec, true
}

func (p *Provider) saveSession(rec persistedSession) error {
	if !p.store.Configured() {
		return nil
	}
	return p.store.Save(sessionRecordName, rec)
}

func (p *Provider) deleteSession() error {
	if !p.store.Configured() {
		return securestore.ErrNotConfigured
	}
	return p.store.Delete(sessionRecordName)
}

func validateConfig(cfg contracts.AuthConfig) error {
	switch {
	case strings.TrimSpace(cfg.ClientID) == "":
		return fmt.Errorf("%w: clientId is required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.Network) == "":
		return fmt.Errorf("%w: network is required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.LoginProvider) == "":
		return fmt.Errorf("%w: loginProvider is required", ErrInvalidConfig)
	case strings.TrimSpace(cfg.LoginConfig.Verifier) == "":
		return fmt.Errorf("%w: verifier is required", ErrInvalidConfig)
	}
	return nil
}
