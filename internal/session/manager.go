// Package session owns the lifecycle between "identity established" and
// "signing provider available". A Manager holds at most one session and the
// SigningProvider it unlocked; nothing else may replace or clear it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/idtoken"
	"mpc-wallet/go-backend/internal/outcome"
)

const componentName = "session"

var (
	ErrNotInitialized     = outcome.PreconditionError("session not initialized yet")
	ErrAlreadyInitialized = outcome.PreconditionError("session initialization already started")
	ErrMalformedToken     = idtoken.ErrMalformed
	ErrNoSigningProvider  = errors.New("identity provider returned no signing provider")
	ErrLoginSuperseded    = outcome.PreconditionError("session was logged out while login was in progress")
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

// Session is a point-in-time view of the manager.
type Session struct {
	State       State `json:"state"`
	Initialized bool  `json:"initialized"`
	HasProvider bool  `json:"hasProvider"`
}

type Manager struct {
	mu       sync.RWMutex
	idp      contracts.IdentityProvider
	state    State
	provider contracts.SigningProvider
	logger   *slog.Logger

	// generation changes on every logout. A login installs its provider
	// only if no logout happened while it was connecting.
	generation uint64
}

func NewManager(idp contracts.IdentityProvider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		idp:    idp,
		state:  StateUninitialized,
		logger: logger.With("component", componentName),
	}
}

// Initialize runs the identity provider setup once. A restored provider is
// held immediately. Failure leaves the session uninitialized for good; the
// caller is expected to keep running unauthenticated.
func (m *Manager) Initialize(ctx context.Context, cfg contracts.AuthConfig) (Session, error) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return m.Session(), ErrAlreadyInitialized
	}
	m.state = StateInitializing
	m.mu.Unlock()

	if m.idp == nil {
		m.finishInit(nil, errors.New("identity provider is not configured"))
		return m.Session(), fmt.Errorf("initialize: identity provider is not configured")
	}
	restored, err := m.idp.Init(ctx, cfg)
	m.finishInit(restored, err)
	if err != nil {
		return m.Session(), fmt.Errorf("initialize: %w", err)
	}
	return m.Session(), nil
}

func (m *Manager) finishInit(restored contracts.SigningProvider, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = StateFailed
		m.logger.Error("session initialization failed", "operation", "initialize", "error", err.Error())
		return
	}
	m.state = StateReady
	m.provider = restored
	m.logger.Info("session initialized", "operation", "initialize", "restored", restored != nil)
}

// Login connects through the identity provider and replaces the held
// provider on success. Before initialization it fails without side effects.
func (m *Manager) Login(ctx context.Context, params contracts.LoginParams) (contracts.SigningProvider, error) {
	if err := m.requireReady(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()

	provider, err := m.idp.Connect(ctx, params)
	if err != nil {
		m.logger.Warn("login failed", "operation", "login", "relogin", params.Relogin, "error", err.Error())
		return nil, fmt.Errorf("login: %w", err)
	}
	if provider == nil {
		return nil, ErrNoSigningProvider
	}

	m.mu.Lock()
	if m.generation != generation {
		m.mu.Unlock()
		m.logger.Warn("login discarded after concurrent logout", "operation", "login")
		return nil, ErrLoginSuperseded
	}
	m.provider = provider
	m.mu.Unlock()
	m.logger.Info("login completed", "operation", "login", "relogin", params.Relogin)
	return provider, nil
}

func (m *Manager) AuthenticateUser(ctx context.Context) (contracts.IdentityToken, error) {
	if err := m.requireReady(); err != nil {
		return contracts.IdentityToken{}, err
	}
	token, err := m.idp.AuthenticateUser(ctx)
	if err != nil {
		return contracts.IdentityToken{}, fmt.Errorf("authenticate user: %w", err)
	}
	return token, nil
}

// ParseIDToken fetches a fresh identity token and decodes its claims.
func (m *Manager) ParseIDToken(ctx context.Context) (idtoken.Claims, error) {
	token, err := m.AuthenticateUser(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeClaims(token.IDToken)
}

func (m *Manager) GetUserInfo(ctx context.Context) (contracts.UserInfo, error) {
	if err := m.requireReady(); err != nil {
		return contracts.UserInfo{}, err
	}
	info, err := m.idp.GetUserInfo(ctx)
	if err != nil {
		return contracts.UserInfo{}, fmt.Errorf("get user info: %w", err)
	}
	return info, nil
}

// Logout clears the held provider even when the upstream logout fails.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.requireReady(); err != nil {
		return err
	}
	m.mu.Lock()
	m.generation++
	m.mu.Unlock()
	upstreamErr := m.idp.Logout(ctx)

	m.mu.Lock()
	m.provider = nil
	m.mu.Unlock()

	if upstreamErr != nil {
		m.logger.Warn("upstream logout failed; provider cleared", "operation", "logout", "error", upstreamErr.Error())
		return fmt.Errorf("logout: %w", upstreamErr)
	}
	m.logger.Info("logged out", "operation", "logout")
	return nil
}

// Provider returns the current signing provider, if any.
func (m *Manager) Provider() (contracts.SigningProvider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.provider, m.provider != nil
}

func (m *Manager) Session() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Session{
		State:       m.state,
		Initialized: m.state == StateReady,
		HasProvider: m.provider != nil,
	}
}

func (m *Manager) requireReady() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateReady {
		return ErrNotInitialized
	}
	return nil
}

// DecodeClaims decodes the payload of an identity token. Malformed input is
// reported as ErrMalformedToken.
func DecodeClaims(token string) (idtoken.Claims, error) {
	return idtoken.Decode(token)
}
