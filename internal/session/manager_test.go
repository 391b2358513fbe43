package session

import (
	"context"
	"errors"
	"testing"

	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/outcome"
	"mpc-wallet/go-backend/internal/testutil/walletfake"
)

func testConfig() contracts.AuthConfig {
	return contracts.AuthConfig{ClientID: "client", Network: "testnet", LoginProvider: "jwt"}
}

func TestLoginBeforeInitializeIsPreconditionFailure(t *testing.T) {
	idp := &walletfake.IdentityProvider{Issued: walletfake.NewSigningProvider()}
	m := NewManager(idp, nil)
	before := m.Session()

	if _, err := m.Login(context.Background(), contracts.LoginParams{Relogin: true}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if outcome.Classify(ErrNotInitialized) != outcome.KindPrecondition {
		t.Fatal("not initialized must classify as precondition")
	}
	if idp.ConnectCalls != 0 {
		t.Fatalf("login must not reach the identity provider, got %d calls", idp.ConnectCalls)
	}
	if after := m.Session(); after != before {
		t.Fatalf("session changed: %+v -> %+v", before, after)
	}
}

func TestInitializeThenReloginExposesProvider(t *testing.T) {
	signer := walletfake.NewSigningProvider()
	idp := &walletfake.IdentityProvider{Issued: signer}
	m := NewManager(idp, nil)

	sess, err := m.Initialize(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if !sess.Initialized || sess.HasProvider {
		t.Fatalf("expected ready without provider, got %+v", sess)
	}
	if _, ok := m.Provider(); ok {
		t.Fatal("provider must be nil before login")
	}

	got, err := m.Login(context.Background(), contracts.LoginParams{LoginProvider: "jwt", Relogin: true})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got != signer {
		t.Fatal("login must return the provider issued by the identity provider")
	}
	held, ok := m.Provider()
	if !ok || held != signer {
		t.Fatal("manager must hold the provider after login")
	}
	accounts, err := held.Accounts(context.Background())
	if err != nil || len(accounts) == 0 {
		t.Fatalf("expected non-empty accounts, got %v (%v)", accounts, err)
	}
}

func TestInitializeRestoresExistingSession(t *testing.T) {
	restored := walletfake.NewSigningProvider()
	m := NewManager(&walletfake.IdentityProvider{Restored: restored}, nil)
	sess, err := m.Initialize(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if !sess.HasProvider {
		t.Fatal("expected restored provider")
	}
	if p, _ := m.Provider(); p != restored {
		t.Fatal("unexpected provider after restore")
	}
}

func TestInitializeFailureIsNonFatalAndTerminal(t *testing.T) {
	idp := &walletfake.IdentityProvider{InitErr: errors.New("network unreachable")}
	m := NewManager(idp, nil)

	sess, err := m.Initialize(context.Background(), testConfig())
	if err == nil {
		t.Fatal("expected initialize error")
	}
	if sess.Initialized || sess.State != StateFailed {
		t.Fatalf("expected failed uninitialized session, got %+v", sess)
	}
	if _, err := m.GetUserInfo(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := m.Initialize(context.Background(), testConfig()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if idp.InitCalls != 1 {
		t.Fatalf("expected one init call, got %d", idp.InitCalls)
	}
}

func TestNilIdentityProviderFailsInitialize(t *testing.T) {
	m := NewManager(nil, nil)
	if _, err := m.Initialize(context.Background(), testConfig()); err == nil {
		t.Fatal("expected error without identity provider")
	}
	if m.Session().State != StateFailed {
		t.Fatalf("expected failed state, got %s", m.Session().State)
	}
}

func TestLoginFailureKeepsPreviousProvider(t *testing.T) {
	restored := walletfake.NewSigningProvider()
	idp := &walletfake.IdentityProvider{Restored: restored}
	m := NewManager(idp, nil)
	if _, err := m.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	idp.ConnectErr = errors.New("popup closed")
	if _, err := m.Login(context.Background(), contracts.LoginParams{}); err == nil {
		t.Fatal("expected login error")
	}
	if p, ok := m.Provider(); !ok || p != restored {
		t.Fatal("failed login must not replace or clear the provider")
	}
}

func TestLoginWithNilProviderIsRejected(t *testing.T) {
	m := NewManager(&walletfake.IdentityProvider{}, nil)
	if _, err := m.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := m.Login(context.Background(), contracts.LoginParams{Relogin: true}); !errors.Is(err, ErrNoSigningProvider) {
		t.Fatalf("expected ErrNoSigningProvider, got %v", err)
	}
	if _, ok := m.Provider(); ok {
		t.Fatal("nil provider must not be exposed")
	}
}

func TestLogoutClearsProviderEvenWhenUpstreamFails(t *testing.T) {
	idp := &walletfake.IdentityProvider{Restored: walletfake.NewSigningProvider()}
	m := NewManager(idp, nil)
	if _, err := m.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	idp.LogoutErr = errors.New("already logged out")
	if err := m.Logout(context.Background()); err == nil {
		t.Fatal("expected upstream logout error to surface")
	}
	if _, ok := m.Provider(); ok {
		t.Fatal("provider must be nil after logout")
	}
	idp.LogoutErr = nil
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
	if sess := m.Session(); !sess.Initialized || sess.HasProvider {
		t.Fatalf("expected ready without provider, got %+v", sess)
	}
}

func TestParseIDTokenReportsMalformedPayload(t *testing.T) {
	m := NewManager(&walletfake.IdentityProvider{Token: "abc"}, nil)
	if _, err := m.Initialize(context.Background(), testConfig()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	_, err := m.ParseIDToken(context.Background())
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
	if outcome.Classify(err) != outcome.KindDecode {
		t.Fatalf("expected decode classification, got %s", outcome.Classify(err))
	}
}

func TestOperationsRequireInitialization(t *testing.T) {
	m := NewManager(&walletfake.IdentityProvider{}, nil)
	ctx := context.Background()
	if _, err := m.AuthenticateUser(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("authenticate: expected ErrNotInitialized, got %v", err)
	}
	if _, err := m.ParseIDToken(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("parse: expected ErrNotInitialized, got %v", err)
	}
	if err := m.Logout(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("logout: expected ErrNotInitialized, got %v", err)
	}
}

func TestLoginDiscardedWhenLogoutRacesConnect(t *testing.T) {
	signer := walletfake.NewSigningProvider()
	idp := &walletfake.IdentityProvider{Issued: signer}
	m := NewManager(idp, nil)
	ctx := context.Background()
	if _, err := m.Initialize(ctx, testConfig()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	idp.OnConnect = func() {
		if err := m.Logout(ctx); err != nil {
			t.Errorf("logout during connect failed: %v", err)
		}
	}
	_, err := m.Login(ctx, contracts.LoginParams{Relogin: true, LoginHint: "hint"})
	if !errors.Is(err, ErrLoginSuperseded) {
		t.Fatalf("expected ErrLoginSuperseded, got %v", err)
	}
	if _, ok := m.Provider(); ok {
		t.Fatal("provider closed by logout must not be installed")
	}

	idp.OnConnect = nil
	got, err := m.Login(ctx, contracts.LoginParams{Relogin: true, LoginHint: "hint"})
	if err != nil {
		t.Fatalf("login after logout failed: %v", err)
	}
	if held, ok := m.Provider(); !ok || held != got {
		t.Fatal("expected the new provider to be held")
	}
}
