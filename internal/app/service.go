package app

import (
	"context"
	"log/slog"
	"time"

	"mpc-wallet/go-backend/internal/chain"
	"mpc-wallet/go-backend/internal/console"
	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/idtoken"
	"mpc-wallet/go-backend/internal/metrics"
	"mpc-wallet/go-backend/internal/outcome"
	"mpc-wallet/go-backend/internal/session"

	"github.com/ethereum/go-ethereum/core/types"
)

const (
	OpInitialize      = "session_initialize"
	OpLogin           = "session_login"
	OpLogout          = "session_logout"
	OpUserInfo        = "session_user_info"
	OpIDToken         = "session_id_token"
	OpParseIDToken    = "session_parse_id_token"
	OpChainID         = "chain_get_chain_id"
	OpAccounts        = "chain_get_accounts"
	OpBalance         = "chain_get_balance"
	OpSignMessage     = "chain_sign_message"
	OpSignTransaction = "chain_sign_transaction"
	OpSendTransaction = "chain_send_transaction"
)

type Options struct {
	Auth         contracts.AuthConfig
	LoginOptions contracts.ExtraLoginOptions
	ChainOptions []chain.Option
	Metrics      *metrics.Metrics
	Console      *console.Display
	Logger       *slog.Logger
}

type Service struct {
	sessions  *session.Manager
	auth      contracts.AuthConfig
	login     contracts.ExtraLoginOptions
	chainOpts []chain.Option
	metrics   *metrics.Metrics
	console   *console.Display
	logger    *slog.Logger
}

func NewService(sessions *session.Manager, opts Options) *Service {
	s := &Service{
		sessions:  sessions,
		auth:      opts.Auth,
		login:     opts.LoginOptions,
		chainOpts: opts.ChainOptions,
		metrics:   opts.Metrics,
		console:   opts.Console,
		logger:    opts.Logger,
	}
	if s.console == nil {
		s.console = console.New(nil)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Initialize runs identity setup once. Failure is reported, never fatal.
func (s *Service) Initialize(ctx context.Context) outcome.Result[session.Session] {
	started := time.Now()
	sess, err := s.sessions.Initialize(ctx, s.auth)
	r := outcome.From(sess, err)
	return finish(s, OpInitialize, started, r)
}

func (s *Service) Status() session.Session {
	return s.sessions.Session()
}

// Login connects with the configured login provider. With relogin and no
// hint the identity provider may reuse the cached identity.
func (s *Service) Login(ctx context.Context, relogin bool, loginHint string) outcome.Result[session.Session] {
	started := time.Now()
	_, err := s.sessions.Login(ctx, contracts.LoginParams{
		LoginProvider:     s.auth.LoginProvider,
		Relogin:           relogin,
		LoginHint:         loginHint,
		ExtraLoginOptions: s.login,
	})
	return finish(s, OpLogin, started, outcome.From(s.sessions.Session(), err))
}

func (s *Service) Logout(ctx context.Context) outcome.Result[session.Session] {
	started := time.Now()
	err := s.sessions.Logout(ctx)
	return finish(s, OpLogout, started, outcome.From(s.sessions.Session(), err))
}

func (s *Service) UserInfo(ctx context.Context) outcome.Result[contracts.UserInfo] {
	started := time.Now()
	info, err := s.sessions.GetUserInfo(ctx)
	return finish(s, OpUserInfo, started, outcome.From(info, err))
}

func (s *Service) IDToken(ctx context.Context) outcome.Result[contracts.IdentityToken] {
	started := time.Now()
	tok, err := s.sessions.AuthenticateUser(ctx)
	return finish(s, OpIDToken, started, outcome.From(tok, err))
}

func (s *Service) ParseIDToken(ctx context.Context) outcome.Result[idtoken.Claims] {
	started := time.Now()
	claims, err := s.sessions.ParseIDToken(ctx)
	return finish(s, OpParseIDToken, started, outcome.From(claims, err))
}

func (s *Service) ChainID(ctx context.Context) outcome.Result[string] {
	return withChain(s, OpChainID, func(c *chain.Client) outcome.Result[string] {
		return c.GetChainID(ctx)
	})
}

func (s *Service) Accounts(ctx context.Context) outcome.Result[[]string] {
	return withChain(s, OpAccounts, func(c *chain.Client) outcome.Result[[]string] {
		return c.GetAccounts(ctx)
	})
}

func (s *Service) Balance(ctx context.Context) outcome.Result[string] {
	return withChain(s, OpBalance, func(c *chain.Client) outcome.Result[string] {
		return c.GetBalance(ctx)
	})
}

func (s *Service) SignMessage(ctx context.Context) outcome.Result[string] {
	return withChain(s, OpSignMessage, func(c *chain.Client) outcome.Result[string] {
		return c.SignMessage(ctx)
	})
}

func (s *Service) SignTransaction(ctx context.Context) outcome.Result[*contracts.SignedEnvelope] {
	return withChain(s, OpSignTransaction, func(c *chain.Client) outcome.Result[*contracts.SignedEnvelope] {
		return c.SignTransaction(ctx)
	})
}

func (s *Service) SendTransaction(ctx context.Context) outcome.Result[*types.Receipt] {
	return withChain(s, OpSendTransaction, func(c *chain.Client) outcome.Result[*types.Receipt] {
		return c.SendTransaction(ctx)
	})
}

// LastDisplay is the text most recently rendered on the console.
func (s *Service) LastDisplay() string {
	return s.console.Last()
}

// withChain builds a fresh chain client from the provider held right now.
// Without a provider it fails as a precondition and makes no upstream call.
func withChain[T any](s *Service, operation string, run func(*chain.Client) outcome.Result[T]) outcome.Result[T] {
	started := time.Now()
	provider, _ := s.sessions.Provider()
	client, err := chain.New(provider, s.chainOpts...)
	if err != nil {
		return finish(s, operation, started, outcome.Fail[T](err))
	}
	return finish(s, operation, started, run(client))
}

func finish[T any](s *Service, operation string, started time.Time, r outcome.Result[T]) outcome.Result[T] {
	took := time.Since(started)
	s.console.Show(r)
	_, held := s.sessions.Provider()
	s.metrics.SetProviderHeld(held)
	if failure := r.Failure(); failure != nil {
		s.metrics.ObserveOperation(operation, string(failure.Kind), took)
		s.logFailure(operation, failure, "latency_ms", took.Milliseconds())
		return r
	}
	s.metrics.ObserveOperation(operation, "success", took)
	s.logInfo(operation, "operation completed", "latency_ms", took.Milliseconds())
	return r
}
