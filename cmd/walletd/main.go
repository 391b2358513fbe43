package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"mpc-wallet/go-backend/internal/adapters/rpc"
	"mpc-wallet/go-backend/internal/app"
	"mpc-wallet/go-backend/internal/chain"
	"mpc-wallet/go-backend/internal/config"
	"mpc-wallet/go-backend/internal/console"
	"mpc-wallet/go-backend/internal/contracts"
	"mpc-wallet/go-backend/internal/doctor"
	"mpc-wallet/go-backend/internal/evm"
	"mpc-wallet/go-backend/internal/identity"
	"mpc-wallet/go-backend/internal/metrics"
	"mpc-wallet/go-backend/internal/platform/privacylog"
	"mpc-wallet/go-backend/internal/securestore"
	"mpc-wallet/go-backend/internal/session"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	rpcAddr := flag.String("rpc-addr", "", "JSON-RPC listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "Directory for the encrypted seed and session (optional)")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-MPCW-RPC-Token; \"auto\" generates one")
	chainRPC := flag.String("chain-rpc", "", "Chain JSON-RPC endpoint (overrides config)")
	runDoctor := flag.Bool("doctor", false, "run preflight checks, print the report and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("walletd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("walletd failed to load config: %v", err)
	}
	applyFlagOverrides(&cfg, *rpcAddr, *dataDir, *rpcToken, *chainRPC)

	logger := privacylog.NewLogger(os.Stderr, cfg.Daemon.LogLevel)
	if *runDoctor {
		report := doctor.New().Run(context.Background(), cfg)
		console.New(os.Stdout).Show(report)
		if !report.Ready {
			os.Exit(1)
		}
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idp := identity.NewProvider(identity.Options{
		Store:    securestore.New(cfg.Daemon.DataDir, cfg.Daemon.StoreSecret),
		Issuer:   cfg.Daemon.TokenIssuer,
		TokenTTL: cfg.Daemon.TokenTTL,
		ProviderFactory: func(ctx context.Context, key *ecdsa.PrivateKey) (contracts.SigningProvider, error) {
			p, err := evm.Dial(ctx, cfg.Chain.RPCTarget, key,
				evm.WithReceiptPollInterval(cfg.Chain.ReceiptPollInterval),
				evm.WithLogger(logger),
			)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Logger: logger,
	})
	m := metrics.New()
	svc := app.NewService(session.NewManager(idp, logger), app.Options{
		Auth:         cfg.Auth,
		LoginOptions: cfg.Login,
		ChainOptions: []chain.Option{chain.WithSendChainID(big.NewInt(cfg.Chain.SendChainID))},
		Metrics:      m,
		Console:      console.New(nil),
		Logger:       logger,
	})
	if r := svc.Initialize(ctx); !r.OK() {
		logger.Warn("identity initialization failed; continuing unauthenticated", "error", r.Failure().Message)
	}

	srv := rpc.NewServer(rpc.Config{
		Addr:           cfg.Daemon.RPCAddr,
		Token:          cfg.Daemon.RPCToken,
		RateLimitRPS:   cfg.Daemon.RateLimitRPS,
		RateLimitBurst: cfg.Daemon.RateLimitBurst,
	}, svc, m, logger)

	log.Println("walletd starting")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("walletd failed: %v", err)
	}
	log.Println("walletd stopped")
}

func applyFlagOverrides(cfg *config.Config, rpcAddr, dataDir, rpcToken, chainRPC string) {
	if rpcAddr != "" {
		cfg.Daemon.RPCAddr = rpcAddr
	}
	if dataDir != "" {
		cfg.Daemon.DataDir = dataDir
	}
	if rpcToken != "" {
		cfg.Daemon.RPCToken = rpcToken
	}
	if chainRPC != "" {
		cfg.Chain.RPCTarget = chainRPC
	}
}
