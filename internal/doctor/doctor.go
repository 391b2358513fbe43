// Package doctor runs preflight checks for walletd: listen address, RPC
// auth, encrypted storage and the chain endpoint.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"mpc-wallet/go-backend/internal/config"

	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultProbeTimeout = 5 * time.Second

type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

type Report struct {
	Ready     bool      `json:"ready"`
	Checks    []Check   `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

type Doctor struct {
	now          func() time.Time
	probeTimeout time.Duration
}

func New() *Doctor {
	return &Doctor{now: time.Now, probeTimeout: defaultProbeTimeout}
}

func (d *Doctor) Run(ctx context.Context, cfg config.Config) Report {
	report := Report{Ready: true, Checks: make([]Check, 0, 8), CheckedAt: d.now().UTC()}
	add := func(name string, pass bool, reason string) {
		report.Checks = append(report.Checks, Check{Name: name, Pass: pass, Reason: failReason(!pass, reason)})
		if !pass {
			report.Ready = false
		}
	}

	if err := checkAddrAvailable(cfg.Daemon.RPCAddr); err != nil {
		add("rpc_addr_available", false, err.Error())
	} else {
		add("rpc_addr_available", true, "")
	}
	add("rpc_token_configured", strings.TrimSpace(cfg.Daemon.RPCToken) != "", "MPCW_RPC_TOKEN is empty; RPC auth depends on MPCW_ENV")

	storeReady := cfg.Daemon.DataDir != "" && cfg.Daemon.StoreSecret != ""
	add("store_configured", storeReady, "data dir and MPCW_STORE_SECRET are both required to persist the seed")
	if cfg.Daemon.DataDir != "" {
		if err := checkPrivateDir(cfg.Daemon.DataDir); err != nil {
			add("data_dir_private", false, err.Error())
		} else {
			add("data_dir_private", true, "")
		}
	}

	if err := validateDomain(cfg.Login.Domain); err != nil {
		add("login_domain_valid", false, err.Error())
	} else {
		add("login_domain_valid", true, "")
	}

	chainID, err := d.probeChain(ctx, cfg.Chain.RPCTarget)
	if err != nil {
		add("chain_rpc_reachable", false, err.Error())
		return report
	}
	add("chain_rpc_reachable", true, "")
	matches := chainID == cfg.Chain.SendChainID
	add("send_chain_matches", matches, fmt.Sprintf("node chain_id=%d != send chain_id=%d", chainID, cfg.Chain.SendChainID))
	return report
}

func (d *Doctor) probeChain(ctx context.Context, target string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()
	client, err := ethclient.DialContext(ctx, strings.TrimSpace(target))
	if err != nil {
		return 0, fmt.Errorf("dial chain rpc: %w", err)
	}
	defer client.Close()
	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_chainId: %w", err)
	}
	return id.Int64(), nil
}

func failReason(failed bool, reason string) string {
	if !failed {
		return ""
	}
	return reason
}

func checkAddrAvailable(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("rpc address is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("rpc address %s is unavailable: %w", addr, err)
	}
	_ = ln.Close()
	return nil
}

// checkPrivateDir passes for a missing directory, which is created 0700 on
// first save.
func checkPrivateDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("%s has mode %o, want 0700", dir, perm)
	}
	return nil
}

func validateDomain(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("login domain is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("login domain is invalid: %w", err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("login domain must be an https origin: %q", raw)
	}
	return nil
}
