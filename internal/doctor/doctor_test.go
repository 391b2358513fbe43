package doctor

import (
	"context"
	"math/big"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mpc-wallet/go-backend/internal/config"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

type fakeEth struct{ chainID int64 }

func (f *fakeEth) ChainId() *hexutil.Big { return (*hexutil.Big)(big.NewInt(f.chainID)) }

func assertCheck(t *testing.T, report Report, name string, pass bool) {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			if c.Pass != pass {
				t.Fatalf("check %s: pass=%v, want %v (reason %q)", name, c.Pass, pass, c.Reason)
			}
			return
		}
	}
	t.Fatalf("check %s not found in %+v", name, report.Checks)
}

func fakeNode(t *testing.T, chainID int64) string {
	t.Helper()
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", &fakeEth{chainID: chainID}); err != nil {
		t.Fatalf("register: %v", err)
	}
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Stop()
	})
	return httpSrv.URL
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func TestDoctorReadyWithHealthyConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := config.Default()
	cfg.Daemon.RPCAddr = freeAddr(t)
	cfg.Daemon.RPCToken = "token"
	cfg.Daemon.DataDir = dir
	cfg.Daemon.StoreSecret = "secret"
	cfg.Chain.RPCTarget = fakeNode(t, 5)

	report := New().Run(context.Background(), cfg)
	if !report.Ready {
		t.Fatalf("expected ready, got %+v", report.Checks)
	}
	assertCheck(t, report, "send_chain_matches", true)
}

func TestDoctorFlagsChainMismatchAndOpenDataDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	cfg := config.Default()
	cfg.Daemon.RPCAddr = freeAddr(t)
	cfg.Daemon.DataDir = dir
	cfg.Chain.RPCTarget = fakeNode(t, 1)

	report := New().Run(context.Background(), cfg)
	if report.Ready {
		t.Fatal("expected not ready")
	}
	assertCheck(t, report, "rpc_token_configured", false)
	assertCheck(t, report, "store_configured", false)
	assertCheck(t, report, "data_dir_private", false)
	assertCheck(t, report, "chain_rpc_reachable", true)
	assertCheck(t, report, "send_chain_matches", false)
}

func TestDoctorReportsUnreachableChainAndBusyAddr(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Daemon.RPCAddr = ln.Addr().String()
	cfg.Login.Domain = "http://insecure.example.com"
	cfg.Chain.RPCTarget = "http://127.0.0.1:1"

	report := New().Run(context.Background(), cfg)
	assertCheck(t, report, "rpc_addr_available", false)
	assertCheck(t, report, "login_domain_valid", false)
	assertCheck(t, report, "chain_rpc_reachable", false)
}
