package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"mpc-wallet/go-backend/internal/contracts"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
)

// fakeEth serves the eth_ namespace subset the provider uses.
type fakeEth struct {
	mu           sync.Mutex
	chainID      int64
	balance      *big.Int
	nonce        uint64
	pendingPolls int
	sent         []*types.Transaction
}

func (f *fakeEth) ChainId() (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(f.chainID)), nil
}

func (f *fakeEth) GetBalance(_ common.Address, _ string) (*hexutil.Big, error) {
	return (*hexutil.Big)(f.balance), nil
}

func (f *fakeEth) GetTransactionCount(_ common.Address, _ string) (hexutil.Uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return hexutil.Uint64(f.nonce), nil
}

func (f *fakeEth) MaxPriorityFeePerGas() (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(1_000_000_000)), nil
}

func (f *fakeEth) GasPrice() (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(20_000_000_000)), nil
}

func (f *fakeEth) SendRawTransaction(data hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return common.Hash{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	return tx.Hash(), nil
}

func (f *fakeEth) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, nil
	}
	return &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		TxHash:            hash,
		Logs:              []*types.Log{},
		BlockNumber:       big.NewInt(7),
		EffectiveGasPrice: big.NewInt(2_000_000_000),
	}, nil
}

type fakeNet struct{}

func (fakeNet) Version() (string, error) { return "5", nil }

func newTestProvider(t *testing.T, node *fakeEth) (*Provider, *testAccount) {
	t.Helper()
	srv := rpc.NewServer()
	if err := srv.RegisterName("eth", node); err != nil {
		t.Fatalf("register eth: %v", err)
	}
	if err := srv.RegisterName("net", fakeNet{}); err != nil {
		t.Fatalf("register net: %v", err)
	}
	client := rpc.DialInProc(srv)
	t.Cleanup(func() {
		client.Close()
		srv.Stop()
	})
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	p, err := NewProvider(key, client, WithReceiptPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p, &testAccount{address: crypto.PubkeyToAddress(key.PublicKey)}
}

type testAccount struct {
	address common.Address
}

func TestProviderReads(t *testing.T) {
	node := &fakeEth{chainID: 5, balance: big.NewInt(777)}
	p, acct := newTestProvider(t, node)
	ctx := context.Background()

	id, err := p.ChainID(ctx)
	if err != nil || id.Int64() != 5 {
		t.Fatalf("chain id: %v %v", id, err)
	}
	accounts, err := p.Accounts(ctx)
	if err != nil || len(accounts) != 1 || accounts[0] != acct.address {
		t.Fatalf("accounts: %v %v", accounts, err)
	}
	balance, err := p.BalanceAt(ctx, acct.address)
	if err != nil || balance.Int64() != 777 {
		t.Fatalf("balance: %v %v", balance, err)
	}
	raw, err := p.Request(ctx, "net_version")
	if err != nil || string(raw) != `"5"` {
		t.Fatalf("forwarded request: %s %v", raw, err)
	}
}

func TestSignTypedDataRecoversToAccount(t *testing.T) {
	p, acct := newTestProvider(t, &fakeEth{chainID: 1, balance: big.NewInt(0)})
	typed := `[{"type":"string","name":"message","value":"Hello MPC, bye bye seedphrase"}]`

	raw, err := p.Request(context.Background(), "eth_signTypedData", typed, acct.address.Hex())
	if err != nil {
		t.Fatalf("sign typed data: %v", err)
	}
	var sigHex string
	if err := json.Unmarshal(raw, &sigHex); err != nil {
		t.Fatalf("signature is not a json string: %v", err)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != 65 {
		t.Fatalf("unexpected signature %q: %v", sigHex, err)
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Fatalf("unexpected recovery byte %d", v)
	}

	want := crypto.Keccak256(
		crypto.Keccak256([]byte("string message")),
		crypto.Keccak256([]byte("Hello MPC, bye bye seedphrase")),
	)
	sig[64] -= 27
	pub, err := crypto.SigToPub(want, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != acct.address {
		t.Fatal("signature does not recover to the provider account")
	}
}

func TestSignTypedDataRejectsForeignAccount(t *testing.T) {
	p, _ := newTestProvider(t, &fakeEth{chainID: 1, balance: big.NewInt(0)})
	typed := `[{"type":"string","name":"message","value":"x"}]`
	_, err := p.Request(context.Background(), "eth_signTypedData", typed, "0x00000000000000000000000000000000000000aa")
	if !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
	if _, err := p.Request(context.Background(), "personal_sign", "0x00", "0x00"); !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestSignTransactionBuildsSignedSelfTransfer(t *testing.T) {
	node := &fakeEth{chainID: 1, balance: big.NewInt(0), nonce: 3}
	p, acct := newTestProvider(t, node)
	value := big.NewInt(10_000_000_000_000)

	env, err := p.SignTransaction(context.Background(), contracts.TxRequest{
		From:                 acct.address,
		To:                   acct.address,
		Value:                value,
		MaxPriorityFeePerGas: big.NewInt(5_000_000_000),
		MaxFeePerGas:         big.NewInt(6_000_000_000_000),
	})
	if err != nil {
		t.Fatalf("sign transaction: %v", err)
	}
	if env.From != acct.address || env.To != acct.address || env.Value.ToInt().Cmp(value) != 0 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if uint64(env.Nonce) != 3 || uint64(env.Gas) != 21000 || env.ChainID.ToInt().Int64() != 1 {
		t.Fatalf("unexpected envelope fields %+v", env)
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(env.Raw); err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(1)), tx)
	if err != nil || sender != acct.address {
		t.Fatalf("sender mismatch: %s %v", sender.Hex(), err)
	}
	if tx.Hash() != env.Hash {
		t.Fatal("envelope hash must match raw transaction")
	}
	if len(node.sent) != 0 {
		t.Fatal("sign transaction must not broadcast")
	}
}

func TestSendTransactionWaitsForReceipt(t *testing.T) {
	node := &fakeEth{chainID: 5, balance: big.NewInt(0), pendingPolls: 2}
	p, acct := newTestProvider(t, node)

	receipt, err := p.SendTransaction(context.Background(), contracts.TxRequest{
		From:    acct.address,
		To:      acct.address,
		Value:   big.NewInt(1_000_000_000_000_000),
		ChainID: big.NewInt(5),
	})
	if err != nil {
		t.Fatalf("send transaction: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("unexpected status %d", receipt.Status)
	}
	if len(node.sent) != 1 || receipt.TxHash != node.sent[0].Hash() {
		t.Fatal("receipt must belong to the broadcast transaction")
	}
	// Default fees: tip from eth_maxPriorityFeePerGas, cap = gas price + tip.
	if node.sent[0].GasTipCap().Int64() != 1_000_000_000 || node.sent[0].GasFeeCap().Int64() != 21_000_000_000 {
		t.Fatalf("unexpected fees %s/%s", node.sent[0].GasTipCap(), node.sent[0].GasFeeCap())
	}
}

func TestSendTransactionRejectsChainMismatch(t *testing.T) {
	node := &fakeEth{chainID: 1, balance: big.NewInt(0)}
	p, acct := newTestProvider(t, node)
	_, err := p.SendTransaction(context.Background(), contracts.TxRequest{
		From: acct.address, To: acct.address, Value: big.NewInt(1), ChainID: big.NewInt(5),
	})
	if !errors.Is(err, ErrChainMismatch) {
		t.Fatalf("expected ErrChainMismatch, got %v", err)
	}
	if len(node.sent) != 0 {
		t.Fatal("mismatched chain must not broadcast")
	}
}

func TestSendTransactionUnreachableEndpoint(t *testing.T) {
	key, _ := crypto.GenerateKey()
	p, err := Dial(context.Background(), "http://127.0.0.1:1", key)
	if err != nil {
		t.Fatalf("dial should be lazy for http targets: %v", err)
	}
	defer p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := crypto.PubkeyToAddress(key.PublicKey)
	if _, err := p.SendTransaction(ctx, contracts.TxRequest{From: addr, To: addr, Value: big.NewInt(1)}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestTypedDataV1HashPacking(t *testing.T) {
	fields := []contracts.TypedField{
		{Type: "uint8", Name: "value", Value: float64(10)},
		{Type: "bool", Name: "flag", Value: true},
		{Type: "int16", Name: "delta", Value: "-1"},
		{Type: "bytes4", Name: "tag", Value: "0xdeadbeef"},
	}
	got, err := TypedDataV1Hash(fields)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	want := crypto.Keccak256(
		crypto.Keccak256([]byte("uint8 valuebool flagint16 deltabytes4 tag")),
		crypto.Keccak256([]byte{10, 1, 0xff, 0xff, 0xde, 0xad, 0xbe, 0xef}),
	)
	if hexutil.Encode(got) != hexutil.Encode(want) {
		t.Fatalf("unexpected hash %x", got)
	}
	if _, err := TypedDataV1Hash([]contracts.TypedField{{Type: "uint8", Name: "v", Value: float64(256)}}); err == nil {
		t.Fatal("expected range error")
	}
	if _, err := TypedDataV1Hash(nil); !errors.Is(err, ErrInvalidRequestArgs) {
		t.Fatalf("expected ErrInvalidRequestArgs, got %v", err)
	}
}
