package evm

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/epicmint/pkg/chains"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/types"
	"github.com/sigweihq/epicmint/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	testAccount  = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testTxHash   = "0x8a4b1e3c8fd1a0a7ea4a2b3a1e2f3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d"
)

// mockWallet answers wallet requests from a fixed table
type mockWallet struct {
	mu       sync.Mutex
	results  map[string]any
	errs     map[string]error
	calls    []string
	lastTxRq wallet.TxRequest
}

func newMockWallet() *mockWallet {
	return &mockWallet{
		results: map[string]any{
			wallet.MethodAccounts:        []string{testAccount},
			wallet.MethodRequestAccounts: []string{testAccount},
			wallet.MethodChainID:         "0xaa36a7",
			wallet.MethodSendTransaction: testTxHash,
		},
		errs: map[string]error{},
	}
}

func (m *mockWallet) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, method)
	if method == wallet.MethodSendTransaction && len(params) > 0 {
		m.lastTxRq = params[0].(wallet.TxRequest)
	}
	if err := m.errs[method]; err != nil {
		return nil, err
	}
	return json.Marshal(m.results[method])
}

type receiptResult struct {
	receipt *ethtypes.Receipt
	err     error
}

// mockBackend is a scripted node backend
type mockBackend struct {
	mu         sync.Mutex
	head       uint64
	callOut    []byte
	callErr    error
	callBlocks []*big.Int
	callMsgs   []ethereum.CallMsg

	receipts     []receiptResult
	receiptCalls int

	subErr  error
	subFail chan error
	logsCh  chan<- ethtypes.Log

	filterLogs []ethtypes.Log
	filterQs   []ethereum.FilterQuery
}

func newMockBackend() *mockBackend {
	return &mockBackend{head: 100, subFail: make(chan error, 1)}
}

func (m *mockBackend) BlockNumber(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head, nil
}

func (m *mockBackend) CallContract(_ context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callMsgs = append(m.callMsgs, call)
	m.callBlocks = append(m.callBlocks, block)
	return m.callOut, m.callErr
}

func (m *mockBackend) TransactionReceipt(context.Context, common.Hash) (*ethtypes.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.receiptCalls
	if idx >= len(m.receipts) {
		idx = len(m.receipts) - 1
	}
	m.receiptCalls++
	r := m.receipts[idx]
	return r.receipt, r.err
}

func (m *mockBackend) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filterQs = append(m.filterQs, q)
	out := m.filterLogs
	m.filterLogs = nil
	return out, nil
}

func (m *mockBackend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	m.mu.Lock()
	m.logsCh = ch
	m.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-m.subFail:
			return err
		}
	}), nil
}

func (m *mockBackend) push(l ethtypes.Log) {
	m.mu.Lock()
	ch := m.logsCh
	m.mu.Unlock()
	ch <- l
}

func newTestGateway(t *testing.T, w wallet.Provider, b Backend) *Gateway {
	t.Helper()
	g, err := NewGateway(constants.NetworkSepolia, testContract, w, b, nil, WithPollIntervals(time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	return g
}

func packCounts(t *testing.T, current, maximum int64) []byte {
	t.Helper()
	parsed, err := ParseEpicNFTABI()
	require.NoError(t, err)
	out, err := parsed.Methods[constants.MintCountMethod].Outputs.Pack(big.NewInt(current), big.NewInt(maximum))
	require.NoError(t, err)
	return out
}

func mintedLog(t *testing.T, from string, tokenID int64) ethtypes.Log {
	t.Helper()
	parsed, err := ParseEpicNFTABI()
	require.NoError(t, err)
	ev := parsed.Events[constants.MintedEvent]
	data, err := ev.Inputs.Pack(common.HexToAddress(from), big.NewInt(tokenID))
	require.NoError(t, err)
	return ethtypes.Log{
		Address: testContract,
		Topics:  []common.Hash{ev.ID},
		Data:    data,
		TxHash:  common.HexToHash(testTxHash),
	}
}

func TestNewGatewayUnsupportedNetwork(t *testing.T) {
	_, err := NewGateway("base", testContract, nil, newMockBackend(), nil)
	var une *UnsupportedNetworkError
	require.ErrorAs(t, err, &une)
	assert.Equal(t, "base", une.Network)
	assert.Equal(t, `unsupported network "base" (supported: sepolia)`, err.Error())

	_, _, err = DialNetwork(context.Background(), nil, "base", nil)
	assert.ErrorAs(t, err, &une)
}

func TestNewGatewayIdentity(t *testing.T) {
	g := newTestGateway(t, nil, newMockBackend())
	assert.Equal(t, constants.NetworkSepolia, g.Network())
	assert.Equal(t, testContract, g.Contract())
	assert.False(t, g.HasWallet())
}

func TestGateway_ReadMintCounts(t *testing.T) {
	backend := newMockBackend()
	backend.callOut = packCounts(t, 3, 50)
	g := newTestGateway(t, nil, backend)

	count, err := g.ReadMintCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.MintCount{Current: 3, Maximum: 50, Known: true}, count)

	require.Len(t, backend.callMsgs, 1)
	assert.Equal(t, testContract, *backend.callMsgs[0].To)
	assert.Equal(t, big.NewInt(100), backend.callBlocks[0])

	parsed, _ := ParseEpicNFTABI()
	assert.Equal(t, parsed.Methods[constants.MintCountMethod].ID, backend.callMsgs[0].Data)
}

func TestGateway_ReadMintCountsErrors(t *testing.T) {
	tests := []struct {
		name    string
		out     []byte
		callErr error
	}{
		{name: "call fails", callErr: errors.New("execution reverted")},
		{name: "garbage output", out: []byte{0x01, 0x02}},
		{name: "current exceeds maximum", out: packCounts(t, 51, 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newMockBackend()
			backend.callOut = tt.out
			backend.callErr = tt.callErr
			g := newTestGateway(t, nil, backend)

			_, err := g.ReadMintCounts(context.Background())
			require.Error(t, err)
			assert.True(t, chains.IsRemoteCallFailure(err))
		})
	}
}

func TestGateway_NoWallet(t *testing.T) {
	g := newTestGateway(t, nil, newMockBackend())

	assert.False(t, g.HasWallet())

	_, err := g.DiscoverAuthorizedAccounts(context.Background())
	assert.ErrorIs(t, err, chains.ErrCapabilityMissing)

	_, err = g.RequestAccountAccess(context.Background())
	assert.ErrorIs(t, err, chains.ErrCapabilityMissing)

	_, err = g.ActiveNetworkID(context.Background())
	assert.ErrorIs(t, err, chains.ErrCapabilityMissing)

	_, err = g.CallMint(context.Background())
	assert.ErrorIs(t, err, chains.ErrCapabilityMissing)
}

func TestGateway_Accounts(t *testing.T) {
	w := newMockWallet()
	g := newTestGateway(t, w, newMockBackend())

	accounts, err := g.DiscoverAuthorizedAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{testAccount}, accounts)

	account, err := g.RequestAccountAccess(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAccount, account)
	assert.Equal(t, []string{wallet.MethodAccounts, wallet.MethodRequestAccounts}, w.calls)
}

func TestGateway_RequestAccountAccessDeclined(t *testing.T) {
	w := newMockWallet()
	w.errs[wallet.MethodRequestAccounts] = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "rejected"}
	g := newTestGateway(t, w, newMockBackend())

	_, err := g.RequestAccountAccess(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, chains.ErrUserDeclined)
	assert.False(t, chains.IsRemoteCallFailure(err))
}

func TestGateway_RequestAccountAccessEmpty(t *testing.T) {
	w := newMockWallet()
	w.results[wallet.MethodRequestAccounts] = []string{}
	g := newTestGateway(t, w, newMockBackend())

	_, err := g.RequestAccountAccess(context.Background())
	assert.ErrorIs(t, err, chains.ErrNoAccount)
}

func TestGateway_WalletFailureIsRemote(t *testing.T) {
	w := newMockWallet()
	w.errs[wallet.MethodAccounts] = errors.New("bridge unreachable")
	g := newTestGateway(t, w, newMockBackend())

	_, err := g.DiscoverAuthorizedAccounts(context.Background())
	require.Error(t, err)
	assert.True(t, chains.IsRemoteCallFailure(err))
}

func TestGateway_ActiveNetworkID(t *testing.T) {
	w := newMockWallet()
	w.results[wallet.MethodChainID] = "0xAA36A7"
	g := newTestGateway(t, w, newMockBackend())

	id, err := g.ActiveNetworkID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xaa36a7", id)
}

func TestGateway_CallMintAndConfirm(t *testing.T) {
	w := newMockWallet()
	backend := newMockBackend()
	backend.receipts = []receiptResult{
		{err: ethereum.NotFound},
		{err: ethereum.NotFound},
		{receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful, BlockNumber: big.NewInt(101)}},
	}
	g := newTestGateway(t, w, backend)

	handle, err := g.CallMint(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testTxHash, handle.Hash())

	parsed, _ := ParseEpicNFTABI()
	assert.Equal(t, testAccount, w.lastTxRq.From)
	assert.Equal(t, testContract.Hex(), w.lastTxRq.To)
	assert.Equal(t, hexutil.Encode(parsed.Methods[constants.MintMethod].ID), w.lastTxRq.Data)

	hash, err := handle.AwaitConfirmation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testTxHash, hash)
	assert.Equal(t, 3, backend.receiptCalls)
}

func TestGateway_CallMintNoAccount(t *testing.T) {
	w := newMockWallet()
	w.results[wallet.MethodAccounts] = []string{}
	g := newTestGateway(t, w, newMockBackend())

	_, err := g.CallMint(context.Background())
	assert.ErrorIs(t, err, chains.ErrNoAccount)
	assert.NotContains(t, w.calls, wallet.MethodSendTransaction)
}

func TestGateway_CallMintDeclined(t *testing.T) {
	w := newMockWallet()
	w.errs[wallet.MethodSendTransaction] = &wallet.ProviderError{Code: wallet.CodeUserRejected, Message: "denied"}
	g := newTestGateway(t, w, newMockBackend())

	_, err := g.CallMint(context.Background())
	assert.ErrorIs(t, err, chains.ErrUserDeclined)
}

func TestTxHandle_Reverted(t *testing.T) {
	backend := newMockBackend()
	backend.receipts = []receiptResult{
		{receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(101)}},
	}
	g := newTestGateway(t, newMockWallet(), backend)

	handle, err := g.CallMint(context.Background())
	require.NoError(t, err)

	_, err = handle.AwaitConfirmation(context.Background())
	assert.ErrorIs(t, err, chains.ErrTransactionReverted)
}

func TestTxHandle_ContextCancel(t *testing.T) {
	backend := newMockBackend()
	backend.receipts = []receiptResult{{err: ethereum.NotFound}}
	g := newTestGateway(t, newMockWallet(), backend)

	handle, err := g.CallMint(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = handle.AwaitConfirmation(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTxHandle_PersistentRPCFailure(t *testing.T) {
	backend := newMockBackend()
	backend.receipts = []receiptResult{{err: errors.New("503 service unavailable")}}
	g := newTestGateway(t, newMockWallet(), backend)

	handle, err := g.CallMint(context.Background())
	require.NoError(t, err)

	_, err = handle.AwaitConfirmation(context.Background())
	require.Error(t, err)
	assert.True(t, chains.IsRemoteCallFailure(err))
	assert.Equal(t, constants.MaxRetries, backend.receiptCalls)
}

func TestGateway_SubscribeDeliversEvents(t *testing.T) {
	backend := newMockBackend()
	g := newTestGateway(t, nil, backend)

	got := make(chan types.MintNotification, 4)
	sub, err := g.Subscribe(context.Background(), constants.MintedEvent, func(n types.MintNotification) {
		got <- n
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	removed := mintedLog(t, testAccount, 1)
	removed.Removed = true
	backend.push(removed)
	backend.push(mintedLog(t, testAccount, 2))

	select {
	case n := <-got:
		assert.Equal(t, types.MintNotification{From: testAccount, TokenID: 2, TxHash: testTxHash}, n)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, got)
}

func TestGateway_SubscribeUnknownEvent(t *testing.T) {
	g := newTestGateway(t, nil, newMockBackend())

	_, err := g.Subscribe(context.Background(), "Transfer", func(types.MintNotification) {})
	assert.ErrorIs(t, err, chains.ErrUnknownEvent)
}

func TestGateway_SubscriptionFailureSurfaces(t *testing.T) {
	backend := newMockBackend()
	g := newTestGateway(t, nil, backend)

	sub, err := g.Subscribe(context.Background(), constants.MintedEvent, func(types.MintNotification) {})
	require.NoError(t, err)

	backend.subFail <- errors.New("websocket closed")

	select {
	case err := <-sub.Err():
		require.Error(t, err)
		assert.True(t, chains.IsRemoteCallFailure(err))
	case <-time.After(2 * time.Second):
		t.Fatal("subscription failure not surfaced")
	}
}

func TestGateway_SubscribeFallsBackToPolling(t *testing.T) {
	backend := newMockBackend()
	backend.subErr = rpc.ErrNotificationsUnsupported
	g := newTestGateway(t, nil, backend)

	got := make(chan types.MintNotification, 1)
	sub, err := g.Subscribe(context.Background(), constants.MintedEvent, func(n types.MintNotification) {
		got <- n
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	backend.mu.Lock()
	backend.head = 101
	backend.filterLogs = []ethtypes.Log{mintedLog(t, testAccount, 5)}
	backend.mu.Unlock()

	select {
	case n := <-got:
		assert.Equal(t, uint64(5), n.TokenID)
	case <-time.After(2 * time.Second):
		t.Fatal("polled event not delivered")
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.NotEmpty(t, backend.filterQs)
	assert.Equal(t, big.NewInt(101), backend.filterQs[0].FromBlock)
}
