// Package session reconciles wallet connection, network validation, mint
// progress and contract events into one state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sigweihq/epicmint/pkg/chains"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/notify"
	"github.com/sigweihq/epicmint/pkg/types"
	"github.com/sigweihq/epicmint/pkg/utils"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrMintInFlight means a mint intent arrived while another mint is pending
	ErrMintInFlight = errors.New("mint already in progress")

	// ErrNotConnected means the intent needs a connected account
	ErrNotConnected = errors.New("wallet not connected")

	// ErrConnectInFlight means a connect intent arrived while connecting
	ErrConnectInFlight = errors.New("connect already in progress")
)

// Status is the connection state of a session
type Status int

const (
	Disconnected Status = iota
	Connecting
	Connected
)

func (s Status) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Session is a value snapshot of the machine state
type Session struct {
	Status       Status
	Account      string
	NetworkID    string
	Minting      bool // only meaningful while Connected
	WrongNetwork bool // advisory, does not block intents
}

// Counter is the mint count cache the machine refreshes
// Implemented by: *counter.Counter
type Counter interface {
	FetchAndUpdate(ctx context.Context) (types.MintCount, error)
	Snapshot() types.MintCount
}

// Subscriber owns the single event registration
// Implemented by: *notify.Subscriber
type Subscriber interface {
	Ensure(ctx context.Context) error
	Close()
}

// Machine is the session state machine
// The mutex guards state only and is never held across a gateway call
type Machine struct {
	gateway    chains.LedgerGateway
	counter    Counter
	subscriber Subscriber
	sink       notify.Sink
	network    string
	expectedID string
	logger     *slog.Logger
	onChange   func(Session)

	mu    sync.Mutex
	state Session
}

// Option configures a Machine
type Option func(*Machine)

// WithChangeHook is called with a fresh snapshot after every state change
func WithChangeHook(fn func(Session)) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// WithExpectedChainID overrides the chain id derived from the network name
func WithExpectedChainID(id string) Option {
	return func(m *Machine) {
		m.expectedID = utils.NormalizeChainID(id)
	}
}

// NewMachine creates a machine in the Disconnected state
func NewMachine(gateway chains.LedgerGateway, counter Counter, subscriber Subscriber, sink notify.Sink, network string, logger *slog.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Machine{
		gateway:    gateway,
		counter:    counter,
		subscriber: subscriber,
		sink:       sink,
		network:    network,
		expectedID: constants.NetworkToChainID[network],
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start performs silent discovery and the initial count read concurrently
// An already-authorized account connects without prompting; the count is
// read exactly once whether or not a wallet is present
func (m *Machine) Start(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		if _, err := m.counter.FetchAndUpdate(ctx); err != nil {
			m.logger.Warn("initial mint count read failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		m.discover(ctx)
		return nil
	})
	g.Wait()
}

func (m *Machine) discover(ctx context.Context) {
	if !m.gateway.HasWallet() {
		m.logger.Info("no wallet capability found; staying disconnected")
		return
	}

	discoverCtx, cancel := context.WithTimeout(ctx, constants.WalletRequestTimeout)
	accounts, err := m.gateway.DiscoverAuthorizedAccounts(discoverCtx)
	cancel()
	if err != nil {
		m.logger.Warn("account discovery failed", "error", err)
		return
	}
	if len(accounts) == 0 {
		m.logger.Info("no authorized account found")
		return
	}

	m.mu.Lock()
	if m.state.Status != Disconnected {
		m.mu.Unlock()
		return
	}
	m.state.Status = Connecting
	m.mu.Unlock()
	m.changed()

	m.logger.Info("found an authorized account", "account", accounts[0])
	m.enterConnected(ctx, accounts[0])
}

// Connect handles an explicit connect intent
func (m *Machine) Connect(ctx context.Context) error {
	if !m.gateway.HasWallet() {
		m.logger.Warn("connect requested without a wallet capability")
		m.sink.Notify(types.Notice{Kind: types.NoticeInstallWallet, Message: constants.MsgInstallWallet})
		return chains.ErrCapabilityMissing
	}

	m.mu.Lock()
	if m.state.Status == Connecting {
		m.mu.Unlock()
		m.logger.Debug("dropping connect intent while connecting")
		return ErrConnectInFlight
	}
	prev := m.state.Status
	m.state.Status = Connecting
	m.mu.Unlock()
	m.changed()

	account, err := m.gateway.RequestAccountAccess(ctx)
	if err != nil {
		m.mu.Lock()
		m.state.Status = prev
		m.mu.Unlock()
		m.changed()
		m.report("connect", err)
		return err
	}

	m.logger.Info("wallet connected", "account", account)
	m.enterConnected(ctx, account)
	return nil
}

// enterConnected completes a Connecting -> Connected transition
func (m *Machine) enterConnected(ctx context.Context, account string) {
	m.mu.Lock()
	m.state.Status = Connected
	m.state.Account = account
	m.mu.Unlock()
	m.changed()

	if err := m.subscriber.Ensure(ctx); err != nil {
		m.logger.Warn("mint event subscription unavailable", "error", err)
	}
	if err := m.checkNetwork(ctx, true); err != nil {
		m.logger.Warn("network check failed", "error", err)
	}
}

// RefreshNetwork re-reads the wallet network after a chain switch
func (m *Machine) RefreshNetwork(ctx context.Context) error {
	m.mu.Lock()
	status := m.state.Status
	m.mu.Unlock()
	if status != Connected {
		return ErrNotConnected
	}
	return m.checkNetwork(ctx, false)
}

// checkNetwork raises the advisory when entering Connected on a wrong
// network, or on a right to wrong switch afterwards
func (m *Machine) checkNetwork(ctx context.Context, entering bool) error {
	ctx, cancel := context.WithTimeout(ctx, constants.WalletRequestTimeout)
	defer cancel()

	id, err := m.gateway.ActiveNetworkID(ctx)
	if err != nil {
		return err
	}
	wrong := !utils.ChainIDsEqual(id, m.expectedID)

	m.mu.Lock()
	was := m.state.WrongNetwork
	m.state.NetworkID = id
	m.state.WrongNetwork = wrong
	m.mu.Unlock()
	m.changed()

	if wrong && (entering || !was) {
		m.logger.Warn("wallet on unexpected network", "network_id", id, "expected", m.expectedID)
		m.sink.Notify(types.Notice{Kind: types.NoticeWrongNetwork, Message: utils.WrongNetworkMessage(m.network)})
	}
	return nil
}

// Mint handles a mint intent; at most one mint is in flight
// Confirmation is awaited until mined or ctx ends
func (m *Machine) Mint(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Minting {
		m.mu.Unlock()
		m.logger.Debug("dropping mint intent while minting")
		return ErrMintInFlight
	}
	if m.state.Status != Connected {
		m.mu.Unlock()
		return ErrNotConnected
	}
	m.state.Minting = true
	m.mu.Unlock()
	m.changed()

	defer func() {
		m.mu.Lock()
		m.state.Minting = false
		m.mu.Unlock()
		m.changed()
	}()

	handle, err := m.gateway.CallMint(ctx)
	if err != nil {
		m.report("mint", err)
		return err
	}

	m.logger.Info("mint submitted", "hash", handle.Hash())
	m.sink.Notify(types.Notice{
		Kind:    types.NoticeMintSubmitted,
		Message: constants.MsgMintSubmitted,
		Link:    utils.TxExplorerURL(m.network, handle.Hash()),
	})

	hash, err := handle.AwaitConfirmation(ctx)
	if err != nil {
		m.report("mint", err)
		return err
	}

	link := utils.TxExplorerURL(m.network, hash)
	m.logger.Info("mint confirmed", "hash", hash, "explorer", link)
	m.sink.Notify(types.Notice{Kind: types.NoticeMintConfirmed, Message: constants.MsgMintConfirmed, Link: link})
	return nil
}

// report logs a failed intent and tells the user
func (m *Machine) report(op string, err error) {
	switch {
	case errors.Is(err, chains.ErrUserDeclined):
		m.logger.Info("wallet request declined", "op", op)
		m.sink.Notify(types.Notice{Kind: types.NoticeDeclined, Message: constants.MsgDeclined})
	case errors.Is(err, context.Canceled):
		m.logger.Info("operation cancelled", "op", op)
	default:
		m.logger.Error("operation failed", "op", op, "error", err)
		m.sink.Notify(types.Notice{Kind: types.NoticeError, Message: fmt.Sprintf("%s failed: %v", op, err)})
	}
}

func (m *Machine) changed() {
	if m.onChange != nil {
		m.onChange(m.Snapshot())
	}
}

// Snapshot returns a copy of the current session
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// MintCount returns the cached mint count
func (m *Machine) MintCount() types.MintCount {
	return m.counter.Snapshot()
}

// Network returns the network name used for links
func (m *Machine) Network() string {
	return m.network
}

// Close tears down the event registration
func (m *Machine) Close() {
	m.subscriber.Close()
}
