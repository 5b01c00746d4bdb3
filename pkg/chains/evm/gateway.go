package evm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/epicmint/pkg/chains"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/utils"
	"github.com/sigweihq/epicmint/pkg/wallet"
)

// Backend is the read-only node surface the gateway needs
// Implemented by: *ethclient.Client
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error)
}

// Gateway implements chains.LedgerGateway for an EVM contract
// Wallet-bound operations go through the wallet provider; reads, receipts and
// logs go through the node backend
type Gateway struct {
	network  string
	contract common.Address
	abi      abi.ABI
	wallet   wallet.Provider
	backend  Backend
	logger   *slog.Logger

	receiptPollInterval time.Duration
	logPollInterval     time.Duration
}

// GatewayOption configures a Gateway
type GatewayOption func(*Gateway)

// WithPollIntervals overrides the receipt and log polling cadence
func WithPollIntervals(receipt, logs time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.receiptPollInterval = receipt
		g.logPollInterval = logs
	}
}

// NewGateway creates a gateway; a nil provider means no wallet capability is present
func NewGateway(network string, contract common.Address, provider wallet.Provider, backend Backend, logger *slog.Logger, opts ...GatewayOption) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := constants.NetworkToChainID[network]; !ok {
		return nil, &UnsupportedNetworkError{Network: network}
	}

	parsed, err := ParseEpicNFTABI()
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		network:             network,
		contract:            contract,
		abi:                 parsed,
		wallet:              provider,
		backend:             backend,
		logger:              logger,
		receiptPollInterval: constants.ReceiptPollInterval,
		logPollInterval:     constants.LogPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Verify Gateway implements chains.LedgerGateway
var _ chains.LedgerGateway = (*Gateway)(nil)

// Network returns the network name used for links
func (g *Gateway) Network() string {
	return g.network
}

// Contract returns the contract address
func (g *Gateway) Contract() common.Address {
	return g.contract
}

// HasWallet implements chains.LedgerGateway
func (g *Gateway) HasWallet() bool {
	return g.wallet != nil
}

// DiscoverAuthorizedAccounts implements chains.LedgerGateway
func (g *Gateway) DiscoverAuthorizedAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := g.walletCall(ctx, &accounts, wallet.MethodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// RequestAccountAccess implements chains.LedgerGateway
func (g *Gateway) RequestAccountAccess(ctx context.Context) (string, error) {
	var accounts []string
	if err := g.walletCall(ctx, &accounts, wallet.MethodRequestAccounts); err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return "", chains.ErrNoAccount
	}
	return accounts[0], nil
}

// ActiveNetworkID implements chains.LedgerGateway
func (g *Gateway) ActiveNetworkID(ctx context.Context) (string, error) {
	var chainID string
	if err := g.walletCall(ctx, &chainID, wallet.MethodChainID); err != nil {
		return "", err
	}
	return utils.NormalizeChainID(chainID), nil
}

// CallMint implements chains.LedgerGateway
// The transaction is sent from the wallet's selected account
func (g *Gateway) CallMint(ctx context.Context) (chains.TxHandle, error) {
	accounts, err := g.DiscoverAuthorizedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, chains.ErrNoAccount
	}

	data, err := g.abi.Pack(constants.MintMethod)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", constants.MintMethod, err)
	}

	g.logger.Info("submitting mint transaction", "from", accounts[0], "contract", g.contract.Hex())

	var hash string
	err = g.walletCall(ctx, &hash, wallet.MethodSendTransaction, wallet.TxRequest{
		From: accounts[0],
		To:   g.contract.Hex(),
		Data: hexutil.Encode(data),
	})
	if err != nil {
		return nil, err
	}

	return &txHandle{hash: common.HexToHash(hash), gateway: g}, nil
}

// walletCall performs a wallet request and decodes its result into out
func (g *Gateway) walletCall(ctx context.Context, out any, method string, params ...any) error {
	if !g.HasWallet() {
		return chains.ErrCapabilityMissing
	}

	raw, err := g.wallet.Request(ctx, method, params...)
	if err != nil {
		if errors.Is(err, chains.ErrUserDeclined) || errors.Is(err, chains.ErrNoAccount) {
			return fmt.Errorf("%s: %w", method, err)
		}
		return &chains.RemoteCallError{Op: method, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &chains.RemoteCallError{Op: method, Err: fmt.Errorf("failed to decode result: %w", err)}
	}
	return nil
}
