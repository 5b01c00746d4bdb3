package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sigweihq/epicmint/pkg/utils"
)

// KeyBackend is the node surface a local key wallet needs to sign and broadcast
// Implemented by: *ethclient.Client
type KeyBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
}

// KeyProvider is a wallet capability backed by a single local private key
// Account access and transaction signing go through the Approver, mirroring
// the prompts a browser wallet would show
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	backend KeyBackend
	approve Approver
	logger  *slog.Logger

	mu         sync.Mutex
	authorized bool
}

// KeyOption configures a KeyProvider
type KeyOption func(*KeyProvider)

// WithPreAuthorized marks the account as already authorized, so eth_accounts
// reports it without a prompt
func WithPreAuthorized() KeyOption {
	return func(p *KeyProvider) {
		p.authorized = true
	}
}

// NewKeyProvider creates a key-backed wallet
func NewKeyProvider(key *ecdsa.PrivateKey, backend KeyBackend, approve Approver, logger *slog.Logger, opts ...KeyOption) *KeyProvider {
	if logger == nil {
		logger = slog.Default()
	}
	if approve == nil {
		approve = AutoApprove
	}
	p := &KeyProvider{
		key:     key,
		address: utils.DeriveAddress(key),
		backend: backend,
		approve: approve,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify KeyProvider implements Provider
var _ Provider = (*KeyProvider)(nil)

// LoadKeystore decrypts a go-ethereum keystore file
func LoadKeystore(path, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore: %w", err)
	}
	return key.PrivateKey, nil
}

// Address returns the wallet account
func (p *KeyProvider) Address() common.Address {
	return p.address
}

// Request implements Provider
func (p *KeyProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	switch method {
	case MethodAccounts:
		return json.Marshal(p.accounts())

	case MethodRequestAccounts:
		if err := p.authorize(ctx); err != nil {
			return nil, err
		}
		return json.Marshal(p.accounts())

	case MethodChainID:
		chainID, err := p.backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get chain id: %w", err)
		}
		return json.Marshal(hexutil.EncodeBig(chainID))

	case MethodSendTransaction:
		if len(params) == 0 {
			return nil, &ProviderError{Code: CodeInternal, Message: "missing transaction parameter"}
		}
		var req TxRequest
		if err := decodeParam(params[0], &req); err != nil {
			return nil, &ProviderError{Code: CodeInternal, Message: err.Error()}
		}
		hash, err := p.sendTransaction(ctx, &req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash.Hex())
	}

	return nil, &ProviderError{Code: CodeUnsupportedMethod, Message: fmt.Sprintf("unsupported method %s", method)}
}

func (p *KeyProvider) accounts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.authorized {
		return []string{}
	}
	return []string{p.address.Hex()}
}

// authorize prompts for account access unless already granted
func (p *KeyProvider) authorize(ctx context.Context) error {
	p.mu.Lock()
	authorized := p.authorized
	p.mu.Unlock()
	if authorized {
		return nil
	}

	ok, err := p.approve(ctx, Prompt{Method: MethodRequestAccounts, Account: p.address.Hex()})
	if err != nil {
		return fmt.Errorf("account approval failed: %w", err)
	}
	if !ok {
		p.logger.Info("account access declined", "account", p.address.Hex())
		return &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
	}

	p.mu.Lock()
	p.authorized = true
	p.mu.Unlock()
	return nil
}

// sendTransaction builds, signs and broadcasts an EIP-1559 transaction
func (p *KeyProvider) sendTransaction(ctx context.Context, req *TxRequest) (common.Hash, error) {
	p.mu.Lock()
	authorized := p.authorized
	p.mu.Unlock()
	if !authorized {
		return common.Hash{}, &ProviderError{Code: CodeUnauthorized, Message: "account not authorized"}
	}
	if req.From != "" && !utils.AddressesEqual(req.From, p.address.Hex()) {
		return common.Hash{}, &ProviderError{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", req.From)}
	}
	if !common.IsHexAddress(req.To) {
		return common.Hash{}, &ProviderError{Code: CodeInternal, Message: fmt.Sprintf("invalid recipient %q", req.To)}
	}

	ok, err := p.approve(ctx, Prompt{Method: MethodSendTransaction, Account: p.address.Hex(), Tx: req})
	if err != nil {
		return common.Hash{}, fmt.Errorf("transaction approval failed: %w", err)
	}
	if !ok {
		p.logger.Info("transaction declined", "to", req.To)
		return common.Hash{}, &ProviderError{Code: CodeUserRejected, Message: "user denied transaction signature"}
	}

	to := common.HexToAddress(req.To)
	data, value, err := decodeTxFields(req)
	if err != nil {
		return common.Hash{}, &ProviderError{Code: CodeInternal, Message: err.Error()}
	}

	chainID, err := p.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get chain id: %w", err)
	}
	nonce, err := p.backend.PendingNonceAt(ctx, p.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := p.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := p.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas, err := p.gasLimit(ctx, req, to, data, value)
	if err != nil {
		return common.Hash{}, err
	}

	tx := ethtypes.NewTx(&ethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := p.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	p.logger.Info("transaction broadcast", "hash", signed.Hash().Hex(), "nonce", nonce, "gas", gas)
	return signed.Hash(), nil
}

func (p *KeyProvider) gasLimit(ctx context.Context, req *TxRequest, to common.Address, data []byte, value *big.Int) (uint64, error) {
	if req.Gas != "" {
		gas, err := hexutil.DecodeUint64(req.Gas)
		if err != nil {
			return 0, &ProviderError{Code: CodeInternal, Message: fmt.Sprintf("invalid gas %q", req.Gas)}
		}
		return gas, nil
	}
	gas, err := p.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  p.address,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

func decodeTxFields(req *TxRequest) ([]byte, *big.Int, error) {
	var data []byte
	if req.Data != "" {
		decoded, err := hexutil.Decode(req.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid data: %w", err)
		}
		data = decoded
	}
	value := new(big.Int)
	if req.Value != "" {
		decoded, err := hexutil.DecodeBig(req.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid value: %w", err)
		}
		value = decoded
	}
	return data, value, nil
}
