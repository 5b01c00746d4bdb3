// Package wallet adapts wallet capabilities to the EIP-1193 request surface
// the ledger gateway consumes.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sigweihq/epicmint/pkg/chains"
)

// Provider is an injected wallet capability (EIP-1193 style)
type Provider interface {
	// Request performs a JSON-RPC method against the wallet
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Wallet methods consumed by the gateway
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodSendTransaction = "eth_sendTransaction"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeInternal          = -32603
)

// ProviderError is an EIP-1193 provider error
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

// Is maps provider codes onto the chain-agnostic error taxonomy
func (e *ProviderError) Is(target error) bool {
	switch target {
	case chains.ErrUserDeclined:
		return e.Code == CodeUserRejected
	case chains.ErrNoAccount:
		return e.Code == CodeUnauthorized
	}
	return false
}

// TxRequest is the eth_sendTransaction parameter object
type TxRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data,omitempty"`
	Value string `json:"value,omitempty"` // hex quantity
	Gas   string `json:"gas,omitempty"`   // hex quantity
}

// Prompt describes an interactive request awaiting the user's decision
type Prompt struct {
	Method  string
	Account string
	Tx      *TxRequest
}

// Approver decides interactive prompts; returning false declines the request
type Approver func(ctx context.Context, prompt Prompt) (bool, error)

// AutoApprove accepts every prompt
func AutoApprove(context.Context, Prompt) (bool, error) {
	return true, nil
}

// decodeParam re-decodes a loosely typed request parameter into dst
func decodeParam(param any, dst any) error {
	raw, err := json.Marshal(param)
	if err != nil {
		return fmt.Errorf("failed to marshal parameter: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode parameter: %w", err)
	}
	return nil
}
