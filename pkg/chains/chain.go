package chains

import (
	"context"

	"github.com/sigweihq/epicmint/pkg/types"
)

// LedgerGateway is the single surface the session uses to reach the wallet
// capability and the deployed contract
type LedgerGateway interface {
	// HasWallet reports whether a wallet capability is present
	// Absence is a detectable condition, not an error
	HasWallet() bool

	// DiscoverAuthorizedAccounts returns already-authorized accounts without prompting
	DiscoverAuthorizedAccounts(ctx context.Context) ([]string, error)

	// RequestAccountAccess asks the wallet for an account, possibly prompting the user
	RequestAccountAccess(ctx context.Context) (string, error)

	// ActiveNetworkID returns the wallet's current hex chain id
	ActiveNetworkID(ctx context.Context) (string, error)

	// CallMint submits the mint transaction through the wallet
	CallMint(ctx context.Context) (TxHandle, error)

	MintCountReader
	EventSource
}

// MintCountReader performs the read-only counter call
type MintCountReader interface {
	// ReadMintCounts returns the (current, maximum) pair read from a single block
	ReadMintCounts(ctx context.Context) (types.MintCount, error)
}

// EventSource registers push-style listeners for contract events
type EventSource interface {
	// Subscribe registers handler for eventName; callers own single-registration
	Subscribe(ctx context.Context, eventName string, handler func(types.MintNotification)) (Subscription, error)
}

// TxHandle tracks a submitted transaction
type TxHandle interface {
	// Hash returns the submitted transaction hash
	Hash() string

	// AwaitConfirmation blocks until the transaction is mined
	// Returns the final hash, or an error if it reverted or ctx ended
	AwaitConfirmation(ctx context.Context) (string, error)
}

// Subscription is a live event registration
type Subscription interface {
	// Unsubscribe deregisters the listener; safe to call more than once
	Unsubscribe()

	// Err delivers a terminal subscription failure and is closed on Unsubscribe
	Err() <-chan error
}
