package chains

import (
	"errors"
	"fmt"
)

var (
	// ErrCapabilityMissing means no wallet is present; unrecoverable for the session
	ErrCapabilityMissing = errors.New("wallet capability missing")

	// ErrUserDeclined means an interactive wallet request was rejected
	ErrUserDeclined = errors.New("user declined wallet request")

	// ErrNoAccount means the wallet has no authorized account to act for
	ErrNoAccount = errors.New("no authorized account")

	// ErrTransactionReverted means the transaction was mined with a failure status
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrUnknownEvent means the contract ABI has no such event
	ErrUnknownEvent = errors.New("unknown contract event")
)

// RemoteCallError represents a failed network or contract call
type RemoteCallError struct {
	Op  string
	Err error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("remote call %s failed: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error {
	return e.Err
}

// IsRemoteCallFailure reports whether err is a recoverable remote failure
func IsRemoteCallFailure(err error) bool {
	var rce *RemoteCallError
	return errors.As(err, &rce)
}
