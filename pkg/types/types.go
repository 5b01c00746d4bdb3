package types

import "fmt"

// MintCount is a snapshot of the contract's mint counters
// Values are eventually consistent copies of remote state, not authoritative
type MintCount struct {
	Current uint64 `json:"current"`
	Maximum uint64 `json:"maximum"`
	Known   bool   `json:"known"` // false until the first successful read
}

// Validate checks the current <= maximum invariant
func (c MintCount) Validate() error {
	if c.Current > c.Maximum {
		return fmt.Errorf("inconsistent mint count: current %d exceeds maximum %d", c.Current, c.Maximum)
	}
	return nil
}

// String renders the pair the way the collection page shows it
func (c MintCount) String() string {
	if !c.Known {
		return "? / ?"
	}
	return fmt.Sprintf("%d / %d", c.Current, c.Maximum)
}

// MintNotification represents one NewEpicNFTMinted occurrence
type MintNotification struct {
	From    string `json:"from"`    // Minter wallet address
	TokenID uint64 `json:"tokenId"` // Token identifier assigned by the contract
	TxHash  string `json:"txHash"`  // Transaction that emitted the event
}

// NoticeKind classifies a user-facing notice
type NoticeKind string

const (
	NoticeInstallWallet NoticeKind = "install-wallet"
	NoticeDeclined      NoticeKind = "declined"
	NoticeWrongNetwork  NoticeKind = "wrong-network"
	NoticeMinted        NoticeKind = "minted"
	NoticeMintSubmitted NoticeKind = "mint-submitted"
	NoticeMintConfirmed NoticeKind = "mint-confirmed"
	NoticeError         NoticeKind = "error"
)

// Notice is a one-time message surfaced to the user
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Link    string     `json:"link,omitempty"`
}

// Text joins the message and its link
func (n Notice) Text() string {
	if n.Link == "" {
		return n.Message
	}
	return n.Message + " " + n.Link
}
