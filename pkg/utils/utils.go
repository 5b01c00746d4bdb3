package utils

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sigweihq/epicmint/pkg/constants"
)

// ValidateRPCURL validates that a node endpoint is secure
// Returns error if URL doesn't use HTTPS or WSS (except for localhost/127.0.0.1 for testing)
func ValidateRPCURL(url string) error {
	if strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "wss://") {
		return nil
	}
	if isLoopback(url, "http://") || isLoopback(url, "ws://") {
		return nil
	}
	return fmt.Errorf("RPC URL must use HTTPS or WSS: %s", url)
}

// ValidateBridgeURL validates a wallet bridge WebSocket URL
// Plain ws:// is only accepted on loopback addresses
func ValidateBridgeURL(url string) error {
	if strings.HasPrefix(url, "wss://") || isLoopback(url, "ws://") {
		return nil
	}
	return fmt.Errorf("wallet bridge URL must use WSS: %s", url)
}

func isLoopback(url, scheme string) bool {
	return strings.HasPrefix(url, scheme+"localhost") ||
		strings.HasPrefix(url, scheme+"127.0.0.1") ||
		strings.HasPrefix(url, scheme+"[::1]")
}

// IsPushURL reports whether an endpoint supports push subscriptions
func IsPushURL(url string) bool {
	return strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") || !strings.Contains(url, "://")
}

// TokenLocator returns the viewer link for a minted token
func TokenLocator(network, contract string, tokenID uint64) string {
	return fmt.Sprintf(constants.TokenLocatorFormat, network, contract, tokenID)
}

// CollectionLocator returns the viewer link for the whole collection
func CollectionLocator(network, contract string) string {
	return fmt.Sprintf(constants.CollectionLocatorFormat, network, contract)
}

// TxExplorerURL returns the block explorer link for a transaction
func TxExplorerURL(network, txHash string) string {
	return fmt.Sprintf(constants.TxExplorerFormat, network, txHash)
}

// SocialLink returns the profile link for a social handle (leading @ is ignored)
func SocialLink(handle string) string {
	return fmt.Sprintf(constants.SocialLinkFormat, strings.TrimPrefix(handle, "@"))
}

// NormalizeChainID canonicalizes a hex chain id (lower case, no leading zeros)
// Values that are not valid hex quantities are lower-cased and returned as is
func NormalizeChainID(chainID string) string {
	id := strings.ToLower(strings.TrimSpace(chainID))
	n, err := hexutil.DecodeBig(id)
	if err != nil {
		return id
	}
	return hexutil.EncodeBig(n)
}

// ChainIDsEqual compares two hex chain ids
func ChainIDsEqual(a, b string) bool {
	return NormalizeChainID(a) == NormalizeChainID(b)
}

// WrongNetworkMessage names the network the wallet should switch to
func WrongNetworkMessage(network string) string {
	name := network
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return fmt.Sprintf(constants.MsgWrongNetwork, name)
}

// AddressesEqual compares two EVM addresses
// EVM addresses are case-insensitive due to EIP-55 checksumming
func AddressesEqual(addr1, addr2 string) bool {
	return strings.EqualFold(addr1, addr2)
}

// ParsePrivateKey parses a hex private key with or without the 0x prefix
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKeyHex = strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")

	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return privateKey, nil
}

// DeriveAddress derives the checksummed address from a private key
func DeriveAddress(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}
