package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// EpicNFTABI is the subset of the MyEpicNFT contract this client calls
const EpicNFTABI = `[
	{"inputs":[],"name":"makeAnEpicNFT","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[],"name":"getMintCounts","outputs":[{"internalType":"uint256","name":"current","type":"uint256"},{"internalType":"uint256","name":"maximum","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":false,"internalType":"address","name":"sender","type":"address"},{"indexed":false,"internalType":"uint256","name":"tokenId","type":"uint256"}],"name":"NewEpicNFTMinted","type":"event"}
]`

// ParseEpicNFTABI parses EpicNFTABI
func ParseEpicNFTABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(EpicNFTABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return parsed, nil
}
