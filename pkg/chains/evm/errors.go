package evm

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sigweihq/epicmint/pkg/constants"
)

// ErrNoEndpoints means no candidate RPC endpoint exists for a network
var ErrNoEndpoints = errors.New("no RPC endpoints available")

// UnsupportedNetworkError is returned for a network without a known chain id
type UnsupportedNetworkError struct {
	Network string
}

func (e *UnsupportedNetworkError) Error() string {
	supported := slices.Sorted(maps.Keys(constants.NetworkToChainID))
	return fmt.Sprintf("unsupported network %q (supported: %s)", e.Network, strings.Join(supported, ", "))
}

// DialError records an endpoint that could not be dialled
type DialError struct {
	Endpoint string
	Err      error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial %s: %v", e.Endpoint, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}
