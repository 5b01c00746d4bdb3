package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/epicmint/pkg/constants"
)

// DialNetwork connects to the healthiest reachable endpoint for a network
// Endpoints are tried in priority order; the first successful dial wins
func DialNetwork(ctx context.Context, logger *slog.Logger, network string, configured []string, opts ...EndpointOption) (*ethclient.Client, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, ok := constants.NetworkToChainID[network]; !ok {
		return nil, "", &UnsupportedNetworkError{Network: network}
	}

	provider := NewEndpointProvider(network, configured, logger, opts...)
	endpoints := provider.Prioritize(ctx)
	if len(endpoints) == 0 {
		return nil, "", fmt.Errorf("%w for %s", ErrNoEndpoints, network)
	}

	var errs []error
	for _, endpoint := range endpoints {
		client, err := ethclient.DialContext(ctx, endpoint)
		if err != nil {
			logger.Warn("failed to dial RPC endpoint", "endpoint", endpoint, "error", err)
			errs = append(errs, &DialError{Endpoint: endpoint, Err: err})
			continue
		}
		logger.Info("connected to RPC endpoint", "network", network, "endpoint", endpoint)
		return client, endpoint, nil
	}

	return nil, "", errors.Join(errs...)
}
