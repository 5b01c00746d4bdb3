package evm

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// HealthChecker reports whether an RPC endpoint answers
type HealthChecker func(ctx context.Context, endpoint string) bool

// EndpointProvider orders the configured RPC endpoints by health, falling back
// to the official endpoints for the network when none are configured
type EndpointProvider struct {
	network    string
	configured []string
	logger     *slog.Logger
	check      HealthChecker

	chainlistURL    string
	chainlistClient *http.Client
}

// EndpointOption configures an EndpointProvider
type EndpointOption func(*EndpointProvider)

// WithChainlist appends public endpoints discovered from a chainlist feed
// as backups behind the configured or official ones
func WithChainlist(url string, client *http.Client) EndpointOption {
	return func(p *EndpointProvider) {
		p.chainlistURL = url
		p.chainlistClient = client
	}
}

// NewEndpointProvider creates a provider for one network
func NewEndpointProvider(network string, configured []string, logger *slog.Logger, opts ...EndpointOption) *EndpointProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &EndpointProvider{
		network:    network,
		configured: configured,
		logger:     logger,
		check:      isEndpointHealthy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetEndpoints returns the candidate endpoints in configured order
func (p *EndpointProvider) GetEndpoints() []string {
	var endpoints []string
	for _, endpoint := range p.configured {
		if err := utils.ValidateRPCURL(endpoint); err != nil {
			p.logger.Warn("skipping insecure RPC endpoint", "endpoint", endpoint, "error", err)
			continue
		}
		endpoints = append(endpoints, endpoint)
	}
	if len(endpoints) == 0 {
		// Fallback to official endpoints when nothing usable is configured
		return slices.Clone(constants.OfficialRPCEndpoints[p.network])
	}
	return endpoints
}

// Prioritize checks endpoint health in parallel and returns healthy endpoints
// first, then unhealthy ones as backup, each group in candidate order
func (p *EndpointProvider) Prioritize(ctx context.Context) []string {
	endpoints := p.GetEndpoints()
	endpoints = append(endpoints, p.discover(ctx, endpoints)...)
	healthy := make([]bool, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, endpoint := range endpoints {
		g.Go(func() error {
			healthy[i] = p.check(gctx, endpoint)
			return nil
		})
	}
	g.Wait()

	var healthyEndpoints, unhealthyEndpoints []string
	for i, endpoint := range endpoints {
		if healthy[i] {
			healthyEndpoints = append(healthyEndpoints, endpoint)
		} else {
			unhealthyEndpoints = append(unhealthyEndpoints, endpoint)
		}
	}

	p.logger.Debug("health check complete",
		"network", p.network,
		"healthy", len(healthyEndpoints),
		"unhealthy", len(unhealthyEndpoints))

	return append(healthyEndpoints, unhealthyEndpoints...)
}

// discover returns chainlist endpoints not already in known
func (p *EndpointProvider) discover(ctx context.Context, known []string) []string {
	if p.chainlistURL == "" {
		return nil
	}

	chainID, err := hexutil.DecodeUint64(constants.NetworkToChainID[p.network])
	if err != nil {
		return nil
	}

	found, err := FetchChainlistEndpoints(ctx, p.chainlistClient, p.chainlistURL, chainID)
	if err != nil {
		p.logger.Warn("failed to fetch chainlist endpoints, using known endpoints only", "error", err)
		return nil
	}

	var extra []string
	for _, endpoint := range found {
		if !slices.Contains(known, endpoint) && !slices.Contains(extra, endpoint) {
			extra = append(extra, endpoint)
		}
	}
	p.logger.Debug("discovered chainlist endpoints", "network", p.network, "count", len(extra))
	return extra
}

// isEndpointHealthy performs a simple health check on an RPC endpoint
func isEndpointHealthy(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, constants.HealthCheckTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return false
	}
	defer client.Close()

	_, err = client.BlockNumber(ctx)
	return err == nil
}
