package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sigweihq/epicmint/pkg/constants"
)

// ChainListResponse represents a chain entry from chainlist.org/rpcs.json
type ChainListResponse struct {
	ChainID uint64              `json:"chainId"`
	Name    string              `json:"name"`
	RPC     []ChainListRPCEntry `json:"rpc"`
}

// ChainListRPCEntry represents an RPC endpoint entry
type ChainListRPCEntry struct {
	URL      string `json:"url"`
	Tracking string `json:"tracking,omitempty"`
}

// FetchChainlistEndpoints fetches public RPC endpoints for one chain id
func FetchChainlistEndpoints(ctx context.Context, client *http.Client, url string, chainID uint64) ([]string, error) {
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, constants.ChainlistTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chain data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var chains []ChainListResponse
	if err := json.NewDecoder(resp.Body).Decode(&chains); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, chain := range chains {
		if chain.ChainID == chainID {
			return extractSecureRPCs(chain.RPC), nil
		}
	}
	return nil, nil
}

// extractSecureRPCs keeps HTTPS and WSS URLs and drops templated ones
func extractSecureRPCs(entries []ChainListRPCEntry) []string {
	var urls []string
	for _, rpc := range entries {
		if strings.Contains(rpc.URL, "${") {
			continue
		}
		if strings.HasPrefix(rpc.URL, "https://") || strings.HasPrefix(rpc.URL, "wss://") {
			urls = append(urls, rpc.URL)
		}
	}
	return urls
}
