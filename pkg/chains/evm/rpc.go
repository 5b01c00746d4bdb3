package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/epicmint/pkg/chains"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/types"
)

// ReadMintCounts implements chains.MintCountReader
// Both values come from one eth_call pinned to a single block
func (g *Gateway) ReadMintCounts(ctx context.Context) (types.MintCount, error) {
	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_blockNumber", Err: err}
	}

	data, err := g.abi.Pack(constants.MintCountMethod)
	if err != nil {
		return types.MintCount{}, fmt.Errorf("failed to pack %s: %w", constants.MintCountMethod, err)
	}

	out, err := g.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &g.contract,
		Data: data,
	}, new(big.Int).SetUint64(head))
	if err != nil {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_call", Err: err}
	}

	values, err := g.abi.Unpack(constants.MintCountMethod, out)
	if err != nil {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_call", Err: fmt.Errorf("failed to decode contract call result: %w", err)}
	}
	if len(values) != 2 {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_call", Err: fmt.Errorf("expected 2 values, got %d", len(values))}
	}

	current, err := toUint64(values[0])
	if err != nil {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_call", Err: err}
	}
	maximum, err := toUint64(values[1])
	if err != nil {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_call", Err: err}
	}

	count := types.MintCount{Current: current, Maximum: maximum, Known: true}
	if err := count.Validate(); err != nil {
		return types.MintCount{}, &chains.RemoteCallError{Op: "eth_call", Err: err}
	}
	return count, nil
}

func toUint64(v any) (uint64, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("value %s out of range", n.String())
	}
	return n.Uint64(), nil
}

// Subscribe implements chains.EventSource
// Uses a push subscription when the transport supports it and falls back to
// polling eth_getLogs otherwise (plain HTTP endpoints)
func (g *Gateway) Subscribe(ctx context.Context, eventName string, handler func(types.MintNotification)) (chains.Subscription, error) {
	ev, ok := g.abi.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chains.ErrUnknownEvent, eventName)
	}

	query := ethereum.FilterQuery{
		Addresses: []common.Address{g.contract},
		Topics:    [][]common.Hash{{ev.ID}},
	}
	logs := make(chan ethtypes.Log, constants.SubscriptionBufferLen)

	sub, err := g.backend.SubscribeFilterLogs(ctx, query, logs)
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		g.logger.Info("push subscriptions unsupported, polling logs", "event", eventName, "interval", g.logPollInterval)
		sub, err = g.pollLogs(ctx, query, logs)
	}
	if err != nil {
		return nil, &chains.RemoteCallError{Op: "eth_subscribe", Err: err}
	}

	g.logger.Info("subscribed to contract event", "event", eventName, "contract", g.contract.Hex())

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				if l.Removed {
					continue
				}
				n, err := decodeMinted(ev, l)
				if err != nil {
					g.logger.Warn("dropping undecodable event log", "tx", l.TxHash.Hex(), "error", err)
					continue
				}
				handler(n)
			case err := <-sub.Err():
				if err == nil {
					return nil
				}
				return &chains.RemoteCallError{Op: "eth_subscribe", Err: err}
			case <-quit:
				return nil
			}
		}
	}), nil
}

// decodeMinted decodes a NewEpicNFTMinted(address, uint256) log
func decodeMinted(ev abi.Event, l ethtypes.Log) (types.MintNotification, error) {
	values, err := ev.Inputs.Unpack(l.Data)
	if err != nil {
		return types.MintNotification{}, fmt.Errorf("failed to unpack %s: %w", ev.Name, err)
	}
	if len(values) != 2 {
		return types.MintNotification{}, fmt.Errorf("expected 2 values, got %d", len(values))
	}

	from, ok := values[0].(common.Address)
	if !ok {
		return types.MintNotification{}, fmt.Errorf("unexpected sender type %T", values[0])
	}
	tokenID, err := toUint64(values[1])
	if err != nil {
		return types.MintNotification{}, err
	}

	return types.MintNotification{
		From:    from.Hex(),
		TokenID: tokenID,
		TxHash:  l.TxHash.Hex(),
	}, nil
}

// pollLogs emulates a log subscription with periodic eth_getLogs calls
// starting after the current head
func (g *Gateway) pollLogs(ctx context.Context, query ethereum.FilterQuery, logs chan<- ethtypes.Log) (ethereum.Subscription, error) {
	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	next := head + 1

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := time.NewTicker(g.logPollInterval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-quit:
				return nil
			case <-ticker.C:
			}

			found, last, err := g.fetchLogRange(query, next)
			if err != nil {
				failures++
				g.logger.Warn("log poll failed", "error", err, "failures", failures)
				if failures >= constants.MaxRetries {
					return err
				}
				continue
			}
			failures = 0
			if last < next {
				continue
			}

			for _, l := range found {
				select {
				case logs <- l:
				case <-quit:
					return nil
				}
			}
			next = last + 1
		}
	}), nil
}

// fetchLogRange returns logs from block `from` up to the current head
func (g *Gateway) fetchLogRange(query ethereum.FilterQuery, from uint64) ([]ethtypes.Log, uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CallContractTimeout)
	defer cancel()

	head, err := g.backend.BlockNumber(ctx)
	if err != nil {
		return nil, 0, err
	}
	if head < from {
		return nil, head, nil
	}

	query.FromBlock = new(big.Int).SetUint64(from)
	query.ToBlock = new(big.Int).SetUint64(head)
	found, err := g.backend.FilterLogs(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return found, head, nil
}

// txHandle implements chains.TxHandle
type txHandle struct {
	hash    common.Hash
	gateway *Gateway
}

func (h *txHandle) Hash() string {
	return h.hash.Hex()
}

// AwaitConfirmation polls for the receipt until the transaction is mined
// There is no timeout; ctx is the only cancellation
func (h *txHandle) AwaitConfirmation(ctx context.Context) (string, error) {
	g := h.gateway
	ticker := time.NewTicker(g.receiptPollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := g.backend.TransactionReceipt(ctx, h.hash)
		switch {
		case err == nil:
			if receipt.Status != ethtypes.ReceiptStatusSuccessful {
				return h.hash.Hex(), fmt.Errorf("%w: %s", chains.ErrTransactionReverted, h.hash.Hex())
			}
			g.logger.Info("transaction mined", "hash", h.hash.Hex(), "block", receipt.BlockNumber)
			return h.hash.Hex(), nil
		case errors.Is(err, ethereum.NotFound):
			failures = 0
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			failures++
			g.logger.Warn("receipt lookup failed", "hash", h.hash.Hex(), "error", err, "failures", failures)
			if failures >= constants.MaxRetries {
				return "", &chains.RemoteCallError{Op: "eth_getTransactionReceipt", Err: err}
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
