// Package notify owns the single contract event registration of a session.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sigweihq/epicmint/pkg/chains"
	"github.com/sigweihq/epicmint/pkg/constants"
	"github.com/sigweihq/epicmint/pkg/types"
	"github.com/sigweihq/epicmint/pkg/utils"
)

// Sink receives user-facing notices
type Sink interface {
	Notify(notice types.Notice)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(types.Notice)

// Notify implements Sink
func (f SinkFunc) Notify(notice types.Notice) {
	f(notice)
}

// Refresher re-reads the mint count on demand
// Implemented by: *counter.Counter
type Refresher interface {
	FetchAndUpdate(ctx context.Context) (types.MintCount, error)
}

// Subscriber keeps at most one live NewEpicNFTMinted registration
type Subscriber struct {
	source   chains.EventSource
	counter  Refresher
	sink     Sink
	network  string
	contract string
	logger   *slog.Logger

	mu  sync.Mutex // held across Subscribe so concurrent Ensure calls register once
	sub chains.Subscription
}

// NewSubscriber creates a subscriber; network and contract build token links
func NewSubscriber(source chains.EventSource, counter Refresher, sink Sink, network, contract string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		source:   source,
		counter:  counter,
		sink:     sink,
		network:  network,
		contract: contract,
		logger:   logger,
	}
}

// Ensure registers the event handler unless a live registration exists
// The first registration happens synchronously so its failure is returned;
// after that a dropped subscription is re-established with backoff.
func (s *Subscriber) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		s.logger.Debug("event subscription already active", "event", constants.MintedEvent)
		return nil
	}

	first, err := s.source.Subscribe(ctx, constants.MintedEvent, s.handle)
	if err != nil {
		s.logger.Error("failed to subscribe to mint events", "error", err)
		return err
	}

	sub := event.ResubscribeErr(constants.ResubscribeBackoff, func(ctx context.Context, lastErr error) (event.Subscription, error) {
		if first != nil {
			established := first
			first = nil
			return established, nil
		}
		s.logger.Warn("mint event subscription dropped, renewing", "error", lastErr)
		renewed, err := s.source.Subscribe(ctx, constants.MintedEvent, s.handle)
		if err != nil {
			s.logger.Warn("failed to renew mint event subscription", "error", err)
			return nil, err
		}
		return renewed, nil
	})
	s.sub = sub
	go s.watch(sub)
	return nil
}

// Active reports whether a registration is live
func (s *Subscriber) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// watch drops the handle once the registration ends for good
func (s *Subscriber) watch(sub chains.Subscription) {
	if err := <-sub.Err(); err != nil {
		s.logger.Warn("mint event subscription failed", "error", err)
	}

	s.mu.Lock()
	if s.sub == sub {
		s.sub = nil
	}
	s.mu.Unlock()
}

// handle refreshes the counter and acknowledges the mint
func (s *Subscriber) handle(n types.MintNotification) {
	s.logger.Info("mint event received", "from", n.From, "token_id", n.TokenID, "tx", n.TxHash)

	ctx, cancel := context.WithTimeout(context.Background(), constants.RefreshTimeout)
	defer cancel()
	if _, err := s.counter.FetchAndUpdate(ctx); err != nil {
		s.logger.Warn("mint count refresh after event failed", "error", err)
	}

	s.sink.Notify(types.Notice{
		Kind:    types.NoticeMinted,
		Message: constants.MsgMinted,
		Link:    utils.TokenLocator(s.network, s.contract, n.TokenID),
	})
}

// Close deregisters the handler
func (s *Subscriber) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
