// Package counter caches the contract's (current, maximum) mint counts.
package counter

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sigweihq/epicmint/pkg/chains"
	"github.com/sigweihq/epicmint/pkg/types"
)

// Counter holds the latest mint count snapshot
// The pair is swapped as one pointer so readers never see a mixed pair
type Counter struct {
	reader chains.MintCountReader
	logger *slog.Logger

	issued   atomic.Uint64
	snapshot atomic.Pointer[entry]
	onChange func(types.MintCount)

	mu         sync.Mutex // guards delivering and delivered
	delivering bool
	delivered  uint64
}

type entry struct {
	seq   uint64
	count types.MintCount
}

// Option configures a Counter
type Option func(*Counter)

// WithChangeHook receives stored snapshots in issue order
// Calls are never concurrent; a snapshot superseded before delivery is skipped.
func WithChangeHook(fn func(types.MintCount)) Option {
	return func(c *Counter) {
		c.onChange = fn
	}
}

// New creates a counter backed by reader
func New(reader chains.MintCountReader, logger *slog.Logger, opts ...Option) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Counter{
		reader: reader,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAndUpdate reads the remote pair and replaces the snapshot
// A read issued earlier never overwrites the result of a read issued later.
// On failure the previous snapshot is kept and returned with the error.
func (c *Counter) FetchAndUpdate(ctx context.Context) (types.MintCount, error) {
	seq := c.issued.Add(1)

	count, err := c.reader.ReadMintCounts(ctx)
	if err == nil {
		err = count.Validate()
	}
	if err != nil {
		c.logger.Warn("failed to refresh mint count", "error", err)
		return c.Snapshot(), err
	}
	count.Known = true

	next := &entry{seq: seq, count: count}
	for {
		prev := c.snapshot.Load()
		if prev != nil && prev.seq > seq {
			c.logger.Debug("discarding stale mint count", "seq", seq, "latest", prev.seq)
			return prev.count, nil
		}
		if c.snapshot.CompareAndSwap(prev, next) {
			break
		}
	}

	c.logger.Debug("mint count updated", "current", count.Current, "maximum", count.Maximum)
	if c.onChange != nil {
		c.publish()
	}
	return count, nil
}

// publish hands the newest snapshot to the hook
// Only one caller delivers at a time; it keeps delivering until the hook has
// seen the latest stored entry, so the final value delivered is never stale.
func (c *Counter) publish() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for {
		e := c.snapshot.Load()
		if e == nil || e.seq <= c.delivered {
			c.delivering = false
			c.mu.Unlock()
			return
		}
		c.delivered = e.seq
		c.mu.Unlock()

		c.onChange(e.count)

		c.mu.Lock()
	}
}

// Snapshot returns the cached pair; Known is false before the first read
func (c *Counter) Snapshot() types.MintCount {
	if e := c.snapshot.Load(); e != nil {
		return e.count
	}
	return types.MintCount{}
}
