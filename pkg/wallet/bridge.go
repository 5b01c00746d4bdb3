package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sigweihq/epicmint/pkg/constants"
)

// ErrBridgeClosed is returned for requests issued after the bridge connection ended
var ErrBridgeClosed = errors.New("wallet bridge closed")

// BridgeProvider relays EIP-1193 requests to an external wallet over a
// JSON-RPC 2.0 WebSocket connection
type BridgeProvider struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	onEvent func(name string, params json.RawMessage)

	writeMu sync.Mutex // serialises all conn writes

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan bridgeResponse

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// BridgeOption configures a BridgeProvider
type BridgeOption func(*BridgeProvider)

// WithEventHandler receives wallet-initiated notifications such as
// chainChanged and accountsChanged
func WithEventHandler(fn func(name string, params json.RawMessage)) BridgeOption {
	return func(b *BridgeProvider) {
		b.onEvent = fn
	}
}

type bridgeRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

// bridgeResponse covers both replies (ID set) and notifications (Method set)
type bridgeResponse struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProviderError  `json:"error,omitempty"`
}

// DialBridge connects to a wallet bridge
func DialBridge(ctx context.Context, url string, logger *slog.Logger, opts ...BridgeOption) (*BridgeProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet bridge: %w", err)
	}
	conn.SetReadLimit(constants.MaxResponseBodySize)

	b := &BridgeProvider{
		conn:    conn,
		logger:  logger,
		pending: make(map[uint64]chan bridgeResponse),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.readLoop()

	logger.Info("wallet bridge connected", "url", url)
	return b, nil
}

// Verify BridgeProvider implements Provider
var _ Provider = (*BridgeProvider)(nil)

// Request implements Provider
func (b *BridgeProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	ch := make(chan bridgeResponse, 1)
	b.pending[id] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	req := bridgeRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := b.write(req); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-b.closed:
		return nil, b.closeErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *BridgeProvider) write(v any) error {
	select {
	case <-b.closed:
		return b.closeErr
	default:
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.conn.SetWriteDeadline(time.Now().Add(constants.BridgeWriteTimeout))
	if err := b.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("failed to write bridge request: %w", err)
	}
	return nil
}

// readLoop dispatches replies to waiting requests until the connection fails
func (b *BridgeProvider) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.shutdown(fmt.Errorf("%w: %v", ErrBridgeClosed, err))
			return
		}

		var resp bridgeResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			b.logger.Warn("dropping malformed bridge frame", "error", err)
			continue
		}

		if resp.ID == nil {
			if resp.Method != "" && b.onEvent != nil {
				b.onEvent(resp.Method, resp.Params)
			}
			continue
		}

		b.mu.Lock()
		ch, ok := b.pending[*resp.ID]
		b.mu.Unlock()
		if !ok {
			b.logger.Debug("reply for unknown request", "id", *resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
			b.logger.Debug("duplicate reply dropped", "id", *resp.ID)
		}
	}
}

func (b *BridgeProvider) shutdown(err error) {
	b.closeOnce.Do(func() {
		b.closeErr = err
		close(b.closed)
		b.conn.Close()
	})
}

// Close terminates the bridge connection; pending requests fail with ErrBridgeClosed
func (b *BridgeProvider) Close() error {
	b.shutdown(ErrBridgeClosed)
	return nil
}

// Done is closed once the bridge connection has ended
func (b *BridgeProvider) Done() <-chan struct{} {
	return b.closed
}
