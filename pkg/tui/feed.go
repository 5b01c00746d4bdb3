package tui

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sigweihq/epicmint/pkg/session"
	"github.com/sigweihq/epicmint/pkg/types"
	"github.com/sigweihq/epicmint/pkg/wallet"
)

// ErrFeedClosed is returned for prompts raised after the UI exited
var ErrFeedClosed = errors.New("ui closed")

const feedBufferLen = 64

// Messages delivered through the feed.
type (
	SessionMsg session.Session
	CountMsg   types.MintCount
	NoticeMsg  types.Notice
	PromptMsg  struct{ req *promptRequest }
)

type promptRequest struct {
	prompt wallet.Prompt
	reply  chan bool
}

// Feed carries background events into the bubbletea program
// It implements notify.Sink and wallet.Approver for the rest of the binary
type Feed struct {
	msgs      chan tea.Msg
	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed creates an open feed
func NewFeed() *Feed {
	return &Feed{
		msgs: make(chan tea.Msg, feedBufferLen),
		done: make(chan struct{}),
	}
}

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.msgs <- msg:
	case <-f.done:
	}
}

// Notify implements notify.Sink
func (f *Feed) Notify(n types.Notice) {
	f.send(NoticeMsg(n))
}

// SessionChanged forwards a session snapshot
func (f *Feed) SessionChanged(s session.Session) {
	f.send(SessionMsg(s))
}

// CountChanged forwards a mint count snapshot
func (f *Feed) CountChanged(c types.MintCount) {
	f.send(CountMsg(c))
}

// Approve routes a wallet prompt to the user and waits for the answer
func (f *Feed) Approve(ctx context.Context, p wallet.Prompt) (bool, error) {
	req := &promptRequest{prompt: p, reply: make(chan bool, 1)}

	select {
	case f.msgs <- PromptMsg{req: req}:
	case <-f.done:
		return false, ErrFeedClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}

	select {
	case ok := <-req.reply:
		return ok, nil
	case <-f.done:
		// an answer given just before the UI exited still counts
		select {
		case ok := <-req.reply:
			return ok, nil
		default:
			return false, ErrFeedClosed
		}
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close stops delivery; pending prompts fail with ErrFeedClosed
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.done) })
}

// wait returns a command that blocks for the next feed message
func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.msgs:
			return msg
		case <-f.done:
			return nil
		}
	}
}
