// Package tui renders the minting session in the terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sigweihq/epicmint/pkg/session"
	"github.com/sigweihq/epicmint/pkg/types"
	"github.com/sigweihq/epicmint/pkg/utils"
)

const maxNotices = 6

// Controller is the session surface the UI drives
// Implemented by: *session.Machine
type Controller interface {
	Start(ctx context.Context)
	Connect(ctx context.Context) error
	Mint(ctx context.Context) error
	RefreshNetwork(ctx context.Context) error
	Snapshot() session.Session
	MintCount() types.MintCount
	Network() string
}

// Links are the static links shown on screen
type Links struct {
	Collection   string
	SocialHandle string
}

type intentDoneMsg struct {
	op  string
	err error
}

type startDoneMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ctl    Controller
	feed   *Feed
	links  Links
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	keys    KeyMap
	spinner spinner.Model
	width   int

	session  session.Session
	count    types.MintCount
	notices  []types.Notice
	prompt   *promptRequest
	status   string
	starting bool
}

// New creates the root model.
func New(ctl Controller, feed *Feed, links Links, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)
	return Model{
		ctl:      ctl,
		feed:     feed,
		links:    links,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		keys:     DefaultKeyMap(),
		spinner:  sp,
		session:  ctl.Snapshot(),
		count:    ctl.MintCount(),
		starting: true,
	}
}

// Init runs silent startup and begins listening to the feed.
func (m Model) Init() tea.Cmd {
	ctl, ctx := m.ctl, m.ctx
	return tea.Batch(m.feed.wait(), func() tea.Msg {
		ctl.Start(ctx)
		return startDoneMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case startDoneMsg:
		m.starting = false
		m.session = m.ctl.Snapshot()
		m.count = m.ctl.MintCount()
		return m, nil

	case SessionMsg:
		wasMinting := m.session.Minting
		m.session = session.Session(msg)
		if m.session.Minting && !wasMinting {
			return m, tea.Batch(m.feed.wait(), m.spinner.Tick)
		}
		return m, m.feed.wait()

	case CountMsg:
		m.count = types.MintCount(msg)
		return m, m.feed.wait()

	case NoticeMsg:
		m.pushNotice(types.Notice(msg))
		return m, m.feed.wait()

	case PromptMsg:
		if m.prompt != nil {
			// one prompt at a time; a second one is declined
			msg.req.reply <- false
		} else {
			m.prompt = msg.req
		}
		return m, m.feed.wait()

	case intentDoneMsg:
		m.status = ""
		switch {
		case msg.err == nil:
		case errors.Is(msg.err, session.ErrMintInFlight):
			m.status = "A mint is already in progress."
		case errors.Is(msg.err, session.ErrNotConnected):
			m.status = "Connect a wallet first."
		case errors.Is(msg.err, session.ErrConnectInFlight):
			m.status = "Already connecting..."
		}
		if msg.err != nil {
			m.logger.Debug("intent finished with error", "op", msg.op, "error", msg.err)
		}
		m.session = m.ctl.Snapshot()
		return m, nil

	case spinner.TickMsg:
		if !m.session.Minting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt != nil {
		switch {
		case key.Matches(msg, m.keys.Approve):
			m.prompt.reply <- true
			m.prompt = nil
		case key.Matches(msg, m.keys.Reject):
			m.prompt.reply <- false
			m.prompt = nil
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Connect):
		return m, m.intent("connect", m.ctl.Connect)

	case key.Matches(msg, m.keys.Mint):
		return m, m.intent("mint", m.ctl.Mint)

	case key.Matches(msg, m.keys.Network):
		return m, m.intent("network", m.ctl.RefreshNetwork)
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.prompt != nil {
		m.prompt.reply <- false
		m.prompt = nil
	}
	m.cancel()
	m.feed.Close()
	return m, tea.Quit
}

// intent runs a session operation off the update loop
func (m Model) intent(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return intentDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) pushNotice(n types.Notice) {
	m.notices = append(m.notices, n)
	if len(m.notices) > maxNotices {
		m.notices = m.notices[len(m.notices)-maxNotices:]
	}
}

// View renders the full TUI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("My NFT Collection") + "\n")
	b.WriteString(subStyle.Render("Mint your very own special NFT") + "\n\n")
	b.WriteString("NFTs minted so far: " + countStyle.Render(m.count.String()) + "\n")
	if m.links.Collection != "" {
		b.WriteString(subStyle.Render("View the collection on gemcase: ") + linkStyle.Render(m.links.Collection) + "\n")
	}
	b.WriteString("\n")

	if m.session.WrongNetwork {
		banner := fmt.Sprintf("%s (wallet is on %s)", utils.WrongNetworkMessage(m.ctl.Network()), m.session.NetworkID)
		b.WriteString(bannerStyle.Render(banner) + "\n\n")
	}

	b.WriteString(m.renderAction() + "\n")
	if m.session.Status == session.Connected {
		b.WriteString(subStyle.Render(fmt.Sprintf("account %s  network %s", m.session.Account, m.session.NetworkID)) + "\n")
	}
	if m.status != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(ColorWarning).Render(m.status) + "\n")
	}

	if m.prompt != nil {
		b.WriteString("\n" + m.renderPrompt() + "\n")
	}

	if len(m.notices) > 0 {
		b.WriteString("\n")
		for _, n := range m.notices {
			b.WriteString(lipgloss.NewStyle().Foreground(noticeColor(n.Kind)).Render("• " + n.Message))
			if n.Link != "" {
				b.WriteString(" " + linkStyle.Render(n.Link))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n" + m.renderHelp())
	if m.links.SocialHandle != "" {
		b.WriteString("\n" + subStyle.Render("built on @"+strings.TrimPrefix(m.links.SocialHandle, "@")+" ") +
			linkStyle.Render(utils.SocialLink(m.links.SocialHandle)))
	}

	style := frameStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(b.String())
}

func (m Model) renderAction() string {
	switch {
	case m.starting && m.session.Status == session.Disconnected:
		return subStyle.Render("Looking for an authorized wallet...")
	case m.session.Status == session.Disconnected:
		return buttonStyle.Render("[c] Connect to Wallet")
	case m.session.Status == session.Connecting:
		return subStyle.Render("Connecting...")
	case m.session.Minting:
		return m.spinner.View() + " Loading..."
	default:
		return buttonStyle.Render("[m] Mint NFT")
	}
}

func (m Model) renderPrompt() string {
	p := m.prompt.prompt
	lines := []string{fmt.Sprintf("Wallet request: %s", p.Method)}
	if p.Account != "" {
		lines = append(lines, "account "+p.Account)
	}
	if p.Tx != nil {
		lines = append(lines, "to "+p.Tx.To)
		if p.Tx.Data != "" {
			lines = append(lines, "data "+p.Tx.Data)
		}
	}
	lines = append(lines, "[y] approve  [n] reject")
	return promptStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderHelp() string {
	bindings := []key.Binding{m.keys.Connect, m.keys.Mint, m.keys.Network, m.keys.Quit}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return subStyle.Render(strings.Join(parts, "  "))
}
