package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/sigweihq/epicmint/pkg/types"
)

// Palette.
var (
	ColorAccent  = lipgloss.Color("#a855f7")
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorLink    = lipgloss.Color("#3b82f6")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	subStyle    = lipgloss.NewStyle().Foreground(ColorDimmed)
	countStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorBright)
	linkStyle   = lipgloss.NewStyle().Foreground(ColorLink).Underline(true)
	buttonStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(ColorAccent).
			Padding(0, 2)
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(ColorDanger).
			Padding(0, 1)
	promptStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarning).
			Padding(0, 1)
	frameStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2)
)

// noticeColor picks the color for a notice line.
func noticeColor(kind types.NoticeKind) lipgloss.Color {
	switch kind {
	case types.NoticeMinted, types.NoticeMintConfirmed:
		return ColorHealthy
	case types.NoticeWrongNetwork, types.NoticeDeclined, types.NoticeInstallWallet:
		return ColorWarning
	case types.NoticeError:
		return ColorDanger
	default:
		return ColorDimmed
	}
}
