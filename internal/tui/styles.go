package tui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/carlrannaberg/claudekit-sub009/internal/types"
)

// plainMode disables all styling: no colors, no icons, no boxes. When
// enabled, output is clean plain text suitable for CI, piped output, or
// --no-color. Hook mode never prints styled text at all; these helpers
// serve the interactive commands (check, history, stats, patterns).
var (
	plainMode bool
	plainOnce sync.Once
	plainMu   sync.RWMutex
)

// initPlainMode auto-detects plain mode from environment on first call.
// Precedence: NO_COLOR > TTY detection > color profile.
func initPlainMode() {
	plainOnce.Do(func() {
		// NO_COLOR wins — https://no-color.org
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			plainMode = true
			return
		}
		// Not a terminal (piped, redirected, invoked as a hook) → plain
		if !term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // Fd() fits in int on all supported platforms
			plainMode = true
			return
		}
		// Terminal advertises no color support → plain
		if termenv.EnvColorProfile() == termenv.Ascii {
			plainMode = true
		}
	})
}

// SetPlainMode explicitly enables or disables plain mode.
// Call this early (e.g. when applying the no_color setting) before any output.
func SetPlainMode(plain bool) {
	plainMu.Lock()
	defer plainMu.Unlock()
	plainMode = plain
	// Mark as initialized so auto-detect doesn't override
	plainOnce.Do(func() {})
}

// IsPlainMode returns true if styling is disabled.
func IsPlainMode() bool {
	initPlainMode()
	plainMu.RLock()
	defer plainMu.RUnlock()
	return plainMode
}

// Color palette — cool slate and signal tones. Adapts to OS theme.
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#1A6B8A", Dark: "#4FB8D8"} // Steel Teal
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#3A5F7A", Dark: "#8FB8CC"} // Slate Blue
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#3A7A4A", Dark: "#6BBF7E"} // Moss Green
	ColorError   = lipgloss.AdaptiveColor{Light: "#A83232", Dark: "#E06055"} // Signal Red
	ColorWarning = lipgloss.AdaptiveColor{Light: "#9A6B0B", Dark: "#E8B93D"} // Amber
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#2B6B9A", Dark: "#6FA8D8"} // Sky Blue
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#8A9199"} // Cool Gray
)

// Reusable styles.
var (
	StyleTitle    = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	StyleSubtitle = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleSuccess  = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError    = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning  = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleInfo     = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleMuted    = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleBold     = lipgloss.NewStyle().Bold(true)
	StylePattern  = lipgloss.NewStyle().Foreground(ColorAccent)
	StylePath     = lipgloss.NewStyle().Foreground(ColorPrimary)

	// Branded prefix: [fileguard] (unexported — use Prefix() instead)
	stylePrefix = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
)

// Prefix returns the branded [fileguard] prefix string.
func Prefix() string {
	if IsPlainMode() {
		return "[fileguard]"
	}
	return stylePrefix.Render("[fileguard]")
}

// DecisionStyle returns the style for a guard decision.
func DecisionStyle(d types.Decision) lipgloss.Style {
	switch d {
	case types.DecisionAllow:
		return StyleSuccess
	case types.DecisionDeny:
		return StyleError
	case types.DecisionAsk:
		return StyleWarning
	default:
		return StyleMuted
	}
}

// DecisionBadge returns a styled decision badge like "⊘ DENY".
func DecisionBadge(d types.Decision) string {
	label := decisionLabel(d)
	if IsPlainMode() {
		return "[" + label + "]"
	}
	return DecisionStyle(d).Render(decisionIcon(d) + " " + label)
}

func decisionLabel(d types.Decision) string {
	switch d {
	case types.DecisionAllow:
		return "ALLOW"
	case types.DecisionDeny:
		return "DENY"
	case types.DecisionAsk:
		return "ASK"
	default:
		return string(d)
	}
}

func decisionIcon(d types.Decision) string {
	switch d {
	case types.DecisionAllow:
		return IconCheck
	case types.DecisionDeny:
		return IconBlock
	case types.DecisionAsk:
		return IconWarning
	default:
		return IconDot
	}
}

// Separator returns a section separator bar, optionally titled.
func Separator(title string) string {
	if IsPlainMode() {
		if title == "" {
			return "---"
		}
		return "--- " + title + " ---"
	}
	const trail = "━━━━━━━━━━━━━━━━━━━━━━━━"
	if title == "" {
		return StyleMuted.Render("▸▸" + trail)
	}
	return StyleSubtitle.Render("▸▸ ") + StyleBold.Render(title) + StyleMuted.Render(" "+trail)
}

var styleFaint = lipgloss.NewStyle().Faint(true)

// Faint returns text with faint/dim formatting, or unchanged in plain mode.
func Faint(text string) string {
	if IsPlainMode() {
		return text
	}
	return styleFaint.Render(text)
}

// Hyperlink wraps text in an OSC 8 clickable link.
// Falls back to plain text when the URL is empty or in plain mode.
func Hyperlink(url, text string) string {
	if url == "" || IsPlainMode() {
		return text
	}
	return termenv.Hyperlink(url, text)
}
