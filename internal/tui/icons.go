package tui

// Icons — each symbol is unique, universally recognized, and in widely-supported Unicode blocks.
// Color (green/red/yellow) is the primary signal; icon shape reinforces meaning.
const (
	IconShield  = "◆" // ◆ — diamond (brand marker)
	IconCheck   = "✔" // ✔ — heavy check mark (allowed)
	IconCross   = "✖" // ✖ — heavy multiplication X (error)
	IconWarning = "⚠" // ⚠ — warning sign (universal)
	IconInfo    = "ℹ" // ℹ — information source
	IconDot     = "●" // ● — filled circle (active)
	IconBlock   = "⊘" // ⊘ — circled division slash (denied)
)
