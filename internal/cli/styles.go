package cli

import (
	"hacker-kid/internal/syncer"

	"github.com/charmbracelet/lipgloss"
)

const (
	primaryColor = "#22C55E" // Terminal green
	accentColor  = "#06B6D4" // Cyan
	warningColor = "#F59E0B" // Amber
	errorColor   = "#EF4444" // Red
	dimColor     = "#6B7280" // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor)).
			Width(10)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	accentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(accentColor))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))
)

// statusBadge renders the sync indicator
func statusBadge(status syncer.Status) string {
	switch status {
	case syncer.StatusSynced:
		return successStyle.Render("● synced")
	case syncer.StatusSyncing:
		return accentStyle.Render("◌ syncing")
	case syncer.StatusError:
		return errorStyle.Render("✕ error")
	default:
		return warningStyle.Render("○ local")
	}
}
