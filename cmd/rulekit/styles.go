package main

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#7aa2f7")
	muted  = lipgloss.Color("#565f89")
	green  = lipgloss.Color("#9ece6a")
	red    = lipgloss.Color("#f7768e")
	yellow = lipgloss.Color("#e0af68")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	successStyle = lipgloss.NewStyle().Foreground(green)

	badgeStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

// statusBadge renders an enabled/disabled badge
func statusBadge(enabled bool) string {
	if enabled {
		return badgeStyle.Foreground(lipgloss.Color("#1a1b26")).Background(green).Render("on ")
	}
	return badgeStyle.Foreground(lipgloss.Color("#1a1b26")).Background(muted).Render("off")
}

func kindBadge(builtIn bool) string {
	if builtIn {
		return mutedStyle.Render("built-in")
	}
	return mutedStyle.Render("user")
}
