// Package ui holds terminal styles for the command-line tools.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Terminal palette colors, safe on light and dark backgrounds
	ColorSuccess = lipgloss.AdaptiveColor{Light: "2", Dark: "2"}
	ColorError   = lipgloss.AdaptiveColor{Light: "1", Dark: "1"}
	ColorPrimary = lipgloss.AdaptiveColor{Light: "5", Dark: "5"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "6", Dark: "6"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "8", Dark: "8"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "3", Dark: "3"}
	ColorDefault = lipgloss.AdaptiveColor{Light: "0", Dark: "7"}

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleTitle   = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true).Underline(true)
	StyleBold    = lipgloss.NewStyle().Bold(true)
	StyleURL     = lipgloss.NewStyle().Foreground(ColorInfo).Underline(true)

	IconSuccess = "✔"
	IconError   = "✘"
	IconInfo    = "ℹ"
	IconWarning = "⚠"
)

// FormatSuccess returns a success message with icon
func FormatSuccess(msg string) string {
	return StyleSuccess.Render(IconSuccess + " " + msg)
}

// FormatError returns an error message with icon
func FormatError(msg string) string {
	return StyleError.Render(IconError + " " + msg)
}

// FormatInfo returns an info message with icon
func FormatInfo(msg string) string {
	return StyleInfo.Render(IconInfo + " " + msg)
}

// FormatWarning returns a warning message with icon
func FormatWarning(msg string) string {
	return StyleWarning.Render(IconWarning + " " + msg)
}

// FormatMuted returns muted text
func FormatMuted(text string) string {
	return StyleMuted.Render(text)
}

// FormatURL renders a result link
func FormatURL(url string) string {
	return StyleURL.Render(url)
}

// PhaseStyle picks a style for a submission phase or remote status name.
func PhaseStyle(phase string) lipgloss.Style {
	switch phase {
	case "SUCCEEDED", "SUCCESS":
		return StyleSuccess
	case "FAILED", "TIMED_OUT":
		return StyleError
	case "SUBMITTING", "POLLING", "PENDING":
		return StyleWarning
	default:
		return StyleMuted
	}
}
