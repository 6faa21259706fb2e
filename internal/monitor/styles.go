package monitor

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/WarPigBRZ/BelugaDB/internal/model"
)

// Color palette
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorGray   = lipgloss.Color("245")
	colorWhite  = lipgloss.Color("255")
	colorBorder = lipgloss.Color("240")
)

// Styles defines the visual styles for the run dashboard
type Styles struct {
	Box      lipgloss.Style
	Title    lipgloss.Style
	Header   lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	// Phase colors
	PhaseWaiting lipgloss.Style
	PhaseSuccess lipgloss.Style
	PhaseError   lipgloss.Style

	// Phase indicators
	IndicatorWaiting string
	IndicatorSuccess string
	IndicatorError   string
}

// DefaultStyles returns the default style configuration
func DefaultStyles() Styles {
	return Styles{
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite),

		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(colorGray),

		Normal: lipgloss.NewStyle().
			Foreground(colorWhite),

		Muted: lipgloss.NewStyle().
			Foreground(colorGray),

		Selected: lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("236")).
			Foreground(colorWhite),

		PhaseWaiting: lipgloss.NewStyle().
			Foreground(colorYellow),

		PhaseSuccess: lipgloss.NewStyle().
			Foreground(colorGreen),

		PhaseError: lipgloss.NewStyle().
			Foreground(colorRed),

		IndicatorWaiting: "●",
		IndicatorSuccess: "✓",
		IndicatorError:   "✗",
	}
}

// Indicator returns the unstyled glyph for a phase
func (s Styles) Indicator(phase model.Phase) string {
	switch phase {
	case model.PhaseSuccess:
		return s.IndicatorSuccess
	case model.PhaseError:
		return s.IndicatorError
	default:
		return s.IndicatorWaiting
	}
}

// StylePhase returns styled phase text
func (s Styles) StylePhase(phase model.Phase) string {
	switch phase {
	case model.PhaseSuccess:
		return s.PhaseSuccess.Render(string(phase))
	case model.PhaseError:
		return s.PhaseError.Render(string(phase))
	case model.PhaseWaiting:
		return s.PhaseWaiting.Render(string(phase))
	default:
		return s.Normal.Render(string(phase))
	}
}

// PhaseSummary returns a styled summary of phase counts
func (s Styles) PhaseSummary(waiting, success, errors int) string {
	parts := []string{}

	if waiting > 0 {
		parts = append(parts, s.PhaseWaiting.Render(s.IndicatorWaiting+" waiting: "+strconv.Itoa(waiting)))
	}
	if success > 0 {
		parts = append(parts, s.PhaseSuccess.Render(s.IndicatorSuccess+" success: "+strconv.Itoa(success)))
	}
	if errors > 0 {
		parts = append(parts, s.PhaseError.Render(s.IndicatorError+" error: "+strconv.Itoa(errors)))
	}

	if len(parts) == 0 {
		return s.Muted.Render("no targets")
	}

	result := ""
	for i, part := range parts {
		if i > 0 {
			result += "    "
		}
		result += part
	}
	return result
}
