// internal/runner/style.go
package runner

import "github.com/charmbracelet/lipgloss"

var (
	Cyan   = lipgloss.Color("#00E5FF")
	Yellow = lipgloss.Color("#FFB500")
	Green  = lipgloss.Color("#2AFFAA")
	Red    = lipgloss.Color("#FF5555")
	Blue   = lipgloss.Color("#3B82F6")
	Muted  = lipgloss.Color("#6C7280")
	Text   = lipgloss.Color("#ECEFF4")
)

// Palette maps report elements to colors.
type Palette struct {
	Primary   lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
}

func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,
		Text:      Text,
		TextMuted: Muted,
	}
}

// ReportStyles holds the lipgloss styles used to render a Report.
type ReportStyles struct {
	Container lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Cell      lipgloss.Style
	Muted     lipgloss.Style
	Status    map[string]lipgloss.Style
}

func NewReportStyles(p Palette) ReportStyles {
	status := func(c lipgloss.Color) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(c).Bold(true)
	}
	return ReportStyles{
		Container: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Primary).
			Padding(0, 1),
		Title:  lipgloss.NewStyle().Foreground(p.Primary).Bold(true).MarginBottom(1),
		Header: lipgloss.NewStyle().Foreground(p.TextMuted).Bold(true),
		Cell:   lipgloss.NewStyle().Foreground(p.Text),
		Muted:  lipgloss.NewStyle().Foreground(p.TextMuted),
		Status: map[string]lipgloss.Style{
			"confirmed": status(p.Success),
			"fatal":     status(p.Error),
			"failed":    status(p.Error),
			"exhausted": status(p.Warning),
			"cancelled": status(p.Info),
		},
	}
}
