package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"vidshrink/job"
	"vidshrink/media"
)

// Color palette
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Violet
	colorSecondary = lipgloss.Color("#06B6D4") // Cyan
	colorSuccess   = lipgloss.Color("#10B981") // Emerald
	colorError     = lipgloss.Color("#EF4444") // Red
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorMuted     = lipgloss.Color("#6B7280") // Gray
	colorText      = lipgloss.Color("#F9FAFB") // White
	colorTextDim   = lipgloss.Color("#9CA3AF") // Light gray
	colorBorder    = lipgloss.Color("#374151") // Dark gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorText).
			Background(colorPrimary).
			Padding(0, 2).
			MarginBottom(1)

	sectionHeaderStyle = lipgloss.NewStyle().
				Foreground(colorSecondary).
				Bold(true).
				MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(1, 2).
			MarginTop(1)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(10)

	statValueStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	statUnitStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	fileBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 2).
			MarginTop(1)

	fileLabelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(8)

	filePathStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	// Resolution picker
	choiceStyle = lipgloss.NewStyle().
			Foreground(colorTextDim).
			PaddingLeft(4)

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				PaddingLeft(2)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorSecondary)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	logBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1).
			MarginTop(1)

	percentLowStyle = lipgloss.NewStyle().
			Foreground(colorWarning).
			Bold(true)

	percentMidStyle = lipgloss.NewStyle().
			Foreground(colorSecondary).
			Bold(true)

	percentHighStyle = lipgloss.NewStyle().
				Foreground(colorSuccess).
				Bold(true)
)

// formatPercentage renders a fraction, or "..." before the first update or when the duration is unknown
func formatPercentage(fraction float64, known bool) string {
	if !known {
		return "..."
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return fmt.Sprintf("%.1f%%", fraction*100)
}

func getPercentageStyle(fraction float64) lipgloss.Style {
	if fraction < 0.33 {
		return percentLowStyle
	} else if fraction < 0.66 {
		return percentMidStyle
	}
	return percentHighStyle
}

// estimateRemaining extrapolates from elapsed time and the completed fraction
func estimateRemaining(elapsed time.Duration, fraction float64) (time.Duration, bool) {
	if fraction <= 0 || fraction > 1 || elapsed <= 0 {
		return 0, false
	}
	total := time.Duration(float64(elapsed) / fraction)
	return total - elapsed, true
}

func formatSize(size int64) string {
	if size <= 0 {
		return "—"
	}
	return humanize.IBytes(uint64(size))
}

func formatInfo(info media.VideoInfo) string {
	if info.Width == 0 && info.Height == 0 {
		return "—"
	}
	if info.Duration <= 0 {
		return fmt.Sprintf("%dx%d", info.Width, info.Height)
	}
	return fmt.Sprintf("%dx%d, %s", info.Width, info.Height,
		formatDuration(time.Duration(info.Duration*float64(time.Second))))
}

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(" ▼ vidshrink ") + "\n")

	switch m.State {
	case StateProbing:
		b.WriteString("\n" + statValueStyle.Render("  Reading "+m.Opts.Input+"...") + "\n")
	case StateReady:
		b.WriteString(m.renderPicker())
	case StateEncoding:
		b.WriteString(m.renderEncodingView())
	case StateDone:
		b.WriteString(m.renderDoneView())
	case StateFailed:
		b.WriteString(m.renderFailedView())
	case StateCancelled:
		b.WriteString("\n" + warningStyle.Render("  ⊘ Compression Cancelled") + "\n")
		b.WriteString(m.renderLogs())
	case StateError:
		b.WriteString(m.renderErrorView())
	}

	if m.Notice != "" {
		b.WriteString("\n" + noticeStyle.Render("  "+m.Notice) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render("  "+m.helpText()) + "\n")
	return b.String()
}

func (m Model) helpText() string {
	var keys []string
	switch m.State {
	case StateReady:
		keys = append(keys, "[↑/↓] Choose", "[Enter] Compress")
	case StateEncoding:
		keys = append(keys, "[C] Cancel")
	case StateDone:
		keys = append(keys, "[S] Save", "[O] Open")
	case StateFailed, StateCancelled:
		keys = append(keys, "[R] Retry")
	}
	keys = append(keys, "[L] Toggle logs", "[Q] Quit")
	return strings.Join(keys, "  •  ")
}

func (m Model) renderPicker() string {
	var b strings.Builder

	b.WriteString(m.buildFilesSection())
	b.WriteString("\n")
	b.WriteString(sectionHeaderStyle.Render("  Target resolution") + "\n")

	for i, r := range m.Plan.Resolutions {
		if i == m.Selected {
			b.WriteString(selectedChoiceStyle.Render("▸ "+r.Label) + "\n")
		} else {
			b.WriteString(choiceStyle.Render(r.Label) + "\n")
		}
	}
	return b.String()
}

func (m Model) renderEncodingView() string {
	var b strings.Builder

	b.WriteString("\n")

	fraction := m.Fraction
	known := m.HasProgress && m.Plan.Info.Duration > 0
	shown := fraction
	if !known {
		// keep a sliver visible so the bar reads as running
		shown = 0.01
	}

	bar := m.Progress.ViewAs(shown)
	pct := getPercentageStyle(fraction).Render(formatPercentage(fraction, known))
	b.WriteString("  " + bar + "  " + pct + "\n")

	elapsed := time.Since(m.StartTime).Round(time.Second)
	b.WriteString(statsBoxStyle.Render(m.buildStatsGrid(elapsed, known)))
	b.WriteString("\n")
	b.WriteString(m.buildFilesSection())
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) buildStatsGrid(elapsed time.Duration, known bool) string {
	target := "—"
	if res, ok := m.SelectedResolution(); ok {
		target = res.Label
	}

	eta := "—"
	if known {
		if d, ok := estimateRemaining(elapsed, m.Fraction); ok {
			eta = formatDuration(d)
		}
	}

	line1 := lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Source"),
		statValueStyle.Render(formatInfo(m.Plan.Info)),
		statUnitStyle.Render("  "+formatSize(m.Plan.InputSize)),
	)
	line2 := lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Target"),
		statValueStyle.Render(target),
	)
	line3 := lipgloss.JoinHorizontal(lipgloss.Top,
		statLabelStyle.Render("Elapsed"),
		statValueStyle.Render(formatDuration(elapsed)),
		lipgloss.NewStyle().Width(8).Render(""),
		statLabelStyle.Render("ETA"),
		statValueStyle.Render(eta),
	)

	return lipgloss.JoinVertical(lipgloss.Left, line1, line2, line3)
}

func (m Model) buildFilesSection() string {
	maxPathLen := m.Width - 16
	if maxPathLen < 20 {
		maxPathLen = 60
	}

	output := m.SavedPath
	if output == "" {
		output = m.Opts.Dest
	}
	if output == "" {
		if res, ok := m.SelectedResolution(); ok {
			output = job.DefaultSavePath(m.Opts.Input, res)
		}
	}

	line1 := fileLabelStyle.Render("Input") + filePathStyle.Render(truncatePath(m.Opts.Input, maxPathLen))
	line2 := fileLabelStyle.Render("Save as") + filePathStyle.Render(truncatePath(output, maxPathLen))

	return fileBoxStyle.Render(line1 + "\n" + line2)
}

func (m Model) renderLogs() string {
	if !m.ShowLogs || m.LogViewport.TotalLineCount() == 0 {
		return ""
	}
	return "\n" + sectionHeaderStyle.Render("  Log") + "\n" + logBoxStyle.Render(m.LogViewport.View())
}

// truncatePath shortens path to at most maxLen runes
func truncatePath(path string, maxLen int) string {
	r := []rune(path)
	if len(r) <= maxLen {
		return path
	}
	if maxLen < 20 {
		return string(r[:maxLen-3]) + "..."
	}
	half := (maxLen - 5) / 2
	return string(r[:half]) + " ... " + string(r[len(r)-half:])
}

func (m Model) renderDoneView() string {
	var b strings.Builder
	o := m.Outcome

	b.WriteString("\n")
	b.WriteString(successStyle.Render("  ✓ Compression Complete!") + "\n")

	var lines []string
	lines = append(lines,
		statLabelStyle.Render("Target")+statValueStyle.Render(o.Resolution.Label),
		statLabelStyle.Render("Time")+statValueStyle.Render(formatDuration(o.Elapsed)),
		statLabelStyle.Render("Before")+statValueStyle.Render(formatSize(o.InputSize))+
			statUnitStyle.Render("  "+formatInfo(m.Plan.Info)),
		statLabelStyle.Render("After")+statValueStyle.Render(formatSize(o.OutputSize))+
			statUnitStyle.Render("  "+formatInfo(o.Output)),
	)

	if ratio := o.Ratio(); ratio > 0 {
		sizeStr := fmt.Sprintf("%.1f%% of original", ratio*100)
		if ratio < 1 {
			lines = append(lines, successStyle.Render("  ✓ "+sizeStr))
		} else {
			lines = append(lines, warningStyle.Render("  ! "+sizeStr))
		}
	}

	b.WriteString(statsBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	b.WriteString("\n")
	b.WriteString(m.buildFilesSection())
	b.WriteString(m.renderLogs())
	return b.String()
}

func (m Model) renderFailedView() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(errorStyle.Render("  ✗ Compression Failed") + "\n\n")
	b.WriteString(errorBox(m.ErrorMessage) + "\n")
	b.WriteString(statUnitStyle.Render("  Press L to see the encoder output.") + "\n")
	b.WriteString(m.renderLogs())
	return b.String()
}

func (m Model) renderErrorView() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(errorStyle.Render("  ✗ Cannot compress this file") + "\n\n")
	b.WriteString(errorBox(m.ErrorMessage) + "\n\n")
	b.WriteString(fileLabelStyle.Render("Input") + filePathStyle.Render(m.Opts.Input) + "\n")
	b.WriteString(m.renderLogs())
	return b.String()
}

func errorBox(msg string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorError).
		Padding(0, 2).
		Foreground(colorError).
		Render(msg)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "—"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
