package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/deciduous/pkg/document"
	"github.com/matzehuels/deciduous/pkg/errors"
	"github.com/matzehuels/deciduous/pkg/render/styles"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleLink for URLs.
	StyleLink = lipgloss.NewStyle().Foreground(colorBlue).Underline(true)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	// StyleError for error messages.
	StyleError = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleCode    = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

// Status lines go to stderr so that stdout stays clean for piped output
// (compile and extract write their results there).
var statusOut io.Writer = os.Stderr

func statusln(s string) { fmt.Fprintln(statusOut, s) }

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	statusln(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	statusln(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	statusln(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	statusln(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	statusln("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	statusln("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(12)
	statusln(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Stats Display
// =============================================================================

// statsLine renders graph statistics on a single line.
func statsLine(nodeCount, edgeCount int, categories []document.Category) string {
	parts := []string{
		StyleDim.Render(fmt.Sprintf("%d nodes", nodeCount)),
		StyleDim.Render(fmt.Sprintf("%d edges", edgeCount)),
	}
	if len(categories) > 0 {
		parts = append(parts, categoryChips(categories))
	}
	return strings.Join(parts, StyleDim.Render(" · "))
}

// printStats prints graph statistics and whether the layout came from the
// cache.
func printStats(nodeCount, edgeCount int, categories []document.Category, cached bool) {
	status := iconFresh
	statusStyle := styleComputed
	if cached {
		status = iconCached
		statusStyle = styleCached
	}
	statusln("  " + statsLine(nodeCount, edgeCount, categories) + StyleDim.Render(" · ") + statusStyle.Render(status))
}

// categoryChips renders each category name in its diagram fill colour, so
// the terminal legend matches the rendered graph.
func categoryChips(categories []document.Category) string {
	chips := make([]string, len(categories))
	for i, c := range categories {
		st := lipgloss.NewStyle().Padding(0, 1)
		if fill, ok := styles.Node(c).Get("fillcolor"); ok {
			st = st.Background(lipgloss.Color(fill)).Foreground(lipgloss.Color("#000000"))
		}
		if font, ok := styles.Node(c).Get("fontcolor"); ok {
			st = st.Foreground(lipgloss.Color(font))
		}
		chips[i] = st.Render(string(c))
	}
	return strings.Join(chips, " ")
}

// =============================================================================
// Commands & Next Steps
// =============================================================================

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	statusln(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

// printNewline prints an empty line.
func printNewline() {
	statusln("")
}

// =============================================================================
// Errors
// =============================================================================

// describeError renders err for a terminal: the error code, the offending
// node when there is one, and the message without the code prefix.
func describeError(err error) string {
	code := errors.GetCode(err)
	if code == "" {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(styleCode.Render(string(code)))
	if id := errors.NodeID(err); id != "" {
		b.WriteString(" " + StyleValue.Render(id))
	}
	msg := errors.UserMessage(err)
	if id := errors.NodeID(err); id != "" {
		msg = strings.TrimPrefix(msg, id+": ")
	}
	b.WriteString(" " + msg)
	return b.String()
}

// ReportError prints a failed command's error to stderr.
func ReportError(err error) {
	printError("%s", describeError(err))
}
