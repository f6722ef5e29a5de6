package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/deciduous/pkg/pipeline"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
	headerStyle  = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// WatchModel - live status of a watched document
// =============================================================================

// watchEvent reports one published snapshot and the files written for it.
type watchEvent struct {
	snap     *pipeline.Snapshot
	written  []writtenFile
	writeErr error
}

// WatchModel is the bubbletea model of the watch command. It shows the
// outcome of the latest run: the graph statistics and written files, or
// "no graph" with the reason the document was rejected.
type WatchModel struct {
	Path      string
	ServeAddr string
	Runs      int
	Width     int

	event *watchEvent
}

// NewWatchModel creates a watch model for the document at path.
func NewWatchModel(path, serveAddr string) WatchModel {
	return WatchModel{Path: path, ServeAddr: serveAddr, Width: 80}
}

func (m WatchModel) Init() tea.Cmd {
	return nil
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchEvent:
		m.event = &msg
		m.Runs++
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Width = msg.Width
	}
	return m, nil
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Watching " + m.Path))
	b.WriteString("\n")
	hint := "q quit"
	if m.ServeAddr != "" {
		hint = "preview at " + StyleLink.Render(previewURL(m.ServeAddr)) + listDimStyle.Render("  ·  q quit")
	}
	b.WriteString(listDimStyle.Render(hint))
	b.WriteString("\n\n")

	if m.event == nil {
		b.WriteString(styleIconSpinner.Render("…") + " " + StyleDim.Render("Compiling..."))
		b.WriteString("\n")
		return b.String()
	}

	snap := m.event.snap
	if !snap.OK() {
		b.WriteString(styleIconError.Render(iconError) + " " + StyleError.Render("no graph"))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(max(m.Width-2, 20)).PaddingLeft(2).Render(describeError(snap.Err)))
		b.WriteString("\n")
	} else {
		title := snap.Compiled.Title
		if title == "" {
			title = "Untitled"
		}
		b.WriteString(styleIconSuccess.Render(iconSuccess) + " " + StyleValue.Render(title))
		b.WriteString("\n")
		b.WriteString("  " + statsLine(snap.Compiled.Graph.NodeCount(), snap.Compiled.Graph.EdgeCount(), snap.Compiled.Categories))
		b.WriteString("\n")
		if !snap.Compiled.Worth() {
			b.WriteString(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render("Nothing to draw: the filtered graph has no nodes"))
			b.WriteString("\n")
		}
		if len(m.event.written) > 0 {
			b.WriteString(m.filesTable())
			b.WriteString("\n")
		}
	}
	if m.event.writeErr != nil {
		b.WriteString(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(m.event.writeErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  run %d · %s · %s",
		m.Runs, snap.ID.String()[:8], snap.Created.Format("15:04:05"))))
	return b.String()
}

func (m WatchModel) filesTable() string {
	snap := m.event.snap
	rows := make([][]string, 0, len(m.event.written))
	for _, w := range m.event.written {
		rows = append(rows, []string{w.Path, w.Format, formatBytes(len(snap.Artifacts[w.Format]))})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("File", "Format", "Size").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return StyleValue.Padding(0, 1)
			}
			return StyleDim.Padding(0, 1)
		}).
		Render()
}

// =============================================================================
// Helpers
// =============================================================================

func formatBytes(n int) string {
	switch {
	case n < 1<<10:
		return fmt.Sprintf("%d B", n)
	case n < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	}
}

// previewURL turns a listen address into a browsable URL.
func previewURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/v1/latest/svg"
}
