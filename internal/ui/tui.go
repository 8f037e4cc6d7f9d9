package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer renders indexing progress inline with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *indexingModel
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer.
// Returns an error if output is not a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	model := newIndexingModel(cfg.ProjectDir)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:   cfg,
		model: model,
		done:  make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithInput(nil)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.send(progressUpdateMsg(event))
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.send(errorMsg(event))
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(completeMsg(stats))
}

func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program == nil {
		return nil
	}
	r.program.Quit()

	// the program may already be gone after a context cancellation
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	r.cancel()
	return nil
}

// Message types for bubbletea
type progressUpdateMsg ProgressEvent
type errorMsg ErrorEvent
type completeMsg CompletionStats

// indexingModel is the bubbletea model for indexing progress.
type indexingModel struct {
	width    int
	stage    Stage
	current  int
	file     string
	warnings int
	errors   int
	complete bool
	stats    CompletionStats
	spinner  spinner.Model
	styles   Styles
	rootDir  string
}

func newIndexingModel(rootDir string) *indexingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &indexingModel{
		spinner: s,
		styles:  DefaultStyles(),
		width:   80,
		rootDir: rootDir,
	}
}

// Init implements tea.Model.
func (m *indexingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case progressUpdateMsg:
		m.stage = msg.Stage
		if msg.Current > 0 {
			m.current = msg.Current
		}
		if msg.CurrentFile != "" {
			m.file = msg.CurrentFile
		}

	case errorMsg:
		if msg.IsWarn {
			m.warnings++
		} else {
			m.errors++
		}

	case completeMsg:
		m.complete = true
		m.stage = StageComplete
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *indexingModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	title := "psearch"
	if m.rootDir != "" {
		title = fmt.Sprintf("psearch • %s", m.rootDir)
	}

	lines := []string{
		m.styles.Header.Render(title),
		fmt.Sprintf("%s %s %s",
			m.spinner.View(),
			m.styles.Active.Render(m.stage.String()),
			m.styles.Label.Render(fmt.Sprintf("%d files", m.current))),
	}
	if m.file != "" {
		lines = append(lines, m.styles.Dim.Render(truncateFilePath(m.file, m.width-2)))
	}
	if status := m.renderStatusBar(); status != "" {
		lines = append(lines, status)
	}
	return strings.Join(lines, "\n") + "\n"
}

// renderStatusBar renders the warning and error counts.
func (m *indexingModel) renderStatusBar() string {
	var parts []string
	if m.warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d skipped", m.warnings)))
	}
	if m.errors > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", m.errors)))
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  "))
}

// renderComplete renders the completion summary.
func (m *indexingModel) renderComplete() string {
	lines := []string{
		m.styles.Success.Render("✓ Indexing Complete"),
		fmt.Sprintf("%s    %s", m.styles.Label.Render("Files:"),
			m.styles.Active.Render(fmt.Sprintf("%d", m.stats.Files))),
		fmt.Sprintf("%s %s", m.styles.Label.Render("Duration:"),
			m.styles.Active.Render(formatDuration(m.stats.Duration))),
	}
	if m.stats.Skipped > 0 {
		lines = append(lines, m.styles.Warning.Render(fmt.Sprintf("⚠ %d files skipped", m.stats.Skipped)))
	}
	return m.styles.Panel.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", h, m)
}

// truncateFilePath truncates a file path to fit within maxLen.
func truncateFilePath(path string, maxLen int) string {
	if path == "" || len(path) <= maxLen {
		return path
	}
	if maxLen < 4 {
		return "..."
	}
	return "..." + path[len(path)-maxLen+3:]
}

// Ensure TUIRenderer implements Renderer
var _ Renderer = (*TUIRenderer)(nil)
