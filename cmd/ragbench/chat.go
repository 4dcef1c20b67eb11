// This file implements the interactive workbench interface using bubbletea.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"ragbench/cmd/ragbench/ui"
	"ragbench/internal/rag"
)

// workbenchModel is the main model for the interactive workbench
type workbenchModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	app       *app
	isLoading bool
	banner    string
	width     int
	height    int
	ready     bool

	// Session state
	sessionID string
	turnCount int
}

// Messages for tea updates
type (
	turnChangedMsg    rag.Turn
	statsRefreshedMsg rag.Stats
	statsFailedMsg    struct{ err error }
	clearBannerMsg    struct{}
)

// initWorkbench initializes the interactive workbench model
func initWorkbench(a *app) workbenchModel {
	styles := ui.DefaultStyles()
	if a.cfg.Theme == "dark" {
		styles = ui.NewStyles(ui.DarkTheme())
	}

	ti := textinput.New()
	ti.Placeholder = "Ask a question... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	return workbenchModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		app:       a,
		sessionID: fmt.Sprintf("sess_%d", time.Now().UnixNano()),
	}
}

func (m workbenchModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.refreshStats(),
	)
}

// refreshStats fetches the backend index snapshot off the UI loop.
func (m workbenchModel) refreshStats() tea.Cmd {
	a := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		snapshot, err := a.aggregator.Refresh(ctx)
		if err != nil {
			return statsFailedMsg{err: err}
		}
		return statsRefreshedMsg(snapshot)
	}
}

func (m workbenchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlR:
			return m, m.refreshStats()

		case tea.KeyEnter:
			// The composer is busy while a question is in flight; the
			// store itself would accept concurrent submissions.
			if !m.isLoading {
				return m.handleSubmit()
			}
		}

		if !m.isLoading {
			m.textinput, tiCmd = m.textinput.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 3
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}
		m.textinput.Width = msg.Width - 4

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}
		m.viewport.SetContent(m.renderTimeline())

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			m.viewport.SetContent(m.renderTimeline())
			return m, spCmd
		}

	case turnChangedMsg:
		turn := rag.Turn(msg)
		m.isLoading = m.app.turns.PendingCount() > 0
		if turn.Status.Terminal() {
			m.turnCount++
			if m.app.archive != nil {
				_ = m.app.archive.Record(m.sessionID, turn)
			}
		}
		m.viewport.SetContent(m.renderTimeline())
		m.viewport.GotoBottom()
		if !m.isLoading {
			m.textinput.Focus()
			return m, m.refreshStats()
		}

	case statsRefreshedMsg:
		// The aggregator owns the snapshot; this message only triggers a
		// header re-render.

	case statsFailedMsg:
		m.banner = "stats: " + msg.err.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg { return clearBannerMsg{} })

	case clearBannerMsg:
		m.banner = ""
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

// handleSubmit sends the composed question into the turn store. The store
// inserts the pending turn and issues the query; resolution arrives back as
// a turnChangedMsg through the onChange hook.
func (m workbenchModel) handleSubmit() (tea.Model, tea.Cmd) {
	question := strings.TrimSpace(m.textinput.Value())
	if question == "" {
		return m, nil
	}

	if _, ok := m.app.turns.Submit(context.Background(), question); !ok {
		return m, nil
	}
	m.textinput.SetValue("")
	m.isLoading = true
	m.viewport.SetContent(m.renderTimeline())
	m.viewport.GotoBottom()
	return m, m.spinner.Tick
}

// renderTimeline renders the full conversation, one block per turn.
func (m workbenchModel) renderTimeline() string {
	turns := m.app.turns.Turns()
	if len(turns) == 0 {
		return m.styles.Muted.Render("No questions yet. Type below and press Enter.")
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderTurn(turn))
	}
	return b.String()
}

func (m workbenchModel) renderTurn(turn rag.Turn) string {
	var b strings.Builder
	b.WriteString(m.styles.Question.Render("You: " + turn.Question))
	b.WriteString("\n")

	switch turn.Status {
	case rag.StatusPending:
		b.WriteString(m.styles.Pending.Render(m.spinner.View() + " thinking..."))
		b.WriteString("\n")

	case rag.StatusError:
		b.WriteString(m.styles.Error.Render("Error: " + turn.ErrorMessage))
		b.WriteString("\n")

	case rag.StatusSuccess:
		answer := turn.Answer
		if m.renderer != nil {
			if rendered, err := m.renderer.Render(turn.Answer); err == nil {
				answer = strings.TrimRight(rendered, "\n") + "\n"
			}
		}
		b.WriteString(m.styles.Answer.Render(answer))
		b.WriteString("\n")
		b.WriteString(m.renderSources(turn.Sources))
	}
	return b.String()
}

func (m workbenchModel) renderSources(sources []rag.Source) string {
	if len(sources) == 0 {
		return m.styles.Muted.Render("No sources returned.") + "\n"
	}

	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("Top sources (%d)", len(sources))))
	b.WriteString("\n")
	for _, src := range sources {
		title := fmt.Sprintf("#%d  score %.3f  %s", src.Rank, src.Score, src.DocumentID)
		if src.PageID != nil {
			title += fmt.Sprintf("  p.%d", *src.PageID)
		}
		header := m.styles.SourceTitle.Render(title)
		if src.IsChildChunk {
			header += " " + m.styles.ChildBadge.Render("[child]")
		}

		snippet := src.Snippet
		if len(snippet) > 240 {
			snippet = snippet[:240] + "..."
		}
		card := header
		if snippet != "" {
			card += "\n" + snippet
		}
		if src.DocumentURL != "" {
			card += "\n" + m.styles.Muted.Render(src.DocumentURL)
		}
		b.WriteString(m.styles.SourceCard.Width(m.viewport.Width - 2).Render(card))
		b.WriteString("\n")
	}
	return b.String()
}

func (m workbenchModel) statsLine() string {
	snapshot := m.app.aggregator.Current()
	line := fmt.Sprintf("docs %d · chunks %d", snapshot.DocumentCount, snapshot.ChunkCount)
	if !snapshot.LastIndexedAt.IsZero() {
		line += " · indexed " + snapshot.LastIndexedAt.Local().Format("15:04:05")
	}
	line += " · ^R refresh"
	return line
}

func (m workbenchModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.styles.Header.Render("RAG Workbench") + "  " + m.styles.StatsLine.Render(m.statsLine())
	if m.banner != "" {
		header += "\n" + m.styles.Error.Render(m.banner)
	}

	footer := m.styles.Footer.Render(
		fmt.Sprintf("session %s · %d turn(s) · Enter send · Ctrl+C quit", m.sessionID, m.turnCount))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.textinput.View(),
		footer,
	)
}

// runWorkbench wires the app into a bubbletea program and runs it.
func runWorkbench() error {
	// The interactive UI owns the terminal; log output would corrupt it.
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	model := initWorkbench(a)
	p := tea.NewProgram(model, tea.WithAltScreen())

	// Turn resolutions arrive from the store's request goroutines; Send is
	// safe from outside the update loop.
	a.turns.SetOnChange(func(turn rag.Turn) {
		p.Send(turnChangedMsg(turn))
	})

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("workbench failed: %w", err)
	}
	// Detach the UI hook, then let any still-outstanding queries resolve so
	// they are not leaked on the way out.
	a.turns.SetOnChange(nil)
	a.turns.Wait()
	return nil
}
