// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/lerit/internal/engine"
	"github.com/jeranaias/lerit/internal/model"
	"github.com/jeranaias/lerit/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures the chat view.
type Options struct {
	// MaxFPS caps transcript renders per second.
	MaxFPS int
	// Markdown renders completed assistant turns with glamour.
	Markdown bool
	// Theme defaults to an auto-detected theme.
	Theme *styles.Theme
	// Title is shown in the header, typically the transport and model.
	Title string
	// Context is the parent of every submitted request.
	Context context.Context
}

// Layout rows outside the viewport: header, input (border + line), status.
const chromeHeight = 4

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view. It renders the engine's
// transcript and never mutates it directly.
type Model struct {
	engine      *engine.Engine
	theme       *styles.Theme
	throttle    *FrameThrottle
	markdown    *MarkdownRenderer
	unsubscribe func()
	ctx         context.Context
	title       string
	keys        KeyMap

	transcript model.Transcript
	active     *engine.Request
	ticking    bool
	status     string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool
}

// New creates a chat view over eng and subscribes its frame throttle.
func New(eng *engine.Engine, opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.Placeholder
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	throttle := NewFrameThrottle(opts.MaxFPS)
	m := Model{
		engine:      eng,
		theme:       theme,
		throttle:    throttle,
		unsubscribe: eng.Subscribe(throttle),
		ctx:         ctx,
		title:       opts.Title,
		keys:        DefaultKeyMap(),
		transcript:  eng.Snapshot(),
		input:       input,
		spinner:     sp,
	}
	if opts.Markdown {
		m.markdown = NewMarkdownRenderer(theme.GlamourStyle())
	}
	return m
}

// Close detaches the view from the engine.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FrameTickMsg:
		return m.handleFrameTick()

	case RequestDoneMsg:
		return m.handleRequestDone(msg)

	case spinner.TickMsg:
		if m.active == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat view.
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	title := "lerit"
	if m.title != "" {
		title += " · " + m.title
	}
	header := m.theme.Header.Width(m.width).Render(title)

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.statusLine(),
	)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	vpHeight := msg.Height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - len(m.input.Prompt) - 4
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.engine.Cancel() {
			m.status = engine.MessageCancelled
			if snap, ok := m.throttle.ForceFlush(); ok {
				m.transcript = snap
				m.refresh()
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	if !m.input.Focused() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	if !m.input.Focused() {
		return m, nil
	}
	text := m.input.Value()

	req, err := m.engine.Submit(m.ctx, text)
	switch {
	case errors.Is(err, engine.ErrEmptyInput):
		return m, nil
	case errors.Is(err, engine.ErrBusy):
		m.status = "A response is still streaming. Press Esc to stop it."
		return m, nil
	case err != nil:
		log.Error().Err(err).Msg("submit failed")
		m.status = err.Error()
		return m, nil
	}

	m.input.Reset()
	m.active = req
	m.status = ""
	if m.engine.Policy() == engine.BusyReject {
		m.input.Blur()
	}

	cmds := []tea.Cmd{waitForRequest(req), m.spinner.Tick}
	if !m.ticking {
		m.ticking = true
		cmds = append(cmds, frameTickCmd(m.throttle.Interval()))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleFrameTick() (tea.Model, tea.Cmd) {
	if snap, ok := m.throttle.Flush(); ok {
		m.transcript = snap
		m.refresh()
	}
	if m.active == nil {
		m.ticking = false
		return m, nil
	}
	return m, frameTickCmd(m.throttle.Interval())
}

func (m Model) handleRequestDone(msg RequestDoneMsg) (tea.Model, tea.Cmd) {
	if snap, ok := m.throttle.ForceFlush(); ok {
		m.transcript = snap
		m.refresh()
	}
	if m.active != msg.Request {
		// Superseded; the newer request owns the status line.
		return m, nil
	}

	m.active = nil
	switch {
	case msg.Err == nil:
		m.status = ""
	case msg.Turn.Error != "":
		m.status = msg.Turn.Error
	default:
		m.status = engine.FailureMessage(msg.Err)
	}
	if !m.input.Focused() {
		return m, m.input.Focus()
	}
	return m, nil
}

// refresh re-renders the transcript into the viewport and follows the tail.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) statusLine() string {
	var left string
	switch {
	case m.active != nil:
		left = m.theme.StatusBusy.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.engine.State()))
	case m.status != "":
		left = styles.RenderWarning(m.status)
	default:
		left = m.theme.StatusBar.Render(fmt.Sprintf("%d turns", len(m.transcript)))
	}

	help := helpLine(m.keys.ShortHelp(), func(k, desc string) string {
		return m.theme.ShortcutKey.Render(k) + " " + m.theme.ShortcutDesc.Render(desc)
	})
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help)
	if gap < 1 {
		return left
	}
	return left + lipgloss.NewStyle().Width(gap).Render("") + help
}
