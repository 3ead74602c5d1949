// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/status"
	"github.com/jeranaias/relaystat/internal/util"
)

// Controller is the part of the extension the view drives. Its methods may
// block on the refresh pipeline, so the model only calls them from commands.
type Controller interface {
	Activate(ctx context.Context) error
	Refresh(ctx context.Context) error
	SetFocused(ctx context.Context, focused bool)
}

// Options configures a Model.
type Options struct {
	Display    config.DisplayConfig
	ConfigPath string
}

// =============================================================================
// STYLES
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"})

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6C6F85", Dark: "#9399B2"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F38BA8"})

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#F9E2AF"}).
			Padding(0, 1)
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the bubbletea model for the interactive status view.
type Model struct {
	ctx  context.Context
	ctrl Controller

	keys       KeyMap
	promptKeys PromptKeyMap
	help       help.Model
	spinner    spinner.Model
	bar        progress.Model
	details    viewport.Model

	display    config.DisplayConfig
	configPath string

	outcome     status.Outcome
	refreshing  bool
	spinning    bool
	showDetails bool
	prompt      *PromptMsg
	watchState  reconcile.State
	lastErr     error

	width  int
	height int
}

// New creates the model. ctx bounds every controller call it issues.
func New(ctx context.Context, ctrl Controller, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = mutedStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30

	return Model{
		ctx:        ctx,
		ctrl:       ctrl,
		keys:       DefaultKeyMap(),
		promptKeys: DefaultPromptKeyMap(),
		help:       help.New(),
		spinner:    s,
		bar:        bar,
		details:    viewport.New(0, 0),
		display:    opts.Display,
		configPath: opts.ConfigPath,
		outcome:    status.Pending(),
		spinning:   true,
	}
}

// Init activates the controller and starts the spinner.
func (m Model) Init() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return activatedMsg{err: ctrl.Activate(ctx)} },
	)
}

// Outcome returns the last rendered outcome.
func (m Model) Outcome() status.Outcome { return m.outcome }

// Prompting reports whether a reconcile prompt is open.
func (m Model) Prompting() bool { return m.prompt != nil }

// busy reports whether the spinner should be visible.
func (m Model) busy() bool {
	return m.refreshing || m.outcome.Kind == status.KindPending
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.bar.Width = clamp(msg.Width-4, 10, 40)
		m.details.Width = msg.Width
		m.details.Height = max(msg.Height-2, 1)
		if m.showDetails {
			m.details.SetContent(m.renderDetails())
		}
		return m, nil

	case tea.FocusMsg:
		return m, m.focusCmd(true)

	case tea.BlurMsg:
		return m, m.focusCmd(false)

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case activatedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		}
		return m, nil

	case OutcomeMsg:
		m.outcome = msg.Outcome
		if m.outcome.Kind == status.KindOK {
			m.lastErr = nil
		}
		if m.showDetails {
			m.details.SetContent(m.renderDetails())
		}
		return m, nil

	case refreshDoneMsg:
		m.refreshing = false
		return m, nil

	case PromptMsg:
		if m.prompt != nil {
			m.answer(reconcile.ChoiceKeep)
		}
		m.prompt = &msg
		return m, nil

	case PromptCancelledMsg:
		m.prompt = nil
		return m, nil

	case OpenSettingsMsg:
		return m, m.editCmd()

	case editorFinishedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
		}
		return m, nil

	case ErrorMsg:
		m.lastErr = msg.Err
		return m, nil

	case ConfigChangedMsg:
		m.display = msg.Display
		if msg.Path != "" {
			m.configPath = msg.Path
		}
		if m.showDetails {
			m.details.SetContent(m.renderDetails())
		}
		return m, nil

	case ReconcileStateMsg:
		m.watchState = msg.State
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt != nil {
		switch {
		case key.Matches(msg, m.promptKeys.Apply):
			m.answer(reconcile.ChoiceApply)
		case key.Matches(msg, m.promptKeys.Keep):
			m.answer(reconcile.ChoiceKeep)
		case key.Matches(msg, m.promptKeys.Settings):
			m.answer(reconcile.ChoiceOpenSettings)
		case key.Matches(msg, m.promptKeys.Dismiss):
			m.answer(reconcile.ChoiceDismissed)
		}
		return m, nil
	}

	if m.showDetails {
		switch {
		case msg.Type == tea.KeyCtrlC:
			return m, tea.Quit
		case msg.Type == tea.KeyEsc, key.Matches(msg, m.keys.Details), key.Matches(msg, m.keys.Quit):
			m.showDetails = false
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m.startRefresh()
		}
		var cmd tea.Cmd
		m.details, cmd = m.details.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		return m.startRefresh()
	case key.Matches(msg, m.keys.Details):
		m.showDetails = true
		m.details.SetContent(m.renderDetails())
		m.details.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Settings):
		return m, m.editCmd()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

// answer replies to the open prompt and closes it.
func (m *Model) answer(choice reconcile.Choice) {
	if m.prompt == nil {
		return
	}
	select {
	case m.prompt.Reply <- choice:
	default:
	}
	m.prompt = nil
}

func (m Model) startRefresh() (tea.Model, tea.Cmd) {
	if m.refreshing {
		return m, nil
	}
	m.refreshing = true

	ctx, ctrl := m.ctx, m.ctrl
	cmds := []tea.Cmd{func() tea.Msg {
		return refreshDoneMsg{err: ctrl.Refresh(ctx)}
	}}
	if !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) focusCmd(focused bool) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.SetFocused(ctx, focused)
		return nil
	}
}

func (m Model) editCmd() tea.Cmd {
	if m.configPath == "" {
		return func() tea.Msg {
			return ErrorMsg{Err: errors.New("no config file path")}
		}
	}
	return tea.ExecProcess(EditorCommand(m.configPath), func(err error) tea.Msg {
		return editorFinishedMsg{err: err}
	})
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the model.
func (m Model) View() string {
	if m.showDetails {
		return m.details.View() + "\n" + mutedStyle.Render("esc back • ↑/↓ scroll • r refresh")
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("relaystat"))
	if m.busy() {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	opts := status.OptionsFrom(m.display)
	b.WriteString(status.Styled(m.outcome, opts))
	b.WriteString("\n")

	if m.outcome.Kind == status.KindOK && m.outcome.Stats != nil {
		spend := status.SpendFor(m.outcome.Stats.Limits, m.display.Mode)
		if spend.HasLimit() {
			b.WriteString(m.bar.ViewAs(min(spend.Percent()/100, 1)))
			b.WriteString("\n")
		}
		if !m.outcome.At.IsZero() {
			b.WriteString(mutedStyle.Render("updated " + m.outcome.At.Local().Format(time.TimeOnly)))
			b.WriteString("\n")
		}
	}

	switch {
	case m.outcome.Kind == status.KindInvalidConfig:
		b.WriteString(mutedStyle.Render(m.outcome.Check.Message()))
		b.WriteString("\n")
	case m.outcome.Kind == status.KindFailed && m.outcome.Err != nil:
		b.WriteString(m.errorLine(m.outcome.Err))
		b.WriteString("\n")
	}

	if m.watchState != reconcile.StateIdle {
		b.WriteString(mutedStyle.Render("credentials watch: " + m.watchState.String()))
		b.WriteString("\n")
	}

	if m.lastErr != nil {
		b.WriteString(m.errorLine(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.prompt != nil {
		box := m.prompt.Prompt.Message() + "\n\n" + m.help.View(m.promptKeys)
		if m.width > 4 {
			box = promptStyle.Width(m.width - 4).Render(box)
		} else {
			box = promptStyle.Render(box)
		}
		b.WriteString(box)
		return b.String()
	}

	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) errorLine(err error) string {
	line := util.FirstLine(err.Error())
	if m.width > 2 {
		line = util.TruncateWidth(line, m.width-2)
	}
	return errorStyle.Render(line)
}

// renderDetails renders the markdown details for the current width.
func (m Model) renderDetails() string {
	md := status.Markdown(m.outcome)
	out, err := status.RenderMarkdown(md, m.display.Theme, m.width)
	if err != nil {
		return md
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
