// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/relay"
	"github.com/jeranaias/relaystat/internal/status"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeController struct {
	mu         sync.Mutex
	activated  int
	refreshed  int
	focus      []bool
	refreshErr error
}

func (f *fakeController) Activate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated++
	return nil
}

func (f *fakeController) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed++
	return f.refreshErr
}

func (f *fakeController) SetFocused(_ context.Context, focused bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focus = append(f.focus, focused)
}

func newTestModel(t *testing.T) (Model, *fakeController) {
	t.Helper()
	ctrl := &fakeController{}
	display := config.Default().Display
	display.Theme = "notty"
	m := New(context.Background(), ctrl, Options{Display: display, ConfigPath: "/tmp/relaystat.toml"})
	return m, ctrl
}

// runCmd executes cmd and flattens batches into their messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func okOutcome() status.Outcome {
	stats := &relay.UserStats{Name: "alice", IsActive: true}
	stats.Limits.DailyCostLimit = 5
	stats.Limits.CurrentDailyCost = 1.2
	stats.Limits.TotalCostLimit = 100
	stats.Limits.CurrentTotalCost = 40
	return status.OK(stats)
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestModel_InitActivates(t *testing.T) {
	m, ctrl := newTestModel(t)

	msgs := runCmd(m.Init())

	var activated bool
	for _, msg := range msgs {
		if _, ok := msg.(activatedMsg); ok {
			activated = true
		}
	}
	assert.True(t, activated)
	assert.Equal(t, 1, ctrl.activated)
	assert.Contains(t, m.View(), status.TextPending)
}

func TestModel_RendersOutcome(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, OutcomeMsg{Outcome: okOutcome()})
	view := m.View()
	assert.Contains(t, view, "$1.20/$5.00 24%")
	assert.Contains(t, view, "updated ")
	assert.Equal(t, status.KindOK, m.Outcome().Kind)

	m, _ = update(t, m, ConfigChangedMsg{Display: config.DisplayConfig{Mode: "total", ShowPercent: true}})
	assert.Contains(t, m.View(), "$40.00/$100.00 40%")
}

func TestModel_RendersInvalidConfigAndFailure(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, OutcomeMsg{Outcome: status.InvalidConfig(config.CheckConnection("", "", ""))})
	assert.Contains(t, m.View(), status.TextConfigure)
	assert.Contains(t, m.View(), "both missing")

	m, _ = update(t, m, OutcomeMsg{Outcome: status.Failed(errors.New("relay unreachable"))})
	assert.Contains(t, m.View(), status.TextError)
	assert.Contains(t, m.View(), "relay unreachable")
}

func TestModel_RefreshKey(t *testing.T) {
	m, ctrl := newTestModel(t)

	m, cmd := update(t, m, runes("r"))
	require.NotNil(t, cmd)

	// A second press while the first is running is ignored.
	_, again := update(t, m, runes("r"))
	assert.Nil(t, again)

	var done bool
	for _, msg := range runCmd(cmd) {
		if _, ok := msg.(refreshDoneMsg); ok {
			done = true
			m, _ = update(t, m, msg)
		}
	}
	assert.True(t, done)
	assert.Equal(t, 1, ctrl.refreshed)

	_, cmd = update(t, m, runes("r"))
	assert.NotNil(t, cmd, "refresh is allowed again once the first finished")
}

func TestModel_FocusForwarded(t *testing.T) {
	m, ctrl := newTestModel(t)

	_, cmd := update(t, m, tea.BlurMsg{})
	runCmd(cmd)
	_, cmd = update(t, m, tea.FocusMsg{})
	runCmd(cmd)

	assert.Equal(t, []bool{false, true}, ctrl.focus)
}

func TestModel_Quit(t *testing.T) {
	m, _ := newTestModel(t)

	_, cmd := update(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestModel_Details(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = update(t, m, OutcomeMsg{Outcome: okOutcome()})

	m, _ = update(t, m, runes("d"))
	view := m.View()
	assert.Contains(t, view, "Daily")
	assert.Contains(t, view, "esc back")

	// q closes the details page rather than quitting.
	m, cmd := update(t, m, runes("q"))
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "esc back")
}

func TestModel_ErrorLine(t *testing.T) {
	m, _ := newTestModel(t)

	m, _ = update(t, m, ErrorMsg{Err: errors.New("config reload failed\nsecond line")})
	view := m.View()
	assert.Contains(t, view, "config reload failed")
	assert.NotContains(t, view, "second line")

	m, _ = update(t, m, OutcomeMsg{Outcome: okOutcome()})
	assert.NotContains(t, m.View(), "config reload failed", "a good refresh clears the error")
}

func TestModel_ReconcileState(t *testing.T) {
	m, _ := newTestModel(t)
	assert.NotContains(t, m.View(), "credentials watch")

	m, _ = update(t, m, ReconcileStateMsg{State: reconcile.StateDisabled})
	assert.Contains(t, m.View(), "credentials watch: disabled")
}

func TestModel_Prompt(t *testing.T) {
	tests := []struct {
		key  tea.KeyMsg
		want reconcile.Choice
	}{
		{runes("a"), reconcile.ChoiceApply},
		{runes("k"), reconcile.ChoiceKeep},
		{runes("s"), reconcile.ChoiceOpenSettings},
		{tea.KeyMsg{Type: tea.KeyEsc}, reconcile.ChoiceDismissed},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			m, _ := newTestModel(t)
			reply := make(chan reconcile.Choice, 1)
			prompt := reconcile.Prompt{
				Path: "/home/u/.claude/settings.json",
				File: config.Credentials{APIURL: "https://new.test", APIKey: "cr_new"},
			}

			m, _ = update(t, m, PromptMsg{Prompt: prompt, Reply: reply})
			require.True(t, m.Prompting())
			assert.Contains(t, m.View(), "https://new.test")

			// Unrelated keys do not answer.
			m, _ = update(t, m, runes("r"))
			require.True(t, m.Prompting())

			m, _ = update(t, m, tt.key)
			assert.False(t, m.Prompting())
			assert.Equal(t, tt.want, <-reply)
		})
	}
}

func TestModel_PromptCancelled(t *testing.T) {
	m, _ := newTestModel(t)
	reply := make(chan reconcile.Choice, 1)

	m, _ = update(t, m, PromptMsg{Prompt: reconcile.Prompt{Path: "p"}, Reply: reply})
	m, _ = update(t, m, PromptCancelledMsg{})
	assert.False(t, m.Prompting())
	assert.Empty(t, reply)
}

// =============================================================================
// BRIDGE TESTS
// =============================================================================

type sink struct {
	mu   sync.Mutex
	msgs []tea.Msg
	ch   chan tea.Msg
}

func newSink() *sink {
	return &sink{ch: make(chan tea.Msg, 16)}
}

func (s *sink) send(msg tea.Msg) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
	s.ch <- msg
}

func TestBridge_Render(t *testing.T) {
	var b Bridge
	b.Render(status.Pending()) // no program yet: dropped

	s := newSink()
	b.SetSend(s.send)
	b.Render(okOutcome())
	b.Error(errors.New("boom"))
	b.Error(nil)
	b.ReconcileState(reconcile.StateChecking)

	require.Len(t, s.msgs, 3)
	assert.IsType(t, OutcomeMsg{}, s.msgs[0])
	assert.IsType(t, ErrorMsg{}, s.msgs[1])
	assert.Equal(t, ReconcileStateMsg{State: reconcile.StateChecking}, s.msgs[2])
}

func TestBridge_Prompt(t *testing.T) {
	var b Bridge
	s := newSink()
	b.SetSend(s.send)

	type result struct {
		choice reconcile.Choice
		err    error
	}
	done := make(chan result, 1)
	go func() {
		c, err := b.Prompt(context.Background(), reconcile.Prompt{Path: "p"})
		done <- result{c, err}
	}()

	msg := <-s.ch
	pm, ok := msg.(PromptMsg)
	require.True(t, ok)
	pm.Reply <- reconcile.ChoiceApply

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, reconcile.ChoiceApply, r.choice)
	case <-time.After(2 * time.Second):
		t.Fatal("Prompt did not return")
	}
}

func TestBridge_PromptCancelled(t *testing.T) {
	var b Bridge
	s := newSink()
	b.SetSend(s.send)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := b.Prompt(ctx, reconcile.Prompt{Path: "p"})
		done <- err
	}()

	<-s.ch
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Prompt did not return")
	}
	assert.IsType(t, PromptCancelledMsg{}, <-s.ch)
}

func TestBridge_NotAttached(t *testing.T) {
	var b Bridge
	choice, err := b.Prompt(context.Background(), reconcile.Prompt{})
	assert.ErrorIs(t, err, ErrNoProgram)
	assert.Equal(t, reconcile.ChoiceKeep, choice)
	assert.ErrorIs(t, b.OpenSettings(context.Background()), ErrNoProgram)
}

// =============================================================================
// EDITOR TESTS
// =============================================================================

func TestEditorCommand(t *testing.T) {
	t.Setenv("VISUAL", "code --wait")
	t.Setenv("EDITOR", "nano")
	cmd := EditorCommand("/tmp/c.toml")
	assert.Equal(t, []string{"code", "--wait", "/tmp/c.toml"}, cmd.Args)

	t.Setenv("VISUAL", "")
	cmd = EditorCommand("/tmp/c.toml")
	assert.Equal(t, []string{"nano", "/tmp/c.toml"}, cmd.Args)

	t.Setenv("EDITOR", "")
	cmd = EditorCommand("/tmp/c.toml")
	want := "vi"
	if runtime.GOOS == "windows" {
		want = "notepad"
	}
	assert.Equal(t, []string{want, "/tmp/c.toml"}, cmd.Args)
}
