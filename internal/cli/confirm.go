// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// confirm.go - Terminal prompt for credential mismatches.
//
// Headless commands ask the reconcile question on the terminal with
// readline-style editing. Commands without a terminal never prompt.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
)

const choicePrompt = "[a]pply, [k]eep, open [s]ettings, [d]on't ask again (default k): "

// LinePrompter asks reconcile questions on a terminal. It implements
// reconcile.Prompter.
type LinePrompter struct {
	out      io.Writer
	readLine func(prompt string) (string, error)
}

// NewLinePrompter creates a prompter that reads answers with liner.
func NewLinePrompter(out io.Writer) *LinePrompter {
	return &LinePrompter{out: out, readLine: linerReadLine}
}

func linerReadLine(prompt string) (string, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	return line.Prompt(prompt)
}

// Prompt shows the mismatch and waits for an answer. An aborted prompt
// returns an error, which the reconciler treats as keep.
func (p *LinePrompter) Prompt(ctx context.Context, pr reconcile.Prompt) (reconcile.Choice, error) {
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, WarningStyle.Render(pr.Message()))
	printField(p.out, "relaystat", describeCredentials(pr.Current))
	printField(p.out, "file", describeCredentials(pr.File))

	type answer struct {
		choice reconcile.Choice
		err    error
	}
	answers := make(chan answer, 1)

	// liner cannot be interrupted; the goroutine ends with the next line
	// of input even if ctx is done first.
	go func() {
		for {
			input, err := p.readLine(choicePrompt)
			if err != nil {
				answers <- answer{reconcile.ChoiceKeep, err}
				return
			}
			if choice, ok := ParseChoice(input); ok {
				answers <- answer{choice, nil}
				return
			}
			fmt.Fprintln(p.out, DimStyle.Render("please answer a, k, s or d"))
		}
	}()

	select {
	case a := <-answers:
		if a.err != nil {
			if errors.Is(a.err, liner.ErrPromptAborted) || errors.Is(a.err, io.EOF) {
				return reconcile.ChoiceKeep, fmt.Errorf("prompt aborted: %w", a.err)
			}
			return reconcile.ChoiceKeep, a.err
		}
		return a.choice, nil
	case <-ctx.Done():
		return reconcile.ChoiceKeep, ctx.Err()
	}
}

// ParseChoice maps typed input to a choice. Empty input means keep.
func ParseChoice(input string) (reconcile.Choice, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "a", "apply", "y", "yes":
		return reconcile.ChoiceApply, true
	case "", "k", "keep", "n", "no":
		return reconcile.ChoiceKeep, true
	case "s", "settings", "o", "open":
		return reconcile.ChoiceOpenSettings, true
	case "d", "dismiss", "never":
		return reconcile.ChoiceDismissed, true
	default:
		return reconcile.ChoiceKeep, false
	}
}

func describeCredentials(c config.Credentials) string {
	url := c.APIURL
	if url == "" {
		url = "(no url)"
	}
	return url + "  key " + MaskKey(c.APIKey)
}

// MaskKey keeps the first and last four characters of long keys.
func MaskKey(key string) string {
	switch {
	case key == "":
		return "(none)"
	case len(key) <= 12:
		return "****"
	default:
		return key[:4] + "…" + key[len(key)-4:]
	}
}
