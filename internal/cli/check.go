// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// check.go - Settings diagnostics.
//
// Command: check
// Aliases: doctor
//
// Reports whether the relay settings pass validation and whether the
// watched credentials file agrees with them. Makes no network calls.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/relaystat/internal/config"
	"github.com/jeranaias/relaystat/internal/reconcile"
	"github.com/jeranaias/relaystat/internal/refresh"
)

// CheckData is the --json payload of the check command.
type CheckData struct {
	ConfigPath       string   `json:"config_path"`
	APIURL           string   `json:"api_url"`
	APIID            string   `json:"api_id"`
	KeyConfigured    bool     `json:"key_configured"`
	Valid            bool     `json:"valid"`
	Reason           string   `json:"reason"`
	Message          string   `json:"message"`
	Missing          []string `json:"missing,omitempty"`
	WatchEnabled     bool     `json:"watch_enabled"`
	CredentialsPath  string   `json:"credentials_path"`
	CredentialsFound bool     `json:"credentials_found"`
	CredentialsMatch bool     `json:"credentials_match"`
	CredentialsError string   `json:"credentials_error,omitempty"`
}

// RunCheck collects the diagnostics for store.
func RunCheck(store *config.Store) CheckData {
	cfg := store.Snapshot()
	check := config.CheckAPI(cfg.API)

	data := CheckData{
		ConfigPath:    store.Path(),
		APIURL:        cfg.API.URL,
		APIID:         cfg.API.ID,
		KeyConfigured: cfg.API.Key != "",
		Valid:         check.Valid,
		Reason:        check.Reason.String(),
		Message:       check.Message(),
		Missing:       check.Missing,
		WatchEnabled:  cfg.Watch.Enabled,
	}

	path, err := config.ExpandPath(cfg.Watch.CredentialsPath)
	if err != nil {
		path = cfg.Watch.CredentialsPath
	}
	data.CredentialsPath = path

	creds, ok, err := reconcile.ReadCredentials(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		data.CredentialsError = err.Error()
	case ok:
		data.CredentialsFound = true
		data.CredentialsMatch = creds.Equal(store.Credentials())
	}
	return data
}

// HandleCheck prints the diagnostics. Invalid settings yield a config
// error exit code.
func HandleCheck(ctx context.Context, args Args, out io.Writer) error {
	store, err := OpenStore(args)
	if err != nil {
		return err
	}
	data := RunCheck(store)

	var result error
	if !data.Valid {
		result = Reported(&refresh.InvalidConfigError{Check: config.CheckAPI(store.API())})
	}

	if args.JSON {
		if err := NewJSONResponse("check", data).Write(out); err != nil {
			return err
		}
		return result
	}

	fmt.Fprintln(out, TitleStyle.Render("relaystat check"))
	printField(out, "config", data.ConfigPath)
	printField(out, "api.url", orUnset(data.APIURL))
	printField(out, "api.id", orUnset(data.APIID))
	if data.KeyConfigured {
		printField(out, "api.key", redacted)
	} else {
		printField(out, "api.key", orUnset(""))
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "%s %s\n", RenderStatus(data.Valid), data.Message)

	watch := "off"
	if data.WatchEnabled {
		watch = "on"
	}
	printField(out, "watch", watch)
	printField(out, "credentials", data.CredentialsPath)
	switch {
	case data.CredentialsError != "":
		fmt.Fprintln(out, WarningStyle.Render("  unreadable: "+data.CredentialsError))
	case !data.CredentialsFound:
		fmt.Fprintln(out, DimStyle.Render("  no relay settings found"))
	case data.CredentialsMatch:
		fmt.Fprintln(out, SuccessStyle.Render("  matches relaystat settings"))
	default:
		fmt.Fprintln(out, WarningStyle.Render("  differs from relaystat settings (run: relaystat reconcile)"))
	}
	return result
}

func orUnset(s string) string {
	if s == "" {
		return DimStyle.Render("(unset)")
	}
	return s
}
