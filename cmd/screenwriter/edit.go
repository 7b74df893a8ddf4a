/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"screenwriter/internal/autosave"
	"screenwriter/internal/config"
	"screenwriter/internal/crash"
	"screenwriter/internal/editor"
	applog "screenwriter/internal/log"
	"screenwriter/internal/telemetry"
	"screenwriter/internal/tui"
	"screenwriter/internal/undo"
)

func newEditCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "edit <id>",
		Short:       "Open a script in the terminal editor",
		Long:        "Open a script in the terminal editor. An unknown id starts a new document that is created on first save.",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"fullscreen": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd, func(st scriptStore) error {
				return runEditor(cmd, cfg, st, args[0])
			})
		},
	}
}

func runEditor(cmd *cobra.Command, cfg config.AppConfig, st scriptStore, id string) error {
	c := cmd.Context()
	l := applog.WithDocument(applog.WithComponent("cli"), id)

	hist := undo.NewManager(undo.Config{
		MaxPerDocument: cfg.Editor.UndoMaxHistory,
		MinInterval:    cfg.Editor.UndoCoalesce(),
	})
	sess, err := editor.Open(c, st, id, editor.Options{Undo: hist})
	if err != nil {
		return err
	}
	defer sess.Close()
	defer crash.Recover(filepath.Join(config.DataDir(), "crash"), sess)

	title := id
	if sc, err := st.GetScript(c, id); err == nil {
		title = sc.Title
	}
	if sess.IsNew() {
		title += " (new)"
	}

	m := tui.New(sess, tui.Options{Title: title})
	tel := telemetry.Default()
	coord := autosave.New(sess, st, autosave.Config{
		Enabled:     cfg.Editor.Autosave,
		Interval:    cfg.Editor.AutosaveInterval(),
		SaveTimeout: cfg.Backend.Timeout(),
		SaveOnStop:  cfg.Editor.SaveOnExit,
	},
		autosave.WithObserver(m.OnSaveResult),
		autosave.WithObserver(func(r autosave.Result) {
			tel.SaveOutcome(string(r.Trigger), r.Elements, r.Finished.Sub(r.Started), r.Err)
		}),
	)
	m.SetCoordinator(coord)
	if err := coord.Start(c); err != nil {
		return err
	}
	l.Info("editor opened", slog.Int("elements", sess.Len()), slog.Bool("new", sess.IsNew()))

	runErr := tui.Run(c, m)
	coord.Stop()

	if last, ok := coord.LastResult(); ok && last.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: last save failed: %v\n", last.Err)
	} else if sess.Dirty() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: unsaved changes were discarded")
	}
	return runErr
}
