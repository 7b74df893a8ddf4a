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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"screenwriter/internal/backend"
	"screenwriter/internal/config"
	"screenwriter/internal/domain"
	applog "screenwriter/internal/log"
	"screenwriter/internal/screenplay"
	"screenwriter/internal/storage"
	"screenwriter/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "screenwriter", version.String())
			return nil
		},
	}
}

// withStore opens the configured store for the duration of fn.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(scriptStore) error) error {
	cfg, sec, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cmd.Context(), cfg, sec)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

func newNewCommand(ctx *commandContext) *cobra.Command {
	var logline, author string
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Create an empty script and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st scriptStore) error {
				sc, err := st.CreateScript(cmd.Context(), domain.ScriptCreate{
					Title:    args[0],
					Logline:  logline,
					Metadata: domain.ScriptMetadata{Author: author},
				})
				if err != nil {
					return fmt.Errorf("create script: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), sc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&logline, "logline", "", "One-sentence summary")
	cmd.Flags().StringVar(&author, "author", "", "Author name")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scripts, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := domain.Status(status)
			if status != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			return ctx.withStore(cmd, func(store scriptStore) error {
				scripts, err := store.ListScripts(cmd.Context(), storage.ScriptFilter{Status: st, Limit: limit})
				if err != nil {
					return fmt.Errorf("list scripts: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(scripts) == 0 {
					fmt.Fprintln(out, "No scripts.")
					return nil
				}
				rows := make([][]string, 0, len(scripts))
				for _, sc := range scripts {
					rows = append(rows, []string{
						sc.ID, sc.Title, string(sc.Status),
						strconv.Itoa(len(sc.Elements)),
						sc.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Status", "Elements", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only scripts with this status (draft, review, published)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of scripts")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a script as formatted text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st scriptStore) error {
				sc, err := st.GetScript(cmd.Context(), args[0])
				if err != nil {
					return notFoundHint(args[0], err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n%s\n\n", sc.Title, strings.Repeat("=", len([]rune(sc.Title))))
				if sc.Logline != "" {
					fmt.Fprintf(out, "%s\n\n", sc.Logline)
				}
				fmt.Fprint(out, screenplay.RenderText(sc.Elements))
				return nil
			})
		},
	}
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a script from a plain-text screenplay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if strings.TrimSpace(title) == "" {
				title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			els := screenplay.ParseText(string(data), uuid.NewString)
			return ctx.withStore(cmd, func(st scriptStore) error {
				sc, err := st.CreateScript(cmd.Context(), domain.ScriptCreate{Title: title, Elements: els})
				if err != nil {
					return fmt.Errorf("import: %w", err)
				}
				applog.WithComponent("cli").Info("imported script", slog.String("id", sc.ID), slog.Int("elements", len(els)))
				fmt.Fprintln(cmd.OutOrStdout(), sc.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Script title (defaults to the file name)")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var markdown bool
	var output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a script as plain text or markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(st scriptStore) error {
				els, err := st.LoadElements(cmd.Context(), args[0])
				if err != nil {
					return notFoundHint(args[0], err)
				}
				body := screenplay.RenderText(els)
				if markdown {
					body = screenplay.RenderMarkdown(els)
				}
				if output == "" || output == "-" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), body)
					return err
				}
				if err := os.WriteFile(output, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote", output)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Export markdown instead of plain text")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (default stdout)")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sec, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Backend.Addr
			}
			st, err := openSQLStore(cmd.Context(), cfg, sec)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			l := applog.WithComponent("http")
			fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s (%s)\n", addr, st.Dialect())
			return backend.NewServer(st, backend.WithServerLogger(l)).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config backend.addr)")
	return cmd
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sec, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			if path, err := config.ConfigPath(); err == nil {
				fmt.Fprintf(out, "# file: %s\n", path)
			}
			fmt.Fprint(out, string(data))
			fmt.Fprintf(out, "# secrets: database_url=%s backend_token=%s\n", setOrUnset(sec.DatabaseURL), setOrUnset(sec.BackendToken))
			for _, key := range overridableKeys {
				if env, ok := config.EnvOverrideFor(key); ok {
					fmt.Fprintf(out, "# %s overridden by %s\n", key, env)
				}
			}
			return nil
		},
	})
	return configCmd
}

var overridableKeys = []string{
	"general.telemetry_opt_in",
	"editor.autosave",
	"editor.autosave_interval_ms",
	"storage.driver",
	"storage.sqlite_path",
	"storage.files_root",
	"backend.base_url",
	"backend.timeout_ms",
	"backend.addr",
	"logging.level",
	"logging.format",
	"logging.source",
	"logging.file",
}

func setOrUnset(v string) string {
	if v == "" {
		return "unset"
	}
	return "set"
}

// notFoundHint turns a missing script into a shorter message.
func notFoundHint(id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("no script with id %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("load script %s: %w", id, err)
}
