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
	"sync"

	"github.com/spf13/cobra"

	"screenwriter/internal/config"
	applog "screenwriter/internal/log"
	"screenwriter/internal/telemetry"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "screenwriter",
		Short:         "Screenplay editor with autosave",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newNewCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newEditCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

// commandContext carries the configuration shared by all subcommands.
type commandContext struct {
	once    sync.Once
	cfg     config.AppConfig
	secrets config.Secrets
	err     error
}

func (c *commandContext) ensureConfig() (config.AppConfig, config.Secrets, error) {
	c.once.Do(func() {
		cfg, sec, err := config.Load()
		if err != nil {
			c.err = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			c.err = fmt.Errorf("invalid config: %w", err)
			return
		}
		c.cfg, c.secrets = cfg, sec
	})
	return c.cfg, c.secrets, c.err
}

// setup loads configuration and initializes logging and telemetry for cmd.
func (c *commandContext) setup(cmd *cobra.Command) error {
	if cmd.Annotations["skipConfigLoad"] == "true" {
		return nil
	}
	cfg, _, err := c.ensureConfig()
	if err != nil {
		return err
	}
	opts := applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	}
	// The editor owns the terminal; its logs go to a file only.
	if cmd.Annotations["fullscreen"] == "true" {
		opts.Quiet = true
		if opts.File == "" {
			opts.File = filepath.Join(config.DataDir(), "logs", "screenwriter.log")
		}
	}
	applog.Init(opts)
	telemetry.SetDefault(telemetry.New(telemetry.FromEnv(cfg.General.TelemetryOptIn)))
	applog.WithComponent("cli").Debug("start", slog.String("cmd", cmd.CommandPath()), slog.String("driver", cfg.Storage.Driver))
	return nil
}
