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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"screenwriter/internal/config"
	"screenwriter/internal/domain"
	"screenwriter/internal/storage"
)

const sampleScreenplay = `INT. KITCHEN - NIGHT

Rain hammers the window.

MAYA
Who left the kettle on?
`

// setupCLI points configuration at a temp dir and selects driver.
func setupCLI(t *testing.T, driver string) string {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigPath, filepath.Join(dir, "config.yaml"))
	t.Setenv(config.EnvStorageDriver, driver)
	t.Setenv(config.EnvFilesRoot, filepath.Join(dir, "scripts"))
	t.Setenv(config.EnvSQLitePath, filepath.Join(dir, "screenwriter.db"))
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv(config.EnvLogLevel, "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	require.NoError(t, err, "screenwriter %s", strings.Join(args, " "))
	return out
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, "version")
	assert.True(t, strings.HasPrefix(out, "screenwriter "))
}

func TestImportShowExportWithFileStore(t *testing.T) {
	dir := setupCLI(t, config.DriverFiles)
	src := filepath.Join(dir, "kettle.txt")
	require.NoError(t, os.WriteFile(src, []byte(sampleScreenplay), 0o644))

	id := strings.TrimSpace(mustRun(t, "import", src))
	require.NotEmpty(t, id)
	_, err := os.Stat(filepath.Join(dir, "scripts", id+".json"))
	require.NoError(t, err)

	show := mustRun(t, "show", id)
	assert.Contains(t, show, "kettle\n======")
	assert.Contains(t, show, "INT. KITCHEN - NIGHT")
	assert.Contains(t, show, "MAYA")
	assert.Contains(t, show, "Who left the kettle on?")

	md := filepath.Join(dir, "kettle.md")
	mustRun(t, "export", id, "--markdown", "-o", md)
	b, err := os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(b), "### INT. KITCHEN - NIGHT")
	assert.Contains(t, string(b), "> **MAYA**")

	text := mustRun(t, "export", id)
	assert.Contains(t, text, "Rain hammers the window.")
}

func TestNewAndListWithSQLite(t *testing.T) {
	setupCLI(t, config.DriverSQLite)
	id := strings.TrimSpace(mustRun(t, "new", "Night Shift", "--logline", "A nurse finds a ghost."))
	require.NotEmpty(t, id)

	out := mustRun(t, "list")
	assert.Contains(t, out, "Night Shift")
	assert.Contains(t, out, id)

	out = mustRun(t, "list", "--status", "published")
	assert.Contains(t, out, "No scripts.")

	_, err := runCLI(t, "list", "--status", "bogus")
	assert.ErrorContains(t, err, "unknown status")

	show := mustRun(t, "show", id)
	assert.Contains(t, show, "A nurse finds a ghost.")
}

func TestShowUnknownScript(t *testing.T) {
	setupCLI(t, config.DriverFiles)
	_, err := runCLI(t, "show", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "no script with id missing")
}

func TestConfigShowReportsOverrides(t *testing.T) {
	setupCLI(t, config.DriverFiles)
	out := mustRun(t, "config", "show")
	assert.Contains(t, out, "driver: files")
	assert.Contains(t, out, "storage.driver overridden by "+config.EnvStorageDriver)
	assert.Contains(t, out, "database_url=unset")
}

func TestInvalidDriverFailsBeforeRunning(t *testing.T) {
	setupCLI(t, "carrier-pigeon")
	_, err := runCLI(t, "list")
	assert.ErrorContains(t, err, "invalid config")
}

func TestServeNeedsDatabase(t *testing.T) {
	setupCLI(t, config.DriverFiles)
	_, err := runCLI(t, "serve", "--addr", "127.0.0.1:0")
	assert.ErrorContains(t, err, "has no database")

	setupCLI(t, config.DriverPostgres)
	_, err = runCLI(t, "serve")
	assert.ErrorIs(t, err, errNoDatabaseURL)
}

func TestFileScriptsFilter(t *testing.T) {
	fs, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	st := fileScripts{fs}
	ctx := context.Background()
	for _, title := range []string{"One", "Two", "Three"} {
		_, err := st.CreateScript(ctx, domain.ScriptCreate{Title: title})
		require.NoError(t, err)
	}

	all, err := st.ListScripts(ctx, storage.ScriptFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := st.ListScripts(ctx, storage.ScriptFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, some, 2)

	none, err := st.ListScripts(ctx, storage.ScriptFilter{Status: domain.StatusPublished})
	require.NoError(t, err)
	assert.Empty(t, none)
}
