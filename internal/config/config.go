/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user-editable screenwriter configuration.
// Settings live in a YAML file in the user scope; environment variables are
// read-only overrides applied at runtime; secrets are kept in the OS keyring.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers understood by the CLI.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverFiles    = "files"
	DriverRemote   = "remote"
)

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

type EditorConfig struct {
	Autosave           bool `yaml:"autosave"`
	AutosaveIntervalMs int  `yaml:"autosave_interval_ms"`
	SaveOnExit         bool `yaml:"save_on_exit"`
	UndoMaxHistory     int  `yaml:"undo_max_history"`
	UndoCoalesceMs     int  `yaml:"undo_coalesce_ms"`
}

type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
	FilesRoot  string `yaml:"files_root"`
	// The Postgres DSN is a secret; it lives in the keyring or SCW_DATABASE_URL.
}

type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Addr      string `yaml:"addr"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration persisted to YAML.
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Secrets holds values read from the keyring or the environment, never from the YAML file.
type Secrets struct {
	BackendToken string
	DatabaseURL  string
}

// Defaults returns the application defaults. Paths are resolved relative to the data dir.
func Defaults() AppConfig {
	data := DataDir()
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Editor: EditorConfig{
			Autosave:           true,
			AutosaveIntervalMs: 10000,
			SaveOnExit:         true,
			UndoMaxHistory:     200,
			UndoCoalesceMs:     750,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: filepath.Join(data, "screenwriter.db"),
			FilesRoot:  filepath.Join(data, "scripts"),
		},
		Backend: BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "SCW_CONFIG"
	EnvBackendURL       = "SCW_BACKEND_URL"
	EnvBackendTimeoutMs = "SCW_BACKEND_TIMEOUT_MS"
	EnvBackendAddr      = "SCW_ADDR"
	EnvBackendToken     = "SCW_BACKEND_TOKEN"
	EnvTelemetryOptIn   = "SCW_TELEMETRY_OPT_IN"
	EnvStorageDriver    = "SCW_STORAGE_DRIVER"
	EnvSQLitePath       = "SCW_SQLITE_PATH"
	EnvFilesRoot        = "SCW_FILES_ROOT"
	EnvDatabaseURL      = "SCW_DATABASE_URL"
	EnvAutosave         = "SCW_AUTOSAVE"
	EnvAutosaveInterval = "SCW_AUTOSAVE_INTERVAL_MS"
	EnvLogLevel         = "SCW_LOG_LEVEL"
	EnvLogFormat        = "SCW_LOG_FORMAT"
	EnvLogSource        = "SCW_LOG_SOURCE"
	EnvLogFile          = "SCW_LOG_FILE"
)

// envOverrides maps dotted config keys to the variable that overrides them.
var envOverrides = map[string]string{
	"backend.base_url":            EnvBackendURL,
	"backend.timeout_ms":          EnvBackendTimeoutMs,
	"backend.addr":                EnvBackendAddr,
	"general.telemetry_opt_in":    EnvTelemetryOptIn,
	"storage.driver":              EnvStorageDriver,
	"storage.sqlite_path":         EnvSQLitePath,
	"storage.files_root":          EnvFilesRoot,
	"editor.autosave":             EnvAutosave,
	"editor.autosave_interval_ms": EnvAutosaveInterval,
	"logging.level":               EnvLogLevel,
	"logging.format":              EnvLogFormat,
	"logging.source":              EnvLogSource,
	"logging.file":                EnvLogFile,
}

// appDirName returns the per-OS directory name.
func appDirName() string {
	if runtime.GOOS == "linux" || runtime.GOOS == "freebsd" || runtime.GOOS == "openbsd" {
		return "screenwriter"
	}
	return "Screenwriter"
}

// ConfigPath returns the per-user config file path. SCW_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(os.Getenv("HOME"), ".config")
		}
	}
	if base == "" || base == ".config" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, appDirName(), "config.yaml"), nil
}

// DataDir returns the per-user directory for databases and document files.
func DataDir() string {
	if dir, err := os.UserCacheDir(); err == nil && runtime.GOOS != "linux" {
		return filepath.Join(dir, appDirName())
	}
	if x := os.Getenv("XDG_DATA_HOME"); x != "" {
		return filepath.Join(x, appDirName())
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", appDirName())
	}
	return filepath.Join(os.TempDir(), appDirName())
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// Secrets come from the keyring, with environment variables taking precedence.
// A malformed config file is reported; a missing one is not.
func Load() (AppConfig, Secrets, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, Secrets{}, err
	}
	var loadErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			loadErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		loadErr = fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, loadSecrets(), loadErr
}

// Save writes the user config YAML and persists non-empty secrets into the OS keyring.
func Save(cfg AppConfig, sec Secrets) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if sec.BackendToken != "" {
		if err := secretStore.Set(keyringService, keyringToken, sec.BackendToken); err != nil {
			return fmt.Errorf("store backend token: %w", err)
		}
	}
	if sec.DatabaseURL != "" {
		if err := secretStore.Set(keyringService, keyringDatabaseURL, sec.DatabaseURL); err != nil {
			return fmt.Errorf("store database url: %w", err)
		}
	}
	return nil
}

func loadSecrets() Secrets {
	var s Secrets
	s.BackendToken, _ = secretStore.Get(keyringService, keyringToken)
	s.DatabaseURL, _ = secretStore.Get(keyringService, keyringDatabaseURL)
	if v := strings.TrimSpace(os.Getenv(EnvBackendToken)); v != "" {
		s.BackendToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		s.DatabaseURL = v
	} else if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" && s.DatabaseURL == "" {
		s.DatabaseURL = v
	}
	return s
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.Editor.Autosave = src.Editor.Autosave
	dst.Editor.SaveOnExit = src.Editor.SaveOnExit
	if src.Editor.AutosaveIntervalMs > 0 {
		dst.Editor.AutosaveIntervalMs = src.Editor.AutosaveIntervalMs
	}
	if src.Editor.UndoMaxHistory > 0 {
		dst.Editor.UndoMaxHistory = src.Editor.UndoMaxHistory
	}
	if src.Editor.UndoCoalesceMs > 0 {
		dst.Editor.UndoCoalesceMs = src.Editor.UndoCoalesceMs
	}
	if v := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); v != "" {
		dst.Storage.Driver = v
	}
	if v := strings.TrimSpace(src.Storage.SQLitePath); v != "" {
		dst.Storage.SQLitePath = v
	}
	if v := strings.TrimSpace(src.Storage.FilesRoot); v != "" {
		dst.Storage.FilesRoot = v
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.Addr != "" {
		dst.Backend.Addr = src.Backend.Addr
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func envBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	get := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	if v := get(EnvBackendURL); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := get(EnvBackendTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := get(EnvBackendAddr); v != "" {
		cfg.Backend.Addr = v
	}
	if v := get(EnvTelemetryOptIn); v != "" {
		cfg.General.TelemetryOptIn = envBool(v)
	}
	if v := get(EnvStorageDriver); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := get(EnvSQLitePath); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := get(EnvFilesRoot); v != "" {
		cfg.Storage.FilesRoot = v
	}
	if v := get(EnvAutosave); v != "" {
		cfg.Editor.Autosave = envBool(v)
	}
	if v := get(EnvAutosaveInterval); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.AutosaveIntervalMs = n
		}
	}
	if v := get(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := get(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := get(EnvLogSource); v != "" {
		cfg.Logging.Source = envBool(v)
	}
	if v := get(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envOverrides[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Validate reports settings that would prevent the editor from starting.
func (c AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverPostgres, DriverFiles, DriverRemote:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Editor.AutosaveIntervalMs <= 0 {
		return fmt.Errorf("editor.autosave_interval_ms must be positive, got %d", c.Editor.AutosaveIntervalMs)
	}
	return nil
}

// AutosaveInterval returns the autosave period as a duration.
func (e EditorConfig) AutosaveInterval() time.Duration {
	if e.AutosaveIntervalMs <= 0 {
		return time.Duration(Defaults().Editor.AutosaveIntervalMs) * time.Millisecond
	}
	return time.Duration(e.AutosaveIntervalMs) * time.Millisecond
}

// UndoCoalesce returns the keystroke coalescing window.
func (e EditorConfig) UndoCoalesce() time.Duration {
	return time.Duration(e.UndoCoalesceMs) * time.Millisecond
}

// Timeout returns the backend request timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
