/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the per-user handnote configuration.
// The YAML file holds user preferences; HWN_* environment variables override it at
// runtime and the asset server token lives in the OS keychain.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WindowConfig controls the floating window geometry.
type WindowConfig struct {
	ReferenceWidth float64 `yaml:"reference_width"`
	TopFraction    float64 `yaml:"top_fraction"`
	TargetHeight   float64 `yaml:"target_height"` // 0 uses the viewport fraction
}

// EditorConfig controls the editor-state store and the zoom coupling.
type EditorConfig struct {
	DebounceMs     int     `yaml:"debounce_ms"`
	FullScreenZoom float64 `yaml:"fullscreen_zoom"`
	DefaultWidth   int     `yaml:"default_width"`
	DefaultHeight  int     `yaml:"default_height"`
	DefaultPaper   string  `yaml:"default_paper"`
}

type AssetsConfig struct {
	BaseURL     string `yaml:"base_url"` // empty serves embedded tiles only
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type StoreConfig struct {
	DSN string `yaml:"dsn"` // sqlite file path or postgres:// URL
}

type NotifyConfig struct {
	Desktop bool `yaml:"desktop"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// AppConfig is the user-editable configuration.
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Window        WindowConfig  `yaml:"window"`
	Editor        EditorConfig  `yaml:"editor"`
	Assets        AssetsConfig  `yaml:"assets"`
	Store         StoreConfig   `yaml:"store"`
	Notify        NotifyConfig  `yaml:"notify"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Window:        WindowConfig{ReferenceWidth: 600, TopFraction: 0.2},
		Editor: EditorConfig{
			DebounceMs:     100,
			FullScreenZoom: 2.75,
			DefaultWidth:   250,
			DefaultHeight:  250,
			DefaultPaper:   "squared",
		},
		Assets:  AssetsConfig{TimeoutMs: 10000},
		Store:   StoreConfig{DSN: defaultDSN()},
		Notify:  NotifyConfig{Desktop: false},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile     = "HWN_CONFIG"
	EnvAssetsURL      = "HWN_ASSETS_URL"
	EnvAssetsTimeout  = "HWN_ASSETS_TIMEOUT_MS"
	EnvAssetsTLSInsec = "HWN_TLS_INSECURE"
	EnvStoreDSN       = "HWN_STORE_DSN"
	EnvDebounceMs     = "HWN_DEBOUNCE_MS"
	EnvDefaultPaper   = "HWN_DEFAULT_PAPER"
	EnvDesktopNotify  = "HWN_DESKTOP_NOTIFY"
	EnvLogLevel       = "HWN_LOG_LEVEL"
	EnvLogFormat      = "HWN_LOG_FORMAT"
	EnvLogSource      = "HWN_LOG_SOURCE"
	EnvLogFile        = "HWN_LOG_FILE"
)

// envKeys maps dotted config keys to the variable overriding them.
var envKeys = map[string]string{
	"assets.base_url":      EnvAssetsURL,
	"assets.timeout_ms":    EnvAssetsTimeout,
	"assets.tls_insecure":  EnvAssetsTLSInsec,
	"store.dsn":            EnvStoreDSN,
	"editor.debounce_ms":   EnvDebounceMs,
	"editor.default_paper": EnvDefaultPaper,
	"notify.desktop":       EnvDesktopNotify,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "Handnote")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "Handnote")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "handnote")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "handnote")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// Path returns the config file path; HWN_CONFIG takes precedence.
func Path() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultDSN() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "notes.sqlite"
	}
	return filepath.Join(home, ".local", "share", "handnote", "notes.sqlite")
}

// Load reads the user config file (if present), applies defaults and environment overrides.
// The asset server token is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the config YAML and stores a non-empty token in the keyring.
func Save(cfg AppConfig, token string) error {
	path, err := Path()
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
	if token != "" {
		return tokenStore.Set(keyringService, keyringToken, token)
	}
	return nil
}

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Window.ReferenceWidth > 0 {
		dst.Window.ReferenceWidth = src.Window.ReferenceWidth
	}
	if src.Window.TopFraction > 0 && src.Window.TopFraction < 1 {
		dst.Window.TopFraction = src.Window.TopFraction
	}
	if src.Window.TargetHeight > 0 {
		dst.Window.TargetHeight = src.Window.TargetHeight
	}
	if src.Editor.DebounceMs > 0 {
		dst.Editor.DebounceMs = src.Editor.DebounceMs
	}
	if src.Editor.FullScreenZoom > 0 {
		dst.Editor.FullScreenZoom = src.Editor.FullScreenZoom
	}
	if src.Editor.DefaultWidth > 0 {
		dst.Editor.DefaultWidth = src.Editor.DefaultWidth
	}
	if src.Editor.DefaultHeight > 0 {
		dst.Editor.DefaultHeight = src.Editor.DefaultHeight
	}
	if v := strings.TrimSpace(src.Editor.DefaultPaper); v != "" {
		dst.Editor.DefaultPaper = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Assets.BaseURL); v != "" {
		dst.Assets.BaseURL = v
	}
	if src.Assets.TimeoutMs > 0 {
		dst.Assets.TimeoutMs = src.Assets.TimeoutMs
	}
	dst.Assets.TLSInsecure = src.Assets.TLSInsecure
	if v := strings.TrimSpace(src.Store.DSN); v != "" {
		dst.Store.DSN = v
	}
	// booleans are copied so user preferences persist
	dst.Notify.Desktop = src.Notify.Desktop
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	str := func(key string, dst *string, lower bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if lower {
				v = strings.ToLower(v)
			}
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				*dst = n
			}
		}
	}
	flag := func(key string, dst *bool) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = truthy(v)
		}
	}
	str(EnvAssetsURL, &cfg.Assets.BaseURL, false)
	num(EnvAssetsTimeout, &cfg.Assets.TimeoutMs)
	flag(EnvAssetsTLSInsec, &cfg.Assets.TLSInsecure)
	str(EnvStoreDSN, &cfg.Store.DSN, false)
	num(EnvDebounceMs, &cfg.Editor.DebounceMs)
	str(EnvDefaultPaper, &cfg.Editor.DefaultPaper, true)
	flag(EnvDesktopNotify, &cfg.Notify.Desktop)
	str(EnvLogLevel, &cfg.Logging.Level, true)
	str(EnvLogFormat, &cfg.Logging.Format, true)
	flag(EnvLogSource, &cfg.Logging.Source)
	str(EnvLogFile, &cfg.Logging.File, false)
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Debounce returns the editor debounce as a duration.
func (e EditorConfig) Debounce() time.Duration {
	if e.DebounceMs <= 0 {
		return time.Duration(Defaults().Editor.DebounceMs) * time.Millisecond
	}
	return time.Duration(e.DebounceMs) * time.Millisecond
}

// Timeout returns the asset fetch timeout as a duration.
func (a AssetsConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return time.Duration(Defaults().Assets.TimeoutMs) * time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}
