// Package config defines the cmdlink configuration document.
//
// JSON keys use camelCase. The document is the single persisted home of the
// binding table; every core operation reads live values through a Provider
// rather than caching them at startup.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cmdlink/cmdlink/internal/binding"
)

// ResponseMode governs how captured command output is delivered.
type ResponseMode string

const (
	// ForwardOnly forwards captured chunks to the conversation and returns a
	// contentless acknowledgement to the caller.
	ForwardOnly ResponseMode = "forward_only"
	// TextOnly returns the concatenated chunks to the caller; nothing is
	// forwarded to the conversation.
	TextOnly ResponseMode = "text_only"
	// ForwardAndText does both.
	ForwardAndText ResponseMode = "forward_and_text"
)

// BasicConfig holds plugin-wide behaviour flags.
type BasicConfig struct {
	EnablePlugin        bool   `json:"enablePlugin"`
	AutoRefreshOnChange bool   `json:"autoRefreshOnChange"`
	StrictValidation    bool   `json:"strictValidation"`
	WakePrefix          string `json:"wakePrefix"`
}

func defaultBasicConfig() BasicConfig {
	return BasicConfig{
		EnablePlugin:        true,
		AutoRefreshOnChange: true,
		WakePrefix:          "/",
	}
}

// BindingsConfig holds the binding table itself.
type BindingsConfig struct {
	Entries                []binding.Binding `json:"entries"`
	AllowDuplicateFunction bool              `json:"allowDuplicateFunction"`
}

func defaultBindingsConfig() BindingsConfig {
	return BindingsConfig{Entries: []binding.Binding{}, AllowDuplicateFunction: true}
}

// ExecutionConfig controls the capture window and forwarding pace.
type ExecutionConfig struct {
	CaptureTimeoutSec  float64 `json:"captureTimeoutSec"`
	ForwardIntervalSec float64 `json:"forwardIntervalSec"`
	ResponseMode       string  `json:"responseMode"`
}

func defaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		CaptureTimeoutSec:  20,
		ForwardIntervalSec: 0.5,
		ResponseMode:       string(ForwardOnly),
	}
}

// CaptureTimeout returns the capture window length, clamped to at least 1s.
func (e ExecutionConfig) CaptureTimeout() time.Duration {
	sec := e.CaptureTimeoutSec
	if sec < 1 {
		sec = 1
	}
	return time.Duration(sec * float64(time.Second))
}

// ForwardInterval returns the pause between forwarded chunks, never negative.
func (e ExecutionConfig) ForwardInterval() time.Duration {
	sec := e.ForwardIntervalSec
	if sec < 0 {
		sec = 0
	}
	return time.Duration(sec * float64(time.Second))
}

// Mode returns the response mode, falling back to ForwardOnly for unknown values.
func (e ExecutionConfig) Mode() ResponseMode {
	switch ResponseMode(e.ResponseMode) {
	case TextOnly, ForwardAndText, ForwardOnly:
		return ResponseMode(e.ResponseMode)
	}
	return ForwardOnly
}

// ToolConfig holds the global function documentation defaults.
type ToolConfig struct {
	Description    string `json:"description"`
	ArgDescription string `json:"argDescription"`
}

func defaultToolConfig() ToolConfig {
	return ToolConfig{
		Description:    "Bridges existing bot commands to callable functions so the model can run them.",
		ArgDescription: "Raw argument string passed to the command verbatim. Prefer key=value pairs separated by spaces, e.g. text=water time=10:00.",
	}
}

// CompatConfig holds legacy-migration flags.
type CompatConfig struct {
	AutoMigrateLegacy bool `json:"autoMigrateLegacy"`
	KeepLegacyBackup  bool `json:"keepLegacyBackup"`
	MigrationDone     bool `json:"migrationDone"`
}

func defaultCompatConfig() CompatConfig {
	return CompatConfig{AutoMigrateLegacy: true, KeepLegacyBackup: true}
}

// TelegramConfig configures the Telegram channel adapter.
type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token"`
	AllowFrom []string `json:"allowFrom"`
}

// ChannelsConfig groups channel adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

func defaultChannelsConfig() ChannelsConfig {
	return ChannelsConfig{Telegram: TelegramConfig{AllowFrom: []string{}}}
}

// GatewayConfig holds the websocket gateway listen address.
type GatewayConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{Host: "127.0.0.1", Port: 18791}
}

// Config is the root configuration document, loaded from ~/.cmdlink/config.json.
type Config struct {
	Basic     BasicConfig     `json:"basic"`
	Bindings  BindingsConfig  `json:"bindings"`
	Execution ExecutionConfig `json:"execution"`
	Tool      ToolConfig      `json:"tool"`
	Compat    CompatConfig    `json:"compat"`
	Channels  ChannelsConfig  `json:"channels"`
	Gateway   GatewayConfig   `json:"gateway"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	return Config{
		Basic:     defaultBasicConfig(),
		Bindings:  defaultBindingsConfig(),
		Execution: defaultExecutionConfig(),
		Tool:      defaultToolConfig(),
		Compat:    defaultCompatConfig(),
		Channels:  defaultChannelsConfig(),
		Gateway:   defaultGatewayConfig(),
	}
}

// DataDir returns the cmdlink data directory: ~/.cmdlink.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cmdlink"
	}
	return filepath.Join(home, ".cmdlink")
}

// ConfigPath returns the default configuration file path: ~/.cmdlink/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// LegacyMappingsPath returns the pre-migration flat mapping file location.
func LegacyMappingsPath() string {
	return filepath.Join(DataDir(), "command_mappings.json")
}
