// Package config loads narrator settings from .env, an optional YAML file
// and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingAPIKey = errors.New("gemini api key is not configured")
	ErrMissingPrompt = errors.New("prompt file is empty or missing")
)

// Config represents the complete service configuration.
type Config struct {
	Gemini  GeminiConfig  `yaml:"gemini"`
	Prompts PromptsConfig `yaml:"prompts"`
	HTTP    HTTPConfig    `yaml:"http"`
	Archive ArchiveConfig `yaml:"archive"`
	Discord DiscordConfig `yaml:"discord"`
	Logging LoggingConfig `yaml:"logging"`
}

// GeminiConfig selects the upstream models. APIKeyFile is read only when
// APIKey is empty.
type GeminiConfig struct {
	APIKey       string        `yaml:"api_key"`
	APIKeyFile   string        `yaml:"api_key_file"`
	SheetsAPIKey string        `yaml:"sheets_api_key"`
	BaseURL      string        `yaml:"base_url"`
	TextModel    string        `yaml:"text_model"`
	ImageModel   string        `yaml:"image_model"`
	TTSModel     string        `yaml:"tts_model"`
	DefaultVoice string        `yaml:"default_voice"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PromptsConfig names the instruction files. Their contents are filled in
// by LoadFiles.
type PromptsConfig struct {
	SystemPromptFile string `yaml:"system_prompt_file"`
	ImagePromptFile  string `yaml:"image_prompt_file"`

	SystemPrompt      string `yaml:"-"`
	ImageInstructions string `yaml:"-"`
}

// HTTPConfig contains HTTP API server configuration. An empty Password
// leaves /api open.
type HTTPConfig struct {
	Address    string `yaml:"address"`
	Password   string `yaml:"password"`
	MCPEnabled bool   `yaml:"mcp_enabled"`
}

// ArchiveConfig controls saving finished WAVs. An empty Dir disables it.
type ArchiveConfig struct {
	Dir       string        `yaml:"dir"`
	Retention time.Duration `yaml:"retention"`
	Interval  time.Duration `yaml:"interval"`
	MaxFiles  int           `yaml:"max_files"`
	Locking   bool          `yaml:"locking"`
}

// DiscordConfig enables publishing when both fields are set.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKeyFile:   "API_key.txt",
			BaseURL:      "https://generativelanguage.googleapis.com",
			TextModel:    "gemini-2.5-flash",
			ImageModel:   "imagen-3.0-generate-002",
			TTSModel:     "gemini-2.5-flash-preview-tts",
			DefaultVoice: "Kore",
			Timeout:      5 * time.Minute,
		},
		Prompts: PromptsConfig{
			SystemPromptFile: "system_prompt.txt",
			ImagePromptFile:  "image_prompt.txt",
		},
		HTTP: HTTPConfig{Address: ":8080", MCPEnabled: true},
		Archive: ArchiveConfig{
			Retention: 24 * time.Hour,
			Interval:  time.Hour,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the configuration. path may be empty, in which case
// NARRATOR_CONFIG is consulted; a missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv("NARRATOR_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.APIKeyFile, "GEMINI_API_KEY_FILE")
	setString(&c.Gemini.SheetsAPIKey, "SHEETS_API_KEY")
	setString(&c.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&c.Gemini.TextModel, "GEMINI_TEXT_MODEL")
	setString(&c.Gemini.ImageModel, "GEMINI_IMAGE_MODEL")
	setString(&c.Gemini.TTSModel, "GEMINI_TTS_MODEL")
	setString(&c.Gemini.DefaultVoice, "NARRATOR_DEFAULT_VOICE")
	setString(&c.Prompts.SystemPromptFile, "NARRATOR_SYSTEM_PROMPT_FILE")
	setString(&c.Prompts.ImagePromptFile, "NARRATOR_IMAGE_PROMPT_FILE")
	setString(&c.HTTP.Address, "NARRATOR_HTTP_ADDR")
	setString(&c.HTTP.Password, "NARRATOR_PASSWORD")
	setString(&c.Archive.Dir, "NARRATOR_SAVE_DIR")
	setString(&c.Discord.BotToken, "DISCORD_BOT_TOKEN")
	setString(&c.Discord.ChannelID, "DISCORD_CHANNEL_ID")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if err := setDuration(&c.Gemini.Timeout, "GEMINI_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Archive.Retention, "NARRATOR_SAVE_RETENTION"); err != nil {
		return err
	}
	if err := setDuration(&c.Archive.Interval, "NARRATOR_SAVE_INTERVAL"); err != nil {
		return err
	}
	if err := setInt(&c.Archive.MaxFiles, "NARRATOR_SAVE_MAX_FILES"); err != nil {
		return err
	}
	if err := setBool(&c.Archive.Locking, "NARRATOR_SIDECAR_LOCKING"); err != nil {
		return err
	}
	return setBool(&c.HTTP.MCPEnabled, "NARRATOR_MCP_ENABLED")
}

// Validate checks values that do not depend on files.
func (c *Config) Validate() error {
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("gemini.timeout must be positive, got %s", c.Gemini.Timeout)
	}
	if c.Archive.Dir != "" {
		if c.Archive.Interval <= 0 {
			return fmt.Errorf("archive.interval must be positive, got %s", c.Archive.Interval)
		}
		if c.Archive.MaxFiles < 0 {
			return fmt.Errorf("archive.max_files cannot be negative, got %d", c.Archive.MaxFiles)
		}
	}
	if (c.Discord.BotToken == "") != (c.Discord.ChannelID == "") {
		return errors.New("discord.bot_token and discord.channel_id must be set together")
	}
	return nil
}

// LoadFiles reads the api key file (when no key is set inline) and both
// prompt files. It is called once at startup by commands that talk to the
// upstream API.
func (c *Config) LoadFiles() error {
	if c.Gemini.APIKey == "" && c.Gemini.APIKeyFile != "" {
		b, err := os.ReadFile(c.Gemini.APIKeyFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read api key file %s: %w", c.Gemini.APIKeyFile, err)
		}
		c.Gemini.APIKey = strings.TrimSpace(string(b))
	}
	if c.Gemini.APIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or create %s", ErrMissingAPIKey, c.Gemini.APIKeyFile)
	}
	if c.Gemini.SheetsAPIKey == "" {
		c.Gemini.SheetsAPIKey = c.Gemini.APIKey
	}

	var err error
	if c.Prompts.SystemPrompt, err = readPrompt(c.Prompts.SystemPromptFile); err != nil {
		return err
	}
	if c.Prompts.ImageInstructions, err = readPrompt(c.Prompts.ImagePromptFile); err != nil {
		return err
	}
	return nil
}

func readPrompt(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: no path configured", ErrMissingPrompt)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMissingPrompt, path, err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingPrompt, path)
	}
	return s, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
