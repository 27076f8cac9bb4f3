package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NARRATOR_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash-preview-tts", cfg.Gemini.TTSModel)
	assert.Equal(t, "Kore", cfg.Gemini.DefaultVoice)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 5*time.Minute, cfg.Gemini.Timeout)
	assert.Empty(t, cfg.Archive.Dir)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "narrator.yaml", `
gemini:
  text_model: gemini-custom
  timeout: 90s
http:
  address: ":9090"
archive:
  dir: /tmp/narrations
  retention: 48h
  max_files: 10
`)
	t.Setenv("NARRATOR_HTTP_ADDR", ":7070")
	t.Setenv("NARRATOR_SAVE_MAX_FILES", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini-custom", cfg.Gemini.TextModel)
	assert.Equal(t, 90*time.Second, cfg.Gemini.Timeout)
	assert.Equal(t, ":7070", cfg.HTTP.Address)
	assert.Equal(t, "/tmp/narrations", cfg.Archive.Dir)
	assert.Equal(t, 48*time.Hour, cfg.Archive.Retention)
	assert.Equal(t, 3, cfg.Archive.MaxFiles)
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("GEMINI_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "GEMINI_TIMEOUT")
}

func TestLoadRejectsHalfDiscordConfig(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "")
	_, err := Load("")
	assert.ErrorContains(t, err, "discord")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Gemini.APIKeyFile = writeFile(t, dir, "API_key.txt", "  secret-key\n")
	cfg.Prompts.SystemPromptFile = writeFile(t, dir, "system_prompt.txt", "Add voice directions.")
	cfg.Prompts.ImagePromptFile = writeFile(t, dir, "image_prompt.txt", "Describe vividly.")

	require.NoError(t, cfg.LoadFiles())
	assert.Equal(t, "secret-key", cfg.Gemini.APIKey)
	assert.Equal(t, "secret-key", cfg.Gemini.SheetsAPIKey)
	assert.Equal(t, "Add voice directions.", cfg.Prompts.SystemPrompt)
	assert.Equal(t, "Describe vividly.", cfg.Prompts.ImageInstructions)
}

func TestLoadFilesErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Gemini.APIKeyFile = filepath.Join(dir, "missing.txt")
	assert.ErrorIs(t, cfg.LoadFiles(), ErrMissingAPIKey)

	cfg = Default()
	cfg.Gemini.APIKey = "inline"
	cfg.Prompts.SystemPromptFile = writeFile(t, dir, "empty.txt", "   ")
	assert.ErrorIs(t, cfg.LoadFiles(), ErrMissingPrompt)
}
