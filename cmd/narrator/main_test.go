package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narration-lab/internal/source"
	"github.com/narration-lab/internal/voice"
)

func TestInspectCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ok.wav")
	require.NoError(t, os.WriteFile(path, voice.BuildWAV(make([]byte, 48000)), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"inspect", path})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, out.String(), "sample rate: 24000 Hz")
	assert.Contains(t, out.String(), "duration:    1s")
	assert.Contains(t, out.String(), "consistent:  yes")
}

func TestInspectCommandTruncated(t *testing.T) {
	wav := voice.BuildWAV(make([]byte, 100))
	path := filepath.Join(t.TempDir(), "short.wav")
	require.NoError(t, os.WriteFile(path, wav[:len(wav)-10], 0o644))

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"inspect", path})
	assert.Error(t, rootCmd.Execute())
}

func TestSpeakSourceSelection(t *testing.T) {
	t.Cleanup(func() { speakText, speakFile = "", "" })

	req, err := speakSource(strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, source.MethodDirect, req.Method)
	assert.Equal(t, "from stdin", req.Text)

	speakText = "flag text"
	req, err = speakSource(strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "flag text", req.Text)

	speakFile = filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(speakFile, []byte("file text"), 0o644))
	req, err = speakSource(nil)
	require.NoError(t, err)
	assert.Equal(t, source.MethodFile, req.Method)
	assert.Equal(t, "file text", string(req.FileData))
}
