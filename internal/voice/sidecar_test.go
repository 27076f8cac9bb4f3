package voice

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSidecarSaveAndMerge(t *testing.T) {
	dir := t.TempDir()
	sm := NewSidecarManager(dir, true)
	c := NewContainer([]byte{0x00, 0x10, 0x00, 0xf0}, GeminiFormat, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	wavPath, err := sm.Save(c, Request{Text: "héllo", Voice: "Kore", CorrelationID: "cid42"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(wavPath) != "20260102T030405.000Z_Kore_cidcid42.wav" {
		t.Fatalf("wav name: %s", filepath.Base(wavPath))
	}
	b, err := os.ReadFile(wavPath)
	if err != nil || len(b) != c.Len() {
		t.Fatalf("wav on disk: len=%d err=%v", len(b), err)
	}

	path := sm.FindByCID("cid42")
	if path == "" {
		t.Fatalf("sidecar not found")
	}
	var sc Sidecar
	raw, _ := os.ReadFile(path)
	if err := json.Unmarshal(raw, &sc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sc.TextChars != 5 || sc.PCMBytes != 4 || sc.Peak != 4096 || sc.WavPath != wavPath || sc.Voice != "Kore" {
		t.Fatalf("sidecar: %+v", sc)
	}

	if err := sm.MergeUpdatesForCID("cid42", map[string]interface{}{"published": true}); err != nil {
		t.Fatalf("MergeUpdatesForCID: %v", err)
	}
	var merged map[string]interface{}
	raw, _ = os.ReadFile(path)
	_ = json.Unmarshal(raw, &merged)
	if merged["published"] != true || merged["correlation_id"] != "cid42" {
		t.Fatalf("merged sidecar: %v", merged)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSidecarNilManager(t *testing.T) {
	var sm *SidecarManager
	if NewSidecarManager("  ", false) != nil {
		t.Fatalf("blank dir should disable archiving")
	}
	if sm.FindByCID("x") != "" {
		t.Fatalf("nil manager found a sidecar")
	}
	if err := sm.MergeUpdatesForCID("x", nil); err == nil {
		t.Fatalf("expected error from nil manager")
	}
}

func TestMergeUpdatesUnknownCID(t *testing.T) {
	sm := NewSidecarManager(t.TempDir(), false)
	if err := sm.MergeUpdatesForCID("missing", map[string]interface{}{"a": 1}); err == nil {
		t.Fatalf("expected not found error")
	}
}

func saveAt(t *testing.T, sm *SidecarManager, cid string, mod time.Time) {
	t.Helper()
	c := NewContainer([]byte{0x00, 0x00}, GeminiFormat, mod)
	wav, err := sm.Save(c, Request{Text: "x", Voice: "Kore", CorrelationID: cid})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	js := strings.TrimSuffix(wav, ".wav") + ".json"
	if err := os.Chtimes(js, mod, mod); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func TestCleanSavedAudioRetentionAndMaxFiles(t *testing.T) {
	dir := t.TempDir()
	sm := NewSidecarManager(dir, false)
	now := time.Now()
	saveAt(t, sm, "old", now.Add(-48*time.Hour))
	saveAt(t, sm, "a", now.Add(-3*time.Hour))
	saveAt(t, sm, "b", now.Add(-2*time.Hour))
	saveAt(t, sm, "c", now.Add(-1*time.Hour))

	if n := CleanSavedAudio(dir, 24*time.Hour, 2, now); n != 2 {
		t.Fatalf("removed: want=2 got=%d", n)
	}
	for cid, want := range map[string]bool{"old": false, "a": false, "b": true, "c": true} {
		if got := sm.FindByCID(cid) != ""; got != want {
			t.Fatalf("cid %s present=%v want=%v", cid, got, want)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 4 {
		t.Fatalf("want 2 wav+json pairs, got %d entries", len(entries))
	}
}

func TestSaveAudioCleanerStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	StartSaveAudioCleaner(ctx, &wg, t.TempDir(), time.Hour, 5*time.Millisecond, 0)
	time.Sleep(20 * time.Millisecond)
	cancel()
	wg.Wait()
}
