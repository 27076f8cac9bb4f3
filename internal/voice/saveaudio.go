package voice

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/narration-lab/internal/logging"
)

// StartSaveAudioCleaner starts a background goroutine that periodically
// prunes archived narrations in dir: pairs older than retention are removed,
// then the oldest pairs beyond maxFiles. Caller must call wg.Add(1) before
// calling this function; the goroutine calls wg.Done() on exit.
func StartSaveAudioCleaner(ctx context.Context, wg *sync.WaitGroup, dir string, retention, interval time.Duration, maxFiles int) {
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := CleanSavedAudio(dir, retention, maxFiles, time.Now()); n > 0 {
					logging.Infow("saveaudio: pruned narrations", "dir", dir, "removed", n)
				}
			}
		}
	}()
}

type savedPair struct {
	jsonPath string
	wavPath  string
	mod      time.Time
}

// CleanSavedAudio performs one pruning pass and returns how many pairs
// were removed. A zero retention or maxFiles disables that rule.
func CleanSavedAudio(dir string, retention time.Duration, maxFiles int, now time.Time) int {
	files, err := os.ReadDir(dir)
	if err != nil {
		logging.Debugw("saveaudio: cleanup readDir failed", "err", err)
		return 0
	}
	var pairs []savedPair
	for _, fi := range files {
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		jsonPath := filepath.Join(dir, name)
		st, err := os.Stat(jsonPath)
		if err != nil {
			continue
		}
		wavPath := strings.TrimSuffix(jsonPath, ".json") + ".wav"
		if b, err := os.ReadFile(jsonPath); err == nil {
			var sc map[string]interface{}
			if json.Unmarshal(b, &sc) == nil {
				if v, ok := sc["wav_path"].(string); ok && v != "" {
					wavPath = v
				}
			}
		}
		pairs = append(pairs, savedPair{jsonPath: jsonPath, wavPath: wavPath, mod: st.ModTime()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].mod.Before(pairs[j].mod) })

	remove := func(p savedPair) {
		_ = os.Remove(p.jsonPath)
		_ = os.Remove(p.wavPath)
		_ = os.Remove(p.jsonPath + ".lock")
	}
	removed := 0
	kept := pairs[:0]
	for _, p := range pairs {
		if retention > 0 && p.mod.Before(now.Add(-retention)) {
			remove(p)
			removed++
			continue
		}
		kept = append(kept, p)
	}
	if maxFiles > 0 && len(kept) > maxFiles {
		for _, p := range kept[:len(kept)-maxFiles] {
			remove(p)
			removed++
		}
	}
	return removed
}
