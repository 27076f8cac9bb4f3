package voice

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/narration-lab/internal/logging"
)

// SidecarManager stores finished narrations in Dir as WAV files paired with
// JSON sidecars describing them. A nil manager is a valid no-op.
type SidecarManager struct {
	Dir string
	// Locking takes an advisory flock on "<sidecar>.lock" while merging
	// updates, for deployments where several processes share Dir.
	Locking bool
}

// NewSidecarManager returns nil when dir is blank so callers can skip
// archiving without branching.
func NewSidecarManager(dir string, locking bool) *SidecarManager {
	if strings.TrimSpace(dir) == "" {
		return nil
	}
	return &SidecarManager{Dir: dir, Locking: locking}
}

// Sidecar is the metadata written next to every archived WAV.
type Sidecar struct {
	CorrelationID string `json:"correlation_id"`
	Voice         string `json:"voice"`
	TextChars     int    `json:"text_chars"`
	PCMBytes      int    `json:"pcm_bytes"`
	DurationMs    int64  `json:"duration_ms"`
	Peak          int    `json:"peak"`
	SavedUTC      string `json:"saved_utc"`
	WavPath       string `json:"wav_path"`
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Save writes c and its sidecar atomically and returns the WAV path.
func (s *SidecarManager) Save(c *Container, req Request) (string, error) {
	if s == nil {
		return "", fmt.Errorf("sidecar manager not configured")
	}
	ts := c.CreatedAt().UTC().Format("20060102T150405.000Z")
	voice := unsafeName.ReplaceAllString(req.Voice, "_")
	base := filepath.Join(s.Dir, fmt.Sprintf("%s_%s_cid%s", ts, voice, req.CorrelationID))
	wavPath := base + ".wav"
	if err := SaveFileAtomic(wavPath, c.Bytes(), 0o644); err != nil {
		logging.Warnw("sidecar: failed to save wav atomically", "err", err, "path", wavPath, "correlation_id", req.CorrelationID)
		return "", err
	}
	sc := Sidecar{
		CorrelationID: req.CorrelationID,
		Voice:         req.Voice,
		TextChars:     len([]rune(req.Text)),
		PCMBytes:      c.PCMLen(),
		DurationMs:    c.Duration().Milliseconds(),
		Peak:          c.Peak(),
		SavedUTC:      time.Now().UTC().Format(time.RFC3339Nano),
		WavPath:       wavPath,
	}
	b, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return "", err
	}
	if err := SaveFileAtomic(base+".json", b, 0o644); err != nil {
		logging.Warnw("sidecar: failed to save sidecar", "err", err, "path", base+".json", "correlation_id", req.CorrelationID)
		_ = os.Remove(wavPath)
		return "", err
	}
	logging.Infow("sidecar: saved narration", "path", wavPath, "correlation_id", req.CorrelationID)
	return wavPath, nil
}

// FindByCID returns the full path to the sidecar JSON matching correlation id
// or an empty string if not found.
func (s *SidecarManager) FindByCID(cid string) string {
	if s == nil || s.Dir == "" || cid == "" {
		return ""
	}
	files, err := os.ReadDir(s.Dir)
	if err != nil {
		logging.Warnw("sidecar: failed to list dir", "dir", s.Dir, "err", err)
		return ""
	}
	for _, fi := range files {
		name := fi.Name()
		if strings.HasSuffix(name, "_cid"+cid+".json") {
			return filepath.Join(s.Dir, name)
		}
	}
	for _, fi := range files {
		name := fi.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(s.Dir, name)
		b, err := os.ReadFile(path)
		if err != nil {
			logging.Debugw("sidecar: failed to read file while searching by cid", "path", path, "err", err, "correlation_id", cid)
			continue
		}
		var sc map[string]interface{}
		if json.Unmarshal(b, &sc) == nil {
			if v, ok := sc["correlation_id"].(string); ok && v == cid {
				return path
			}
		}
	}
	return ""
}

// MergeUpdatesForCID reads the sidecar for cid, merges updates into it and
// writes it back atomically.
func (s *SidecarManager) MergeUpdatesForCID(cid string, updates map[string]interface{}) error {
	if s == nil {
		return fmt.Errorf("sidecar manager not configured")
	}
	path := s.FindByCID(cid)
	if path == "" {
		return fmt.Errorf("sidecar not found for cid=%s (searched dir=%s)", cid, s.Dir)
	}
	if s.Locking {
		unlock, err := lockFile(path + ".lock")
		if err != nil {
			logging.Warnw("sidecar: failed to lock", "path", path, "err", err, "correlation_id", cid)
			return err
		}
		defer unlock()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sidecar %s: %w", path, err)
	}
	var sc map[string]interface{}
	if err := json.Unmarshal(b, &sc); err != nil {
		return fmt.Errorf("invalid sidecar JSON %s: %w", path, err)
	}
	for k, v := range updates {
		sc[k] = v
	}
	nb, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal updated sidecar JSON for %s: %w", path, err)
	}
	if err := SaveFileAtomic(path, nb, 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar %s: %w", path, err)
	}
	logging.Infow("sidecar: saved updates", "path", path, "correlation_id", cid)
	return nil
}

func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock file %s: %w", path, err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
