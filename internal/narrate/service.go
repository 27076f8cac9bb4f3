// Package narrate wires the text, audio and cover pipelines together.
package narrate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narration-lab/internal/cover"
	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/metrics"
	"github.com/narration-lab/internal/publish"
	"github.com/narration-lab/internal/source"
	"github.com/narration-lab/internal/voice"
)

// ErrUnknownVoice is returned for a voice that is not a Gemini prebuilt
// voice.
var ErrUnknownVoice = errors.New("unknown voice")

// Rewriter turns raw text into narration-ready text.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// TextLoader fetches raw text.
type TextLoader interface {
	Load(ctx context.Context, req source.Request) (string, error)
}

// Archiver stores finished containers.
type Archiver interface {
	Save(c *voice.Container, req voice.Request) (string, error)
	MergeUpdatesForCID(cid string, updates map[string]interface{}) error
}

// Publisher delivers finished containers.
type Publisher interface {
	Publish(ctx context.Context, c *voice.Container, meta publish.Meta) (publish.Result, error)
}

// Prepared is the result of the text pipeline.
type Prepared struct {
	Original  string `json:"original_text"`
	Processed string `json:"processed_text"`
}

// Narration is a finished audio generation.
type Narration struct {
	CorrelationID string
	Voice         string
	Container     *voice.Container
	ArchivePath   string
}

// Service is safe for concurrent use; every call builds its own
// orchestrator and shares no mutable state with other calls.
type Service struct {
	Loader      TextLoader
	Rewriter    Rewriter
	Synthesizer *voice.Synthesizer
	Covers      *cover.Service
	Archive     Archiver
	Publisher   Publisher
	Metrics     *metrics.Metrics
}

// PrepareText loads the raw text for req and rewrites it.
func (s *Service) PrepareText(ctx context.Context, req source.Request) (Prepared, error) {
	started := time.Now()
	ctx = logging.WithFields(ctx, "correlation_id", uuid.NewString())
	raw, err := s.Loader.Load(ctx, req)
	if err != nil {
		s.Metrics.ObserveGeneration("text", "source_error", time.Since(started))
		return Prepared{}, err
	}
	logging.InfowCtx(ctx, "narrate: text loaded", logging.SourceFields(string(req.Method), len([]rune(raw)))...)
	processed, err := s.Rewriter.Rewrite(ctx, raw)
	if err != nil {
		s.Metrics.ObserveGeneration("text", "rewrite_error", time.Since(started))
		logging.WarnwCtx(ctx, "narrate: rewrite failed", "err", err)
		return Prepared{}, fmt.Errorf("rewrite text: %w", err)
	}
	s.Metrics.ObserveGeneration("text", "ok", time.Since(started))
	return Prepared{Original: raw, Processed: processed}, nil
}

// Narrate synthesizes text with voice (empty for the default voice). The
// result is archived and published when those are configured; failures
// there are logged and do not fail the call.
func (s *Service) Narrate(ctx context.Context, text, voiceName string) (*Narration, error) {
	voiceName = strings.TrimSpace(voiceName)
	if voiceName != "" && !voice.KnownVoice(voiceName) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVoice, voiceName)
	}
	if voiceName == "" {
		voiceName = s.Synthesizer.DefaultVoice
	}
	req := voice.Request{Text: text, Voice: voiceName, CorrelationID: uuid.NewString()}

	started := time.Now()
	c, err := s.Synthesizer.Synthesize(ctx, req)
	if err != nil {
		s.Metrics.ObserveGeneration("audio", voice.KindOf(err).String(), time.Since(started))
		return nil, err
	}
	s.Metrics.ObserveGeneration("audio", "ok", time.Since(started))
	s.Metrics.ObserveAudio(c.PCMLen(), c.Duration())

	n := &Narration{CorrelationID: req.CorrelationID, Voice: req.Voice, Container: c}
	ctx = logging.WithFields(ctx, logging.GenerationFields(req.CorrelationID, req.Voice)...)
	if s.Archive != nil {
		if path, err := s.Archive.Save(c, req); err != nil {
			logging.WarnwCtx(ctx, "narrate: archive failed", "err", err)
		} else {
			n.ArchivePath = path
		}
	}
	if s.Publisher != nil {
		res, err := s.Publisher.Publish(ctx, c, publish.Meta{CorrelationID: req.CorrelationID, Voice: req.Voice})
		if err != nil {
			logging.WarnwCtx(ctx, "narrate: publish failed", "err", err)
		} else if n.ArchivePath != "" {
			if err := s.Archive.MergeUpdatesForCID(req.CorrelationID, map[string]interface{}{
				"discord_channel_id": res.ChannelID,
				"discord_message_id": res.MessageID,
			}); err != nil {
				logging.WarnwCtx(ctx, "narrate: sidecar update failed", "err", err)
			}
		}
	}
	return n, nil
}

// Cover generates a cover image for req.
func (s *Service) Cover(ctx context.Context, req cover.Request) (*cover.Image, error) {
	started := time.Now()
	ctx = logging.WithFields(ctx, "correlation_id", uuid.NewString())
	img, err := s.Covers.Generate(ctx, req)
	if err != nil {
		s.Metrics.ObserveGeneration("image", "error", time.Since(started))
		logging.WarnwCtx(ctx, "narrate: cover failed", "err", err)
		return nil, err
	}
	s.Metrics.ObserveGeneration("image", "ok", time.Since(started))
	logging.InfowCtx(ctx, "narrate: cover ready", "mime_type", img.MIMEType, "bytes", len(img.Data))
	return img, nil
}

// TransitionObserver returns a voice.Observer feeding m.
func TransitionObserver(m *metrics.Metrics) voice.Observer {
	return func(_ voice.Request, from, to voice.State) {
		m.ObserveTransition(from.String(), to.String())
	}
}
