package voice

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narration-lab/internal/logging"
)

// Synthesizer is the long-lived entry point for audio generation. Every
// call runs a new Orchestrator, so no accumulator or state survives from
// one attempt to the next.
type Synthesizer struct {
	Source       Source
	DefaultVoice string
	Observer     Observer
	Format       PCMFormat
}

// NewSynthesizer returns a Synthesizer for source using GeminiFormat. A zero
// Format on a literal Synthesizer also means GeminiFormat.
func NewSynthesizer(source Source, defaultVoice string) *Synthesizer {
	if defaultVoice == "" {
		defaultVoice = DefaultVoice
	}
	return &Synthesizer{Source: source, DefaultVoice: defaultVoice, Format: GeminiFormat}
}

// Synthesize narrates text with voice (or the default voice) and returns
// the WAV container. A correlation id is generated when req has none.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Container, error) {
	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = s.DefaultVoice
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	format := s.Format
	if format == (PCMFormat{}) {
		format = GeminiFormat
	}
	opts := []Option{WithFormat(format)}
	if s.Observer != nil {
		opts = append(opts, WithObserver(s.Observer))
	}
	orch := NewOrchestrator(s.Source, opts...)

	ctx = logging.WithFields(ctx, logging.GenerationFields(req.CorrelationID, req.Voice)...)
	started := time.Now()
	logging.InfowCtx(ctx, "tts: generation started", "text_chars", len([]rune(req.Text)))
	c, err := orch.Run(ctx, req)
	if err != nil {
		logging.WarnwCtx(ctx, "tts: generation failed", "err", err, "kind", KindOf(err).String(), "units", orch.Units())
		return nil, err
	}
	kv := append([]interface{}{"units", orch.Units(), "elapsed_ms", time.Since(started).Milliseconds()}, logging.ContainerFields(c.PCMLen(), c.Duration().Milliseconds())...)
	logging.InfowCtx(ctx, "tts: generation ready", kv...)
	return c, nil
}
