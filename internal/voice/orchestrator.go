package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/narration-lab/internal/logging"
)

// State is a step of one audio generation.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateAssembling
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateAssembling:
		return "assembling"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool { return s == StateReady || s == StateFailed }

// Request is the input of one generation.
type Request struct {
	Text          string
	Voice         string
	CorrelationID string
}

// Unit is one message of a streaming TTS response. HasAudio is false for
// metadata-only units.
type Unit struct {
	AudioData string
	HasAudio  bool
}

// Stream yields units in arrival order. Next returns io.EOF once the
// transport signals end of stream.
type Stream interface {
	Next(ctx context.Context) (Unit, error)
	Close() error
}

// Source opens a streaming TTS response for a request.
type Source interface {
	OpenStream(ctx context.Context, req Request) (Stream, error)
}

// Observer is told about every state change of an orchestrator.
type Observer func(req Request, from, to State)

// ErrAlreadyRun is returned when Run is called on a spent orchestrator.
var ErrAlreadyRun = errors.New("orchestrator already ran; start a new one")

// Orchestrator drives a single streaming TTS request to a WAV container.
// It decodes each audio unit, appends it to its own Accumulator and builds
// the container once the stream ends. It never retries.
type Orchestrator struct {
	source   Source
	format   PCMFormat
	observer Observer
	now      func() time.Time

	state State
	acc   *Accumulator
	units int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers fn for state changes.
func WithObserver(fn Observer) Option { return func(o *Orchestrator) { o.observer = fn } }

// WithFormat overrides the PCM format written into the container header.
func WithFormat(f PCMFormat) Option { return func(o *Orchestrator) { o.format = f } }

// WithClock sets the time source used to stamp containers.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// NewOrchestrator returns an idle orchestrator with a fresh accumulator.
func NewOrchestrator(source Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source: source,
		format: GeminiFormat,
		now:    time.Now,
		acc:    NewAccumulator(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State { return o.state }

// Units is the number of stream units consumed so far.
func (o *Orchestrator) Units() int { return o.units }

func (o *Orchestrator) transition(req Request, to State) {
	from := o.state
	o.state = to
	logging.Debugw("tts: state change", "correlation_id", req.CorrelationID, "from", from.String(), "to", to.String())
	if o.observer != nil {
		o.observer(req, from, to)
	}
}

func (o *Orchestrator) fail(req Request, kind Kind, err error) error {
	at := o.state
	o.acc = nil
	o.transition(req, StateFailed)
	return &GenerationError{Kind: kind, State: at, Err: err}
}

// Run performs the generation. On success the container holds every audio
// byte of the stream; on failure no partial audio is returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Container, error) {
	if o.state != StateIdle {
		return nil, ErrAlreadyRun
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, o.fail(req, KindInvalidRequest, errors.New("text is empty"))
	}
	if strings.TrimSpace(req.Voice) == "" {
		return nil, o.fail(req, KindInvalidRequest, errors.New("voice is required"))
	}

	o.transition(req, StateRequesting)
	stream, err := o.source.OpenStream(ctx, req)
	if err != nil {
		return nil, o.fail(req, KindTransportFault, err)
	}
	defer stream.Close()

	o.transition(req, StateStreaming)
	for {
		unit, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, o.fail(req, KindTransportFault, err)
		}
		o.units++
		if !unit.HasAudio {
			continue
		}
		chunk, err := DecodeChunk(unit.AudioData)
		if err != nil {
			return nil, o.fail(req, KindDecodeFault, fmt.Errorf("unit %d: %w", o.units, err))
		}
		if err := o.acc.Append(chunk); err != nil {
			return nil, o.fail(req, KindDecodeFault, err)
		}
	}

	o.transition(req, StateAssembling)
	pcm := o.acc.Finalize()
	if len(pcm) == 0 {
		return nil, o.fail(req, KindNoAudioProduced, fmt.Errorf("stream ended after %d units without audio", o.units))
	}
	c := NewContainer(pcm, o.format, o.now())
	o.acc = nil
	o.transition(req, StateReady)
	return c, nil
}
