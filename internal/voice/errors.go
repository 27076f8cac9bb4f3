package voice

import (
	"errors"
	"fmt"
)

// Kind classifies why a generation failed.
type Kind int

const (
	KindInvalidRequest Kind = iota + 1
	KindTransportFault
	KindDecodeFault
	KindNoAudioProduced
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindTransportFault:
		return "transport_fault"
	case KindDecodeFault:
		return "decode_fault"
	case KindNoAudioProduced:
		return "no_audio_produced"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is against a *GenerationError.
var (
	ErrInvalidRequest  = errors.New("invalid generation request")
	ErrTransportFault  = errors.New("tts transport failed")
	ErrDecodeFault     = errors.New("audio payload is not valid base64")
	ErrNoAudioProduced = errors.New("no audio data produced")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidRequest:
		return ErrInvalidRequest
	case KindTransportFault:
		return ErrTransportFault
	case KindDecodeFault:
		return ErrDecodeFault
	case KindNoAudioProduced:
		return ErrNoAudioProduced
	}
	return nil
}

// GenerationError is the terminal error of an Orchestrator. State is where
// the failure happened. Err is the underlying cause; transport errors are
// kept as-is so callers may inspect them with errors.As.
type GenerationError struct {
	Kind  Kind
	State State
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s while %s", e.Kind.sentinel(), e.State)
	}
	return fmt.Sprintf("%s while %s: %v", e.Kind.sentinel(), e.State, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *GenerationError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf extracts the failure kind from err, or 0 if err is not a
// *GenerationError.
func KindOf(err error) Kind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return 0
}
