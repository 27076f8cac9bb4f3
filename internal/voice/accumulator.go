package voice

import (
	"bytes"
	"errors"
)

// ErrFinalized is returned by Accumulator.Append once the buffer has been
// materialized.
var ErrFinalized = errors.New("accumulator already finalized")

// Accumulator collects PCM chunks of one stream in arrival order and
// materializes them as a single contiguous buffer. It is owned by a single
// generation and is not safe for concurrent use.
type Accumulator struct {
	buf       bytes.Buffer
	chunks    int
	finalized bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator { return &Accumulator{} }

// Append adds chunk to the end of the sequence. Zero-length chunks are
// counted but leave the buffer unchanged.
func (a *Accumulator) Append(chunk []byte) error {
	if a.finalized {
		return ErrFinalized
	}
	a.chunks++
	a.buf.Write(chunk)
	return nil
}

// Finalize returns the ordered concatenation of every appended chunk. It
// may be called repeatedly and always yields the same bytes; the returned
// slice is a copy the caller owns.
func (a *Accumulator) Finalize() []byte {
	a.finalized = true
	out := make([]byte, a.buf.Len())
	copy(out, a.buf.Bytes())
	return out
}

// Len is the number of PCM bytes accumulated so far.
func (a *Accumulator) Len() int { return a.buf.Len() }

// Chunks is the number of Append calls accepted, including empty chunks.
func (a *Accumulator) Chunks() int { return a.chunks }
