package voice

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/riff"
)

// HeaderSize is the size of the canonical RIFF/WAVE header written by
// EncodeWAV: RIFF descriptor, a 16-byte fmt chunk and the data chunk header.
const HeaderSize = 44

const (
	fmtChunkSize = 16
	wavFormatPCM = 1
)

// PCMFormat describes linear PCM samples.
type PCMFormat struct {
	SampleRate    int
	BitsPerSample int
	NumChannels   int
}

// GeminiFormat is what the Gemini TTS models stream: 24 kHz, 16-bit
// signed little-endian, mono.
var GeminiFormat = PCMFormat{SampleRate: 24000, BitsPerSample: 16, NumChannels: 1}

// BlockAlign is the number of bytes per frame.
func (f PCMFormat) BlockAlign() int { return f.NumChannels * (f.BitsPerSample / 8) }

// ByteRate is the number of bytes per second of audio.
func (f PCMFormat) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// AudioFormat returns the go-audio view of f.
func (f PCMFormat) AudioFormat() *audio.Format {
	return &audio.Format{NumChannels: f.NumChannels, SampleRate: f.SampleRate}
}

// BuildWAV wraps pcm in a WAV header using GeminiFormat.
func BuildWAV(pcm []byte) []byte { return EncodeWAV(pcm, GeminiFormat) }

// EncodeWAV returns a HeaderSize+len(pcm) byte container: the header
// followed by pcm verbatim. Tags are ASCII, integers little-endian. The
// output depends only on its inputs.
func EncodeWAV(pcm []byte, f PCMFormat) []byte {
	dataLen := uint32(len(pcm))
	out := make([]byte, HeaderSize+len(pcm))

	copy(out[0:4], riff.RiffID[:])
	binary.LittleEndian.PutUint32(out[4:8], 36+dataLen)
	copy(out[8:12], riff.WavFormatID[:])

	copy(out[12:16], riff.FmtID[:])
	binary.LittleEndian.PutUint32(out[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.NumChannels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.BitsPerSample))

	copy(out[36:40], riff.DataFormatID[:])
	binary.LittleEndian.PutUint32(out[40:44], dataLen)
	copy(out[HeaderSize:], pcm)
	return out
}

// Container is a finished WAV file. It is immutable once built; Bytes
// exposes the backing array and callers must not modify it.
type Container struct {
	data      []byte
	format    PCMFormat
	createdAt time.Time
}

// NewContainer builds the WAV bytes for pcm.
func NewContainer(pcm []byte, f PCMFormat, createdAt time.Time) *Container {
	return &Container{data: EncodeWAV(pcm, f), format: f, createdAt: createdAt}
}

func (c *Container) Bytes() []byte        { return c.data }
func (c *Container) Len() int             { return len(c.data) }
func (c *Container) PCMLen() int          { return len(c.data) - HeaderSize }
func (c *Container) Format() PCMFormat    { return c.format }
func (c *Container) CreatedAt() time.Time { return c.createdAt }
func (c *Container) Reader() *bytes.Reader {
	return bytes.NewReader(c.data)
}

// PCM returns the sample data without the header.
func (c *Container) PCM() []byte { return c.data[HeaderSize:] }

// Duration is the playback length of the PCM payload.
func (c *Container) Duration() time.Duration {
	ba := c.format.BlockAlign()
	if ba == 0 || c.format.SampleRate == 0 {
		return 0
	}
	frames := int64(c.PCMLen() / ba)
	return time.Duration(frames) * time.Second / time.Duration(c.format.SampleRate)
}

// Filename is the download name offered to clients.
func (c *Container) Filename() string {
	return fmt.Sprintf("speech_%d.wav", c.createdAt.UnixMilli())
}

// Samples decodes the 16-bit payload into a go-audio buffer. Other bit
// depths yield an empty buffer.
func (c *Container) Samples() *audio.IntBuffer {
	buf := &audio.IntBuffer{Format: c.format.AudioFormat(), SourceBitDepth: c.format.BitsPerSample}
	if c.format.BitsPerSample != 16 {
		return buf
	}
	pcm := c.PCM()
	buf.Data = make([]int, len(pcm)/2)
	for i := range buf.Data {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return buf
}

// Peak is the largest absolute sample value; 0 means digital silence.
func (c *Container) Peak() int {
	peak := 0
	for _, s := range c.Samples().Data {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

var (
	// ErrNotWAV is returned by Inspect for input without RIFF/WAVE tags.
	ErrNotWAV = errors.New("not a RIFF/WAVE stream")
	// ErrNoDataChunk is returned by Inspect when the stream ends before a
	// data chunk.
	ErrNoDataChunk = errors.New("wav data chunk not found")
)

// Info is the header summary reported by Inspect.
type Info struct {
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	// DataSize is the declared data chunk length; DataRead is how many
	// bytes actually followed it.
	DataSize uint32
	DataRead int64
}

// Consistent reports whether every length field matches the payload that
// follows it.
func (i Info) Consistent() bool {
	return int64(i.DataSize) == i.DataRead && i.ChunkSize == 36+i.DataSize
}

// Duration is the playback length implied by the declared data size.
func (i Info) Duration() time.Duration {
	if i.ByteRate == 0 {
		return 0
	}
	return time.Duration(i.DataSize) * time.Second / time.Duration(i.ByteRate)
}

// Inspect parses a WAV stream with go-audio/riff. Chunks other than fmt
// and data are skipped; the data chunk is consumed to the end of r so that
// DataRead reflects what is really there, independent of the declared size.
func Inspect(r io.Reader) (Info, error) {
	var info Info
	p := riff.New(r)
	id, size, err := p.IDnSize()
	if err != nil {
		return info, fmt.Errorf("read riff header: %w", err)
	}
	if id != riff.RiffID {
		return info, ErrNotWAV
	}
	info.ChunkSize = size
	var format [4]byte
	if _, err := io.ReadFull(r, format[:]); err != nil {
		return info, fmt.Errorf("read riff format: %w", err)
	}
	if format != riff.WavFormatID {
		return info, ErrNotWAV
	}

	for {
		id, size, err := p.IDnSize()
		if err != nil {
			return info, ErrNoDataChunk
		}
		if id == riff.DataFormatID {
			info.DataSize = size
			n, err := io.Copy(io.Discard, r)
			if err != nil {
				return info, fmt.Errorf("read data chunk: %w", err)
			}
			info.DataRead = n
			return info, nil
		}
		// Chunks are word aligned; the declared size excludes the pad byte.
		padded := size
		if padded%2 == 1 {
			padded++
		}
		chunk := &riff.Chunk{ID: id, Size: int(padded), R: io.LimitReader(r, int64(padded))}
		if id == riff.FmtID {
			fields := []interface{}{&info.AudioFormat, &info.NumChannels, &info.SampleRate, &info.ByteRate, &info.BlockAlign, &info.BitsPerSample}
			for _, f := range fields {
				if err := chunk.ReadLE(f); err != nil {
					return info, fmt.Errorf("read fmt chunk: %w", err)
				}
			}
		}
		chunk.Drain()
	}
}
