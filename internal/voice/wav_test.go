package voice

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestEncodeWAVHeaderLayout(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03}
	out := BuildWAV(pcm)
	if len(out) != 47 {
		t.Fatalf("length: want=47 got=%d", len(out))
	}
	le := binary.LittleEndian
	checks := []struct {
		name string
		got  uint32
		want uint32
	}{
		{"ChunkSize", le.Uint32(out[4:8]), 39},
		{"Subchunk1Size", le.Uint32(out[16:20]), 16},
		{"AudioFormat", uint32(le.Uint16(out[20:22])), 1},
		{"NumChannels", uint32(le.Uint16(out[22:24])), 1},
		{"SampleRate", le.Uint32(out[24:28]), 24000},
		{"ByteRate", le.Uint32(out[28:32]), 48000},
		{"BlockAlign", uint32(le.Uint16(out[32:34])), 2},
		{"BitsPerSample", uint32(le.Uint16(out[34:36])), 16},
		{"Subchunk2Size", le.Uint32(out[40:44]), 3},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: want=%d got=%d", c.name, c.want, c.got)
		}
	}
	for off, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if got := string(out[off : off+4]); got != tag {
			t.Errorf("tag at %d: want=%q got=%q", off, tag, got)
		}
	}
	if !bytes.Equal(out[HeaderSize:], pcm) {
		t.Fatalf("payload not copied verbatim: %v", out[HeaderSize:])
	}
}

func TestEncodeWAVEmptyAndDeterministic(t *testing.T) {
	empty := BuildWAV(nil)
	if len(empty) != HeaderSize {
		t.Fatalf("empty container: want=%d got=%d", HeaderSize, len(empty))
	}
	if binary.LittleEndian.Uint32(empty[4:8]) != 36 || binary.LittleEndian.Uint32(empty[40:44]) != 0 {
		t.Fatalf("empty container length fields wrong")
	}
	pcm := bytes.Repeat([]byte{0x10, 0x20}, 500)
	if !bytes.Equal(BuildWAV(pcm), BuildWAV(pcm)) {
		t.Fatalf("BuildWAV is not deterministic")
	}
}

func TestInspectReadsBackHeader(t *testing.T) {
	pcm := bytes.Repeat([]byte{0x00, 0x10}, 24000)
	info, err := Inspect(bytes.NewReader(BuildWAV(pcm)))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.SampleRate != 24000 || info.NumChannels != 1 || info.BitsPerSample != 16 || info.AudioFormat != 1 {
		t.Fatalf("unexpected fmt fields: %+v", info)
	}
	if info.ByteRate != 48000 || info.BlockAlign != 2 {
		t.Fatalf("unexpected derived fields: %+v", info)
	}
	if int(info.DataSize) != len(pcm) || info.DataRead != int64(len(pcm)) {
		t.Fatalf("data size mismatch: %+v", info)
	}
	if !info.Consistent() {
		t.Fatalf("expected consistent header: %+v", info)
	}
	if info.Duration() != time.Second {
		t.Fatalf("duration: want=1s got=%s", info.Duration())
	}
}

func TestInspectDetectsTruncation(t *testing.T) {
	out := BuildWAV(make([]byte, 100))
	info, err := Inspect(bytes.NewReader(out[:len(out)-10]))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Consistent() {
		t.Fatalf("truncated container reported consistent: %+v", info)
	}
	if info.DataRead != 90 {
		t.Fatalf("data read: want=90 got=%d", info.DataRead)
	}
}

func TestInspectRejectsNonWAV(t *testing.T) {
	_, err := Inspect(bytes.NewReader([]byte("RIFX\x00\x00\x00\x00WAVEfmt ")))
	if !errors.Is(err, ErrNotWAV) {
		t.Fatalf("want ErrNotWAV, got %v", err)
	}
}

func TestContainerAccessors(t *testing.T) {
	created := time.UnixMilli(1700000000123)
	pcm := []byte{0x00, 0x00, 0x10, 0x00, 0x00, 0x80}
	c := NewContainer(pcm, GeminiFormat, created)
	if c.Len() != HeaderSize+len(pcm) || c.PCMLen() != len(pcm) {
		t.Fatalf("lengths: len=%d pcm=%d", c.Len(), c.PCMLen())
	}
	if c.Filename() != "speech_1700000000123.wav" {
		t.Fatalf("filename: %s", c.Filename())
	}
	samples := c.Samples()
	if len(samples.Data) != 3 || samples.Data[1] != 16 || samples.Data[2] != -32768 {
		t.Fatalf("samples: %v", samples.Data)
	}
	if c.Peak() != 32768 {
		t.Fatalf("peak: want=32768 got=%d", c.Peak())
	}
	if c.Duration() != 125*time.Microsecond {
		t.Fatalf("duration: %s", c.Duration())
	}
}
