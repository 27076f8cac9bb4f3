package voice

import (
	"bytes"
	"errors"
	"testing"
)

func TestAccumulatorConcatenatesInOrder(t *testing.T) {
	a := NewAccumulator()
	for _, c := range [][]byte{{0x01, 0x02}, {}, {0x03}} {
		if err := a.Append(c); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if a.Chunks() != 3 {
		t.Fatalf("chunks: want=3 got=%d", a.Chunks())
	}
	got := a.Finalize()
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("finalize: got=%v", got)
	}
	if again := a.Finalize(); !bytes.Equal(again, got) {
		t.Fatalf("second finalize differs: %v vs %v", again, got)
	}
}

func TestAccumulatorEmpty(t *testing.T) {
	a := NewAccumulator()
	if got := a.Finalize(); len(got) != 0 {
		t.Fatalf("expected empty buffer, got %d bytes", len(got))
	}
}

func TestAccumulatorRejectsAppendAfterFinalize(t *testing.T) {
	a := NewAccumulator()
	_ = a.Append([]byte{0x01})
	a.Finalize()
	if err := a.Append([]byte{0x02}); !errors.Is(err, ErrFinalized) {
		t.Fatalf("want ErrFinalized, got %v", err)
	}
	if a.Len() != 1 {
		t.Fatalf("len changed after rejected append: %d", a.Len())
	}
}

func TestAccumulatorFinalizeReturnsCopy(t *testing.T) {
	a := NewAccumulator()
	_ = a.Append([]byte{0x01, 0x02})
	out := a.Finalize()
	out[0] = 0xff
	if got := a.Finalize(); got[0] != 0x01 {
		t.Fatalf("finalized buffer was mutated through returned slice")
	}
}
