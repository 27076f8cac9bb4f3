package voice

import (
	"encoding/base64"
	"fmt"
)

// DecodeChunk turns one base64 audio payload from a stream unit into raw
// PCM bytes. The payload must be standard, padded base64 as produced by the
// upstream API; anything else is reported as an error and is never
// partially decoded.
func DecodeChunk(payload string) ([]byte, error) {
	out, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload (%d chars): %w", len(payload), err)
	}
	return out, nil
}
