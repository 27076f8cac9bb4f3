package cover

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narration-lab/llm"
)

type fakeGenerator struct {
	gotStyle, gotText, gotPrompt, gotRatio string
	promptErr                              error
}

func (f *fakeGenerator) ImagePrompt(ctx context.Context, style, text string) (string, error) {
	f.gotStyle, f.gotText = style, text
	if f.promptErr != nil {
		return "", f.promptErr
	}
	return "a quiet harbor", nil
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt, aspectRatio string) (llm.Image, error) {
	f.gotPrompt, f.gotRatio = prompt, aspectRatio
	return llm.Image{MIMEType: "image/png", Data: []byte("png")}, nil
}

func TestGenerateAppendsResolutionEnhancer(t *testing.T) {
	g := &fakeGenerator{}
	img, err := NewService(g).Generate(context.Background(), Request{Text: "story", Style: "Watercolor", AspectRatio: "16:9", Resolution: ResolutionHD})
	require.NoError(t, err)
	assert.Equal(t, "Watercolor", g.gotStyle)
	assert.Equal(t, "story", g.gotText)
	assert.Equal(t, "a quiet harbor, HD, high definition, high quality", g.gotPrompt)
	assert.Equal(t, "16:9", g.gotRatio)
	assert.Equal(t, g.gotPrompt, img.Prompt)
	assert.Equal(t, "data:image/png;base64,cG5n", img.DataURL())
}

func TestGenerateResolutionIsCaseInsensitive(t *testing.T) {
	g := &fakeGenerator{}
	_, err := NewService(g).Generate(context.Background(), Request{Text: "story", Resolution: " HD "})
	require.NoError(t, err)
	assert.Equal(t, "a quiet harbor, HD, high definition, high quality", g.gotPrompt)

	_, err = NewService(g).Generate(context.Background(), Request{Text: "story", Resolution: "4K"})
	require.NoError(t, err)
	assert.Contains(t, g.gotPrompt, "4K resolution")
}

func TestGeneratePrefersCustomPromptAndDefaults(t *testing.T) {
	g := &fakeGenerator{}
	_, err := NewService(g).Generate(context.Background(), Request{Text: "story", CustomPrompt: "a dragon", Resolution: Resolution4K})
	require.NoError(t, err)
	assert.Equal(t, "a dragon", g.gotText)
	assert.Equal(t, DefaultStyle, g.gotStyle)
	assert.Equal(t, "1:1", g.gotRatio)
	assert.Equal(t, "a quiet harbor, 4K resolution, ultra-high definition, hyperrealistic, photorealistic", g.gotPrompt)
}

func TestGenerateValidation(t *testing.T) {
	s := NewService(&fakeGenerator{})
	_, err := s.Generate(context.Background(), Request{Text: "  "})
	assert.ErrorIs(t, err, ErrNoText)
	_, err = s.Generate(context.Background(), Request{Text: "x", AspectRatio: "2:1"})
	assert.ErrorIs(t, err, ErrAspectRatio)
	_, err = s.Generate(context.Background(), Request{Text: "x", Resolution: "8k"})
	assert.ErrorIs(t, err, ErrResolution)
}

func TestGeneratePropagatesPromptError(t *testing.T) {
	_, err := NewService(&fakeGenerator{promptErr: llm.ErrTransient}).Generate(context.Background(), Request{Text: "x"})
	assert.True(t, errors.Is(err, llm.ErrTransient))
}
