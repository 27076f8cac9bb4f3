// Package cover turns narration text into a cover image: a text model
// writes the image prompt, an image model renders it.
package cover

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/llm"
)

var (
	ErrNoText      = errors.New("no text or custom prompt to build a cover from")
	ErrAspectRatio = errors.New("unsupported aspect ratio")
	ErrResolution  = errors.New("unsupported resolution")
)

// AspectRatios accepted by the image model.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// Styles offered to clients. Any non-empty label is accepted.
var Styles = []string{
	"Photorealistic", "Cinematic", "Watercolor", "Oil Painting", "Anime",
	"Digital Art", "Pencil Sketch", "Fantasy Art", "Minimalist",
}

const DefaultStyle = "Photorealistic"

// Resolution adds quality keywords to the final prompt.
type Resolution string

const (
	ResolutionStandard Resolution = "standard"
	ResolutionHD       Resolution = "hd"
	Resolution4K       Resolution = "4k"
)

func (r Resolution) enhancer() (string, error) {
	switch r {
	case ResolutionStandard, "":
		return "", nil
	case ResolutionHD:
		return ", HD, high definition, high quality", nil
	case Resolution4K:
		return ", 4K resolution, ultra-high definition, hyperrealistic, photorealistic", nil
	}
	return "", fmt.Errorf("%w: %q", ErrResolution, string(r))
}

// Request describes one cover. CustomPrompt wins over Text when set.
type Request struct {
	Text         string
	CustomPrompt string
	Style        string
	AspectRatio  string
	Resolution   Resolution
}

// Image is a generated cover.
type Image struct {
	Prompt   string
	MIMEType string
	Data     []byte
}

// DataURL renders the image as a data: URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Generator is the part of llm.Client the pipeline needs.
type Generator interface {
	ImagePrompt(ctx context.Context, style, text string) (string, error)
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (llm.Image, error)
}

type Service struct {
	gen Generator
}

func NewService(gen Generator) *Service { return &Service{gen: gen} }

// Generate runs both steps for req.
func (s *Service) Generate(ctx context.Context, req Request) (*Image, error) {
	source := strings.TrimSpace(req.CustomPrompt)
	if source == "" {
		source = strings.TrimSpace(req.Text)
	}
	if source == "" {
		return nil, ErrNoText
	}
	ratio := req.AspectRatio
	if ratio == "" {
		ratio = "1:1"
	}
	if !validRatio(ratio) {
		return nil, fmt.Errorf("%w: %q", ErrAspectRatio, ratio)
	}
	enh, err := Resolution(strings.ToLower(strings.TrimSpace(string(req.Resolution)))).enhancer()
	if err != nil {
		return nil, err
	}
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = DefaultStyle
	}

	prompt, err := s.gen.ImagePrompt(ctx, style, source)
	if err != nil {
		return nil, fmt.Errorf("image prompt: %w", err)
	}
	logging.DebugwCtx(ctx, "cover: prompt ready", "style", style, "aspect_ratio", ratio, "prompt_chars", len(prompt))
	final := prompt + enh
	img, err := s.gen.GenerateImage(ctx, final, ratio)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return &Image{Prompt: final, MIMEType: img.MIMEType, Data: img.Data}, nil
}

func validRatio(r string) bool {
	for _, a := range AspectRatios {
		if a == r {
			return true
		}
	}
	return false
}
