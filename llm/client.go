package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "imagen-3.0-generate-002"
)

var (
	ErrPermanent = errors.New("permanent error")
	ErrTransient = errors.New("transient error")
	// ErrEmptyResponse is returned when the model answers without text or
	// without an image.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

// Models is the slice of genai.Models used here; *genai.Models satisfies it.
type Models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Config holds model names and the instruction texts loaded at startup.
type Config struct {
	APIKey            string
	TextModel         string
	ImageModel        string
	SystemPrompt      string
	ImageInstructions string
}

// Client rewrites text for narration and produces cover images.
type Client struct {
	models Models
	cfg    Config
}

// NewClient creates a genai-backed client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrPermanent)
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewClientWithModels(gc.Models, cfg), nil
}

// NewClientWithModels wraps an existing Models implementation.
func NewClientWithModels(m Models, cfg Config) *Client {
	if cfg.TextModel == "" {
		cfg.TextModel = DefaultTextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	return &Client{models: m, cfg: cfg}
}

// Rewrite runs text through the text model with the narration system
// prompt and returns the model's answer.
func (c *Client) Rewrite(ctx context.Context, text string) (string, error) {
	return c.generateText(ctx, text, c.cfg.SystemPrompt)
}

// ImagePrompt asks the text model for a one-sentence image prompt in style,
// inspired by text.
func (c *Client) ImagePrompt(ctx context.Context, style, text string) (string, error) {
	prompt := fmt.Sprintf("Create a highly detailed and visually rich image prompt in the style of \"%s\", inspired by the following text. "+
		"The final prompt should be a single, compelling sentence ready for an image generation model. Text: \"%s\"", style, text)
	return c.generateText(ctx, prompt, c.cfg.ImageInstructions)
}

// Image is one generated picture.
type Image struct {
	MIMEType string
	Data     []byte
}

// GenerateImage renders prompt with the image model as a single PNG.
func (c *Client) GenerateImage(ctx context.Context, prompt, aspectRatio string) (Image, error) {
	resp, err := c.models.GenerateImages(ctx, c.cfg.ImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/png",
		AspectRatio:    aspectRatio,
	})
	if err != nil {
		return Image{}, classify(err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		if resp != nil && len(resp.GeneratedImages) > 0 && resp.GeneratedImages[0].RAIFilteredReason != "" {
			return Image{}, fmt.Errorf("%w: %w: filtered: %s", ErrPermanent, ErrEmptyResponse, resp.GeneratedImages[0].RAIFilteredReason)
		}
		return Image{}, fmt.Errorf("%w: %w", ErrPermanent, ErrEmptyResponse)
	}
	img := resp.GeneratedImages[0].Image
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return Image{MIMEType: mime, Data: img.ImageBytes}, nil
}

func (c *Client) generateText(ctx context.Context, text, instruction string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if strings.TrimSpace(instruction) != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		}
	}
	resp, err := c.models.GenerateContent(ctx, c.cfg.TextModel, []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}, cfg)
	if err != nil {
		return "", classify(err)
	}
	out := ""
	if resp != nil {
		out = strings.TrimSpace(resp.Text())
	}
	if out == "" {
		return "", fmt.Errorf("%w: %w", ErrPermanent, ErrEmptyResponse)
	}
	return out, nil
}

// classify tags err with ErrTransient (rate limits, 5xx, network) or
// ErrPermanent (other 4xx) while keeping the cause reachable.
func classify(err error) error {
	if errors.Is(err, ErrPermanent) || errors.Is(err, ErrTransient) {
		return err
	}
	if code, ok := apiStatus(err); ok {
		if code == 429 || code >= 500 {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	// network failures and deadlines
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func apiStatus(err error) (int, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v.Code, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return p.Code, true
	}
	return 0, false
}

// Message returns a human readable reason for err. API errors surface their
// message; errors whose text embeds a JSON body use its error.message.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var v genai.APIError
	if errors.As(err, &v) && v.Message != "" {
		return v.Message
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil && p.Message != "" {
		return p.Message
	}
	s := err.Error()
	if m := embeddedMessage(s); m != "" {
		return m
	}
	return s
}

func embeddedMessage(s string) string {
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i < 0 || j <= i {
		return ""
	}
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(s[i:j+1]), &body) != nil {
		return ""
	}
	return body.Error.Message
}
