package voice

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/narration-lab/internal/logging"
)

const (
	DefaultBaseURL  = "https://generativelanguage.googleapis.com"
	DefaultTTSModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice    = "Kore"

	// maxUnitBytes bounds a single SSE line; audio units are base64 and can
	// be several hundred KiB each.
	maxUnitBytes = 16 << 20
)

// Voices lists the Gemini prebuilt voices accepted by the TTS models.
var Voices = []string{
	"Zephyr", "Puck", "Charon", "Kore", "Fenrir", "Leda", "Orus", "Aoede",
	"Callirrhoe", "Autonoe", "Enceladus", "Iapetus", "Umbriel", "Algieba",
	"Despina", "Erinome", "Algenib", "Rasalgethi", "Laomedeia", "Achernar",
	"Alnilam", "Schedar", "Gacrux", "Pulcherrima", "Achird", "Zubenelgenubi",
	"Vindemiatrix", "Sadachbia", "Sadaltager", "Sulafat",
}

// KnownVoice reports whether name is one of Voices (case-sensitive, as the
// API expects).
func KnownVoice(name string) bool {
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}

// StatusError is the transport error returned for a non-2xx response. Body
// is the raw upstream payload, not reinterpreted.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tts returned status %d: %s", e.StatusCode, e.Body)
}

// GeminiSource streams speech from the Gemini REST API using server-sent
// events so each unit arrives with its base64 payload intact.
type GeminiSource struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewGeminiSource fills in defaults for empty fields.
func NewGeminiSource(baseURL, apiKey, model string, timeout time.Duration) *GeminiSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultTTSModel
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &GeminiSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type ttsRequest struct {
	Contents         []ttsContent    `json:"contents"`
	GenerationConfig ttsGenerationCf `json:"generationConfig"`
}

type ttsContent struct {
	Parts []ttsPart `json:"parts"`
}

type ttsPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *ttsInlineData `json:"inlineData,omitempty"`
}

type ttsInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type ttsGenerationCf struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type ttsResponse struct {
	Candidates []struct {
		Content *ttsContent `json:"content"`
	} `json:"candidates"`
}

// OpenStream posts the synthesis request and returns the event stream.
func (g *GeminiSource) OpenStream(ctx context.Context, req Request) (Stream, error) {
	body := ttsRequest{
		Contents: []ttsContent{{Parts: []ttsPart{{Text: req.Text}}}},
		GenerationConfig: ttsGenerationCf{
			ResponseModalities: []string{"AUDIO"},
		},
	}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = req.Voice
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", g.BaseURL, g.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if g.APIKey != "" {
		httpReq.Header.Set("x-goog-api-key", g.APIKey)
	}
	if req.CorrelationID != "" {
		httpReq.Header.Set("X-Correlation-ID", req.CorrelationID)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		logging.Debugw("tts: POST failed", "err", err, "correlation_id", req.CorrelationID)
		return nil, err
	}
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		logging.Warnw("tts: returned non-2xx", "status", resp.StatusCode, "correlation_id", req.CorrelationID)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64<<10), maxUnitBytes)
	return &sseStream{body: resp.Body, sc: sc}, nil
}

type sseStream struct {
	body io.ReadCloser
	sc   *bufio.Scanner
}

// Next returns the next data event. Comment lines, blank separators and
// non-data fields are skipped.
func (s *sseStream) Next(ctx context.Context) (Unit, error) {
	for s.sc.Scan() {
		line := s.sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}
		var msg ttsResponse
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			return Unit{}, fmt.Errorf("malformed stream unit: %w", err)
		}
		return unitFrom(msg), nil
	}
	if err := s.sc.Err(); err != nil {
		return Unit{}, fmt.Errorf("read tts stream: %w", err)
	}
	return Unit{}, io.EOF
}

func (s *sseStream) Close() error { return s.body.Close() }

// unitFrom looks only at candidates[0].content.parts[0].inlineData.
func unitFrom(msg ttsResponse) Unit {
	if len(msg.Candidates) == 0 || msg.Candidates[0].Content == nil {
		return Unit{}
	}
	parts := msg.Candidates[0].Content.Parts
	if len(parts) == 0 || parts[0].InlineData == nil || parts[0].InlineData.Data == "" {
		return Unit{}
	}
	return Unit{AudioData: parts[0].InlineData.Data, HasAudio: true}
}
