// Package server exposes the narrator pipelines over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/narration-lab/internal/cover"
	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/metrics"
	"github.com/narration-lab/internal/narrate"
	"github.com/narration-lab/internal/source"
	"github.com/narration-lab/internal/voice"
	"github.com/narration-lab/llm"
)

// Narrator is the pipeline facade; *narrate.Service implements it.
type Narrator interface {
	PrepareText(ctx context.Context, req source.Request) (narrate.Prepared, error)
	Narrate(ctx context.Context, text, voice string) (*narrate.Narration, error)
	Cover(ctx context.Context, req cover.Request) (*cover.Image, error)
}

// Options configures the HTTP surface.
type Options struct {
	// Password, when set, is required as a bearer token on /api routes.
	Password string
	// MCP, when set, is mounted at /mcp/ws.
	MCP       http.Handler
	Metrics   *metrics.Metrics
	StartedAt time.Time
}

// HTTPServer routes requests to a Narrator.
type HTTPServer struct {
	n    Narrator
	opts Options
	mux  *http.ServeMux
}

// New builds the handler tree.
func New(n Narrator, opts Options) *HTTPServer {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}
	h := &HTTPServer{n: n, opts: opts, mux: http.NewServeMux()}
	h.setupRoutes()
	return h
}

func (h *HTTPServer) setupRoutes() {
	h.mux.HandleFunc("GET /health", h.withMetrics("/health", h.handleHealth))
	h.mux.Handle("GET /metrics", h.opts.Metrics.Handler())
	h.mux.HandleFunc("GET /api/voices", h.withMetrics("/api/voices", h.requireAuth(h.handleVoices)))
	h.mux.HandleFunc("POST /api/text", h.withMetrics("/api/text", h.requireAuth(h.handleText)))
	h.mux.HandleFunc("POST /api/audio", h.withMetrics("/api/audio", h.requireAuth(h.handleAudio)))
	h.mux.HandleFunc("POST /api/image", h.withMetrics("/api/image", h.requireAuth(h.handleImage)))
	if h.opts.MCP != nil {
		h.mux.Handle("/mcp/ws", h.opts.MCP)
	}
}

func (h *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) { h.mux.ServeHTTP(w, r) }

// NewHTTPServer wraps h in an http.Server. WriteTimeout stays generous as
// narration of long texts streams for minutes.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *HTTPServer) withMetrics(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		h.opts.Metrics.ObserveHTTP(route, rec.status, time.Since(start))
		logging.Debugw("http: request", "route", route, "status", rec.status, "elapsed_ms", time.Since(start).Milliseconds())
	}
}

func (h *HTTPServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if h.opts.Password == "" {
		return next
	}
	want := []byte(h.opts.Password)
	return func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", errors.New("missing or wrong access password"))
			return
		}
		next(w, r)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, err error) {
	writeJSON(w, status, errorBody{Error: llm.Message(err), Kind: kind})
}

// classify maps pipeline errors to a status code and a stable kind label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, voice.ErrInvalidRequest), errors.Is(err, narrate.ErrUnknownVoice):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, voice.ErrNoAudioProduced):
		return http.StatusBadGateway, voice.KindNoAudioProduced.String()
	case errors.Is(err, voice.ErrDecodeFault):
		return http.StatusBadGateway, voice.KindDecodeFault.String()
	case errors.Is(err, voice.ErrTransportFault):
		return http.StatusBadGateway, voice.KindTransportFault.String()
	case source.IsInput(err), errors.Is(err, cover.ErrNoText), errors.Is(err, cover.ErrAspectRatio), errors.Is(err, cover.ErrResolution):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, source.ErrAccessDenied), errors.Is(err, source.ErrInvalidAPIKey):
		return http.StatusBadGateway, "source_error"
	case errors.Is(err, llm.ErrTransient), errors.Is(err, llm.ErrPermanent):
		return http.StatusBadGateway, "model_error"
	}
	return http.StatusBadGateway, "upstream_error"
}

func (h *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	logging.Warnw("http: request failed", "path", r.URL.Path, "status", status, "kind", kind, "err", err)
	writeError(w, status, kind, err)
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "narrator",
		"uptime_seconds": int64(time.Since(h.opts.StartedAt).Seconds()),
	})
}

func (h *HTTPServer) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"voices":        voice.Voices,
		"styles":        cover.Styles,
		"aspect_ratios": cover.AspectRatios,
	})
}

type textRequest struct {
	Method    string `json:"method"`
	Text      string `json:"text"`
	SheetURL  string `json:"sheet_url"`
	SheetName string `json:"sheet_name"`
	Cell      string `json:"cell"`
	DocURL    string `json:"doc_url"`
}

func (h *HTTPServer) handleText(w http.ResponseWriter, r *http.Request) {
	req, err := decodeTextRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.n.PrepareText(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// decodeTextRequest accepts JSON, or multipart/form-data carrying a "file"
// part for the file method.
func decodeTextRequest(w http.ResponseWriter, r *http.Request) (source.Request, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, source.MaxFileBytes+1<<20)
		if err := r.ParseMultipartForm(source.MaxFileBytes); err != nil {
			return source.Request{}, fmt.Errorf("parse multipart form: %w", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return source.Request{}, fmt.Errorf("%w: file", source.ErrMissingField)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, source.MaxFileBytes+1))
		if err != nil {
			return source.Request{}, err
		}
		return source.Request{Method: source.MethodFile, FileName: hdr.Filename, FileData: data}, nil
	}

	var body textRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		return source.Request{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	m, err := source.ParseMethod(body.Method)
	if err != nil {
		return source.Request{}, err
	}
	return source.Request{
		Method:    m,
		Text:      body.Text,
		SheetURL:  body.SheetURL,
		SheetName: body.SheetName,
		Cell:      body.Cell,
		DocURL:    body.DocURL,
	}, nil
}

type audioRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (h *HTTPServer) handleAudio(w http.ResponseWriter, r *http.Request) {
	var body audioRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	n, err := h.n.Narrate(r.Context(), body.Text, body.Voice)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	c := n.Container
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment; filename="+c.Filename())
	w.Header().Set("Content-Length", fmt.Sprint(c.Len()))
	w.Header().Set("X-Correlation-ID", n.CorrelationID)
	w.Header().Set("X-Voice", n.Voice)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.Bytes())
}

type imageRequest struct {
	Text         string `json:"text"`
	CustomPrompt string `json:"custom_prompt"`
	Style        string `json:"style"`
	AspectRatio  string `json:"aspect_ratio"`
	Resolution   string `json:"resolution"`
}

type imageResponse struct {
	Prompt   string `json:"prompt"`
	MIMEType string `json:"mime_type"`
	DataURL  string `json:"data_url"`
}

func (h *HTTPServer) handleImage(w http.ResponseWriter, r *http.Request) {
	var body imageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	img, err := h.n.Cover(r.Context(), cover.Request{
		Text:         body.Text,
		CustomPrompt: body.CustomPrompt,
		Style:        body.Style,
		AspectRatio:  body.AspectRatio,
		Resolution:   cover.Resolution(body.Resolution),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Prompt: img.Prompt, MIMEType: img.MIMEType, DataURL: img.DataURL()})
}
