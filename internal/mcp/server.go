// Package mcp exposes the narrator pipelines as MCP tools and provides a
// small client used by the CLI.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/narration-lab/internal/cover"
	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/narrate"
	"github.com/narration-lab/internal/source"
	"github.com/narration-lab/llm"
)

// Narrator is what the tools call into; *narrate.Service implements it.
type Narrator interface {
	PrepareText(ctx context.Context, req source.Request) (narrate.Prepared, error)
	Narrate(ctx context.Context, text, voice string) (*narrate.Narration, error)
	Cover(ctx context.Context, req cover.Request) (*cover.Image, error)
}

type prepareArgs struct {
	Method    string `json:"method,omitempty" jsonschema:"one of sheet, doc, file, direct (default direct)"`
	Text      string `json:"text,omitempty" jsonschema:"text for the direct method"`
	SheetURL  string `json:"sheet_url,omitempty" jsonschema:"Google Sheets URL"`
	SheetName string `json:"sheet_name,omitempty" jsonschema:"sheet (tab) name"`
	Cell      string `json:"cell,omitempty" jsonschema:"cell reference such as B2"`
	DocURL    string `json:"doc_url,omitempty" jsonschema:"published-to-web Google Docs URL"`
	FileName  string `json:"file_name,omitempty" jsonschema:"uploaded file name (.txt or .docx)"`
	FileData  string `json:"file_data,omitempty" jsonschema:"base64 file contents"`
}

type speechArgs struct {
	Text  string `json:"text" jsonschema:"narration-ready text"`
	Voice string `json:"voice,omitempty" jsonschema:"Gemini prebuilt voice name"`
}

type coverArgs struct {
	Text         string `json:"text,omitempty" jsonschema:"text the cover is inspired by"`
	CustomPrompt string `json:"custom_prompt,omitempty" jsonschema:"used instead of text when set"`
	Style        string `json:"style,omitempty" jsonschema:"art style label"`
	AspectRatio  string `json:"aspect_ratio,omitempty" jsonschema:"1:1, 16:9, 9:16, 4:3 or 3:4"`
	Resolution   string `json:"resolution,omitempty" jsonschema:"standard, hd or 4k"`
}

func toolError(err error) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		IsError: true,
		Content: []sdk.Content{&sdk.TextContent{Text: llm.Message(err)}},
	}
}

// NewServer registers the narrator tools on a fresh MCP server.
func NewServer(n Narrator, version string) *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{Name: "narrator", Version: version}, nil)

	sdk.AddTool(server, &sdk.Tool{
		Name:        "prepare_text",
		Description: "Load text from a source and rewrite it for narration",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args prepareArgs) (*sdk.CallToolResult, any, error) {
		sr, err := sourceRequest(args)
		if err != nil {
			return toolError(err), nil, nil
		}
		p, err := n.PrepareText(ctx, sr)
		if err != nil {
			return toolError(err), nil, nil
		}
		b, _ := json.Marshal(p)
		return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(b)}}}, nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        "synthesize_speech",
		Description: "Narrate text with a Gemini voice and return a 24 kHz mono WAV",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args speechArgs) (*sdk.CallToolResult, any, error) {
		nar, err := n.Narrate(ctx, args.Text, args.Voice)
		if err != nil {
			return toolError(err), nil, nil
		}
		c := nar.Container
		return &sdk.CallToolResult{Content: []sdk.Content{
			&sdk.AudioContent{Data: c.Bytes(), MIMEType: "audio/wav"},
			&sdk.TextContent{Text: fmt.Sprintf("%s voice=%s duration=%s correlation_id=%s", c.Filename(), nar.Voice, c.Duration(), nar.CorrelationID)},
		}}, nil, nil
	})

	sdk.AddTool(server, &sdk.Tool{
		Name:        "generate_cover",
		Description: "Generate a cover image inspired by text or a custom prompt",
	}, func(ctx context.Context, req *sdk.CallToolRequest, args coverArgs) (*sdk.CallToolResult, any, error) {
		img, err := n.Cover(ctx, cover.Request{
			Text:         args.Text,
			CustomPrompt: args.CustomPrompt,
			Style:        args.Style,
			AspectRatio:  args.AspectRatio,
			Resolution:   cover.Resolution(args.Resolution),
		})
		if err != nil {
			return toolError(err), nil, nil
		}
		return &sdk.CallToolResult{Content: []sdk.Content{
			&sdk.ImageContent{Data: img.Data, MIMEType: img.MIMEType},
			&sdk.TextContent{Text: img.Prompt},
		}}, nil, nil
	})
	return server
}

func sourceRequest(args prepareArgs) (source.Request, error) {
	m, err := source.ParseMethod(args.Method)
	if err != nil {
		return source.Request{}, err
	}
	req := source.Request{
		Method:    m,
		Text:      args.Text,
		SheetURL:  args.SheetURL,
		SheetName: args.SheetName,
		Cell:      args.Cell,
		DocURL:    args.DocURL,
		FileName:  args.FileName,
	}
	if args.FileData != "" {
		req.FileData, err = base64.StdEncoding.DecodeString(args.FileData)
		if err != nil {
			return source.Request{}, fmt.Errorf("file_data is not valid base64: %w", err)
		}
	}
	return req, nil
}

// WebSocketHandler accepts MCP sessions over websocket. Each connection
// gets its own server session that lives until the client disconnects.
func WebSocketHandler(server *sdk.Server) http.HandlerFunc {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warnw("mcp: ws upgrade failed", "err", err)
			return
		}
		go func() {
			session, err := server.Connect(context.Background(), NewWebSocketTransport(conn), nil)
			if err != nil {
				logging.Warnw("mcp: server connect error", "err", err)
				_ = conn.Close()
				return
			}
			if err := session.Wait(); err != nil {
				logging.Debugw("mcp: session ended with error", "err", err)
			} else {
				logging.Debugw("mcp: session ended")
			}
		}()
	}
}

// ServeStdio runs server over stdin/stdout until the client goes away.
func ServeStdio(ctx context.Context, server *sdk.Server) error {
	return server.Run(ctx, &sdk.StdioTransport{})
}
