// Package source fetches the raw text that is later rewritten and narrated.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/narration-lab/internal/logging"
)

// Method selects where the text comes from.
type Method string

const (
	MethodSheet  Method = "sheet"
	MethodDoc    Method = "doc"
	MethodFile   Method = "file"
	MethodDirect Method = "direct"
)

// ParseMethod returns the Method named by s.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodSheet, MethodDoc, MethodFile, MethodDirect:
		return m, nil
	case "":
		return MethodDirect, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

var (
	ErrUnknownMethod   = errors.New("unknown source method")
	ErrMissingField    = errors.New("required field is missing")
	ErrInvalidSheetURL = errors.New("spreadsheet url does not contain a document id")
	ErrNotPublished    = errors.New("document url must be a published-to-web link")
	ErrAccessDenied    = errors.New("access denied: the spreadsheet must be shared publicly and the api key must have the Sheets API enabled")
	ErrInvalidAPIKey   = errors.New("api key is not valid for the Sheets API")
	ErrUnsupportedFile = errors.New("unsupported file type, use .txt or .docx")
	ErrFileTooLarge    = errors.New("file exceeds the 10 MiB limit")
	ErrUnreadableFile  = errors.New("file could not be read as UTF-8 text or a .docx document")
	ErrTooLong         = errors.New("text exceeds the 10000 character limit")
	ErrEmptyCell       = errors.New("spreadsheet cell is empty")
	ErrEmptyDocument   = errors.New("published document has no text")
	ErrEmptyFile       = errors.New("file contains no text")
	ErrEmptyText       = errors.New("text is empty")
)

// IsInput reports whether err was caused by the request rather than by an
// upstream service.
func IsInput(err error) bool {
	for _, target := range []error{
		ErrUnknownMethod, ErrMissingField, ErrInvalidSheetURL, ErrNotPublished,
		ErrUnsupportedFile, ErrFileTooLarge, ErrUnreadableFile, ErrTooLong,
		ErrEmptyCell, ErrEmptyDocument, ErrEmptyFile, ErrEmptyText,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Request describes one text fetch. Only the fields of the chosen Method
// are read.
type Request struct {
	Method Method

	SheetURL  string
	SheetName string
	Cell      string

	DocURL string

	FileName string
	FileData []byte

	Text string
}

// Loader dispatches a Request to the matching source.
type Loader struct {
	Sheets *SheetClient
	Docs   *DocClient
}

// NewLoader builds a loader sharing one HTTP client across sources.
func NewLoader(apiKey string, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout}
	return &Loader{
		Sheets: &SheetClient{BaseURL: DefaultSheetsBaseURL, APIKey: apiKey, HTTP: hc},
		Docs:   &DocClient{HTTP: hc},
	}
}

// Load returns the raw text for req.
func (l *Loader) Load(ctx context.Context, req Request) (string, error) {
	var (
		text string
		err  error
	)
	switch req.Method {
	case MethodSheet:
		text, err = l.Sheets.Cell(ctx, req.SheetURL, req.SheetName, req.Cell)
	case MethodDoc:
		text, err = l.Docs.Text(ctx, req.DocURL)
	case MethodFile:
		text, err = FileText(req.FileName, req.FileData)
	case MethodDirect, "":
		text, err = DirectText(req.Text)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
	if err != nil {
		logging.Debugw("source: load failed", "source.method", string(req.Method), "err", err)
		return "", err
	}
	logging.Debugw("source: loaded", logging.SourceFields(string(req.Method), len([]rune(text)))...)
	return text, nil
}
