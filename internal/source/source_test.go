package source

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(t *testing.T, h http.HandlerFunc) (*Loader, string) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	l := NewLoader("sheet-key", 0)
	l.Sheets.BaseURL = ts.URL
	l.Sheets.HTTP = ts.Client()
	l.Docs.HTTP = ts.Client()
	return l, ts.URL
}

const sheetURL = "https://docs.google.com/spreadsheets/d/abc123/edit#gid=0"

func TestSpreadsheetID(t *testing.T) {
	id, ok := SpreadsheetID(sheetURL)
	assert.True(t, ok)
	assert.Equal(t, "abc123", id)

	_, ok = SpreadsheetID("https://example.com/sheet")
	assert.False(t, ok)
}

func TestSheetCell(t *testing.T) {
	var gotPath, gotKey string
	l, _ := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		_, _ = w.Write([]byte(`{"range":"Story!B2","values":[["Once upon a time"]]}`))
	})

	text, err := l.Load(context.Background(), Request{Method: MethodSheet, SheetURL: sheetURL, SheetName: "Story", Cell: "B2"})
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time", text)
	assert.Equal(t, "/v4/spreadsheets/abc123/values/Story!B2", gotPath)
	assert.Equal(t, "sheet-key", gotKey)
}

func TestSheetErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"forbidden", http.StatusForbidden, `{}`, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrAccessDenied) }},
		{"bad key", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrInvalidAPIKey) }},
		{"other message", http.StatusNotFound, `{"error":{"code":404,"message":"Requested entity was not found."}}`,
			func(t *testing.T, err error) { assert.EqualError(t, err, "sheets: Requested entity was not found.") }},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`,
			func(t *testing.T, err error) { assert.EqualError(t, err, "sheets: HTTP status 502") }},
		{"empty cell", http.StatusOK, `{"range":"Story!B2"}`, func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrEmptyCell) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, _ := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := l.Load(context.Background(), Request{Method: MethodSheet, SheetURL: sheetURL, SheetName: "Story", Cell: "B2"})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestSheetValidation(t *testing.T) {
	l := NewLoader("k", 0)
	_, err := l.Load(context.Background(), Request{Method: MethodSheet, SheetURL: sheetURL, SheetName: "Story"})
	assert.ErrorIs(t, err, ErrMissingField)
	_, err = l.Load(context.Background(), Request{Method: MethodSheet, SheetURL: "https://example.com/x", SheetName: "S", Cell: "A1"})
	assert.ErrorIs(t, err, ErrInvalidSheetURL)
	assert.True(t, IsInput(err))
}

const publishedPage = `<!DOCTYPE html><html><head><title>Doc</title><style>p{color:red}</style></head>
<body><div id="banner">Published using Google Docs</div>
<div id="contents"><h1>Title</h1><p>First   line.</p><script>var x = 1;</script><p>Second <b>bold</b> line.</p></div>
</body></html>`

func TestDocText(t *testing.T) {
	l, base := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(publishedPage))
	})
	text, err := l.Load(context.Background(), Request{Method: MethodDoc, DocURL: base + "/document/d/e/xyz/pub"})
	require.NoError(t, err)
	assert.Equal(t, "Title\nFirst line.\nSecond bold line.", text)
}

func TestDocRequiresPublishedLink(t *testing.T) {
	l := NewLoader("", 0)
	_, err := l.Load(context.Background(), Request{Method: MethodDoc, DocURL: "https://docs.google.com/document/d/xyz/edit"})
	assert.ErrorIs(t, err, ErrNotPublished)
}

func TestDocEmpty(t *testing.T) {
	l, base := newTestLoader(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="contents">  </div></body></html>`))
	})
	_, err := l.Load(context.Background(), Request{Method: MethodDoc, DocURL: base + "/pub"})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestExtractHTMLTextFallsBackToBody(t *testing.T) {
	text, err := ExtractHTMLText(strings.NewReader(`<html><body><p>only body</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "only body", text)
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFileText(t *testing.T) {
	text, err := FileText("story.TXT", []byte("\ufeffhello file"))
	require.NoError(t, err)
	assert.Equal(t, "hello file", text)

	docx := buildDocx(t, `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>
<w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:tab/><w:t xml:space="preserve">world</w:t></w:r></w:p>
<w:p><w:r><w:t>Line</w:t><w:br/><w:t>two</w:t></w:r></w:p>
</w:body></w:document>`)
	text, err = FileText("story.docx", docx)
	require.NoError(t, err)
	assert.Equal(t, "Hello\tworld\n\nLine\ntwo", text)
}

func TestFileTextErrors(t *testing.T) {
	_, err := FileText("a.pdf", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)
	_, err = FileText("a.txt", make([]byte, MaxFileBytes+1))
	assert.ErrorIs(t, err, ErrFileTooLarge)
	_, err = FileText("a.txt", []byte(" \n "))
	assert.ErrorIs(t, err, ErrEmptyFile)
	_, err = FileText("a.docx", []byte("not a zip"))
	assert.ErrorIs(t, err, ErrUnreadableFile)
	assert.True(t, IsInput(err))
	_, err = FileText("latin1.txt", []byte{0xff, 0xfe, 'h', 'i', 0xe9})
	assert.ErrorIs(t, err, ErrUnreadableFile)
	assert.True(t, IsInput(err))
}

func TestDirectText(t *testing.T) {
	text, err := DirectText("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = DirectText(strings.Repeat("é", MaxDirectChars))
	assert.NoError(t, err)
	_, err = DirectText(strings.Repeat("a", MaxDirectChars+1))
	assert.ErrorIs(t, err, ErrTooLong)
	_, err = DirectText("   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Sheet ")
	require.NoError(t, err)
	assert.Equal(t, MethodSheet, m)
	m, err = ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, m)
	_, err = ParseMethod("fax")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}
