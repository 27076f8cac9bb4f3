package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxFileBytes is the upload limit for file sources.
const MaxFileBytes = 10 << 20

// FileText extracts text from an uploaded .txt or .docx file.
func FileText(name string, data []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: file is required", ErrMissingField)
	}
	if len(data) > MaxFileBytes {
		return "", fmt.Errorf("%w: %.2f MiB", ErrFileTooLarge, float64(len(data))/(1<<20))
	}
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s: not valid UTF-8", ErrUnreadableFile, name)
		}
		text = strings.TrimPrefix(string(data), "\ufeff")
	case ".docx":
		text, err = docxText(data)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrUnreadableFile, name, err)
		}
	default:
		return "", ErrUnsupportedFile
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyFile
	}
	return text, nil
}

// docxText reads word/document.xml from a .docx archive and returns the
// raw text: one line per paragraph, tabs and breaks preserved.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx archive has no word/document.xml")
	}
	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("open word/document.xml: %w", err)
	}
	defer rc.Close()

	var (
		sb     strings.Builder
		inText bool
		paras  int
	)
	dec := xml.NewDecoder(io.LimitReader(rc, 4*MaxFileBytes))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse word/document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br", "cr":
				sb.WriteString("\n")
			case "p":
				if paras > 0 {
					sb.WriteString("\n\n")
				}
				paras++
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
