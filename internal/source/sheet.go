package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const DefaultSheetsBaseURL = "https://sheets.googleapis.com"

var spreadsheetID = regexp.MustCompile(`/d/(.*?)/`)

// SpreadsheetID extracts the document id from a Google Sheets URL.
func SpreadsheetID(rawurl string) (string, bool) {
	m := spreadsheetID.FindStringSubmatch(rawurl)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// SheetClient reads single cells through the Sheets v4 values endpoint.
type SheetClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

type sheetValues struct {
	Values [][]string `json:"values"`
}

type sheetError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Cell returns the value at sheetName!cell of the spreadsheet at rawurl.
func (c *SheetClient) Cell(ctx context.Context, rawurl, sheetName, cell string) (string, error) {
	if strings.TrimSpace(rawurl) == "" || strings.TrimSpace(sheetName) == "" || strings.TrimSpace(cell) == "" {
		return "", fmt.Errorf("%w: sheet url, sheet name and cell are all required", ErrMissingField)
	}
	id, ok := SpreadsheetID(rawurl)
	if !ok {
		return "", ErrInvalidSheetURL
	}
	rng := sheetName + "!" + cell
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(id), url.PathEscape(rng), url.QueryEscape(c.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("sheets request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read sheets response: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return "", ErrAccessDenied
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var se sheetError
		if json.Unmarshal(body, &se) == nil && se.Error.Message != "" {
			msg := se.Error.Message
			if strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API_KEY_INVALID") {
				return "", ErrInvalidAPIKey
			}
			return "", fmt.Errorf("sheets: %s", msg)
		}
		return "", fmt.Errorf("sheets: HTTP status %d", resp.StatusCode)
	}

	var v sheetValues
	if err := json.Unmarshal(body, &v); err != nil {
		return "", fmt.Errorf("decode sheets response: %w", err)
	}
	if len(v.Values) == 0 || len(v.Values[0]) == 0 || strings.TrimSpace(v.Values[0][0]) == "" {
		return "", ErrEmptyCell
	}
	return v.Values[0][0], nil
}
