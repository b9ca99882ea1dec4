// Package upstream wraps the external data sources behind the fetch contract
// consumed by floodgate.FetchPolicy: each call returns a value or a
// classified error, and owns its own timeout policy.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/yourusername/floodgate/pkg/floodgate"
)

const defaultTimeout = 10 * time.Second

// Row is one spreadsheet row keyed by its header cell.
type Row map[string]string

// SheetsClient reads worksheet values from the spreadsheet API backing the
// IoT sensor feed. Interpretation of the rows is left to callers.
type SheetsClient struct {
	baseURL string
	client  *http.Client
}

// NewSheetsClient creates a client authenticated by the given token source.
func NewSheetsClient(ctx context.Context, baseURL string, ts oauth2.TokenSource) *SheetsClient {
	client := oauth2.NewClient(ctx, ts)
	client.Timeout = defaultTimeout

	return &SheetsClient{
		baseURL: baseURL,
		client:  client,
	}
}

// FetchRows returns the worksheet's rows, using the first row as headers.
// Throttling responses (429, quota exhaustion) come back as throttled
// upstream errors so the caching layer can serve stale data instead.
func (c *SheetsClient) FetchRows(ctx context.Context, spreadsheetID, worksheet string) ([]Row, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(worksheet))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, floodgate.Hard("build spreadsheet request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, floodgate.Hard("spreadsheet request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, floodgate.Hard("read spreadsheet response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode, body, "spreadsheet fetch")
	}

	var payload struct {
		Values [][]string `json:"values"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, floodgate.Hard("decode spreadsheet response", err)
	}

	return rowsFromValues(payload.Values), nil
}

// rowsFromValues maps value rows onto the header row. Short rows leave the
// trailing columns absent rather than empty.
func rowsFromValues(values [][]string) []Row {
	if len(values) < 2 {
		return nil
	}

	headers := values[0]
	rows := make([]Row, 0, len(values)-1)
	for _, cells := range values[1:] {
		row := make(Row, len(headers))
		for i, header := range headers {
			if i < len(cells) {
				row[header] = cells[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// classifyStatus maps an HTTP failure into the upstream error taxonomy.
func classifyStatus(status int, body []byte, op string) error {
	message := fmt.Sprintf("%s: status %d: %s", op, status, truncate(body, 256))
	if status == http.StatusTooManyRequests {
		return floodgate.Throttled(message, nil)
	}
	return floodgate.Hard(message, nil)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
