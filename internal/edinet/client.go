package edinet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://disclosure.edinet-fsa.go.jp/api/v2"
	defaultTimeout = 60 * time.Second

	// Metadata-only listing and CSV archive, per the EDINET v2 "type"
	// parameter.
	listTypeMetadata = "2"
	docTypeCSV       = "5"

	// Cooperative pacing between outbound calls. Not a retry/backoff
	// mechanism: a failed request is skipped, never retried in-run.
	listInterval     = 1 * time.Second
	downloadInterval = 500 * time.Millisecond
)

// Client is a paced client for the EDINET v2 document API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	listPacer  *pacer
	docPacer   *pacer
}

// pacer enforces a minimum interval between consecutive calls.
type pacer struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval}
}

func (p *pacer) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.lastCall)
	if elapsed < p.interval {
		time.Sleep(p.interval - elapsed)
	}
	p.lastCall = time.Now()
}

// NewClient creates a new EDINET API client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		listPacer: newPacer(listInterval),
		docPacer:  newPacer(downloadInterval),
	}
}

// ListDocuments fetches the document listing for one calendar date
// (metadata only). A response without a results collection means EDINET has
// no filings for that date; callers see Results == nil.
func (c *Client) ListDocuments(ctx context.Context, date time.Time) (*ListResponse, error) {
	u, err := url.Parse(c.baseURL + "/documents.json")
	if err != nil {
		return nil, fmt.Errorf("building listing URL: %w", err)
	}

	q := u.Query()
	q.Set("date", date.Format("2006-01-02"))
	q.Set("type", listTypeMetadata)
	q.Set("Subscription-Key", c.apiKey)
	u.RawQuery = q.Encode()

	c.listPacer.Wait()

	body, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var resp ListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing listing response: %w", err)
	}

	return &resp, nil
}

// ListDocumentsRaw is ListDocuments without the JSON decode; used to fill the
// day cache with the verbatim response.
func (c *Client) ListDocumentsRaw(ctx context.Context, date time.Time) ([]byte, error) {
	u, err := url.Parse(c.baseURL + "/documents.json")
	if err != nil {
		return nil, fmt.Errorf("building listing URL: %w", err)
	}

	q := u.Query()
	q.Set("date", date.Format("2006-01-02"))
	q.Set("type", listTypeMetadata)
	q.Set("Subscription-Key", c.apiKey)
	u.RawQuery = q.Encode()

	c.listPacer.Wait()

	return c.doRequest(ctx, u.String())
}

// DownloadCSV fetches the zipped CSV rendition of one document. A nil slice
// with a nil error never happens: unavailability surfaces as an error the
// caller logs and skips.
func (c *Client) DownloadCSV(ctx context.Context, docID string) ([]byte, error) {
	u, err := url.Parse(c.baseURL + "/documents/" + docID)
	if err != nil {
		return nil, fmt.Errorf("building download URL: %w", err)
	}

	q := u.Query()
	q.Set("type", docTypeCSV)
	q.Set("Subscription-Key", c.apiKey)
	u.RawQuery = q.Encode()

	c.docPacer.Wait()

	return c.doRequest(ctx, u.String())
}

func (c *Client) doRequest(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429)")
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", httpResp.StatusCode, truncateBody(body))
	}

	return body, nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
