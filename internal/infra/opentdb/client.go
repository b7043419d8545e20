package opentdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultBaseURL is the public Open Trivia DB endpoint.
const DefaultBaseURL = "https://opentdb.com/api.php"

// DefaultTimeout bounds one request when the caller gives no timeout.
const DefaultTimeout = 10 * time.Second

// Response codes documented by Open Trivia DB.
const (
	CodeSuccess      = 0
	CodeNoResults    = 1
	CodeInvalidParam = 2
	CodeTokenMissing = 3
	CodeTokenEmpty   = 4
	CodeRateLimit    = 5
)

// Query selects a batch of questions. Difficulty is omitted from the request when empty.
type Query struct {
	Amount     int
	Difficulty string
	Type       string
}

func (q Query) values() url.Values {
	v := url.Values{}
	v.Set("amount", strconv.Itoa(q.Amount))
	if q.Difficulty != "" {
		v.Set("difficulty", q.Difficulty)
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	return v
}

// Response mirrors the API payload.
type Response struct {
	ResponseCode int      `json:"response_code"`
	Results      []Result `json:"results"`
}

// Result is one raw question record, still HTML-encoded.
type Result struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

// Client calls the API. Identical concurrent queries share one request since the
// API rate-limits per address.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	sf      singleflight.Group
}

// NewClient builds a client; a nil httpClient falls back to a dedicated client, never http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{baseURL: baseURL, http: httpClient, timeout: timeout}
}

// Fetch performs one request. The per-attempt timeout bounds the whole round trip.
// A shared request is detached from the caller that started it, so cancelling one
// caller only releases that caller.
func (c *Client) Fetch(ctx context.Context, q Query) (Response, error) {
	endpoint := c.baseURL + "?" + q.values().Encode()
	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(endpoint, func() (interface{}, error) {
		return c.fetch(shared, endpoint)
	})
	select {
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Response{}, res.Err
		}
		return res.Val.(Response), nil
	}
}

func (c *Client) fetch(ctx context.Context, endpoint string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("request questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Response{}, fmt.Errorf("request questions: HTTP %d", resp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode questions: %w", err)
	}
	return out, nil
}
