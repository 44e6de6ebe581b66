package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client calls the genre/suggestion service. It lives outside the
// route/schedule transaction boundary: callers dispatch it asynchronously
// and its failures are logged and swallowed, never escalated.
type Client struct {
	session *http.Client
	apiKey  string
	baseURL string
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		session: &http.Client{Timeout: 10 * time.Second},
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Enabled reports whether a service endpoint was configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Body)
}

type genreRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type genreResponse struct {
	Genre string `json:"genre"`
}

// ClassifyGenre asks the service for a genre label for one spot.
func (c *Client) ClassifyGenre(ctx context.Context, name, address string) (string, error) {
	if name == "" {
		return "", errors.New("classify genre: name must be non-empty")
	}

	body, err := json.Marshal(genreRequest{Name: name, Address: address})
	if err != nil {
		return "", fmt.Errorf("classify genre: marshal: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, c.baseURL+"/v1/genre", bytes.NewReader(body))
	})
	if err != nil {
		return "", fmt.Errorf("classify genre %q: %w", name, err)
	}
	defer resp.Body.Close()

	var out genreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("classify genre %q: decode: %w", name, err)
	}
	return out.Genre, nil
}

// Suggestion is one generated trip idea.
type Suggestion struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Reason  string  `json:"reason"`
}

type suggestRequest struct {
	Title string   `json:"title"`
	Spots []string `json:"spots"`
}

type suggestResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// GenerateSuggestions asks the service for spots that fit the itinerary.
func (c *Client) GenerateSuggestions(ctx context.Context, title string, spotNames []string) ([]Suggestion, error) {
	body, err := json.Marshal(suggestRequest{Title: title, Spots: spotNames})
	if err != nil {
		return nil, fmt.Errorf("generate suggestions: marshal: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, c.baseURL+"/v1/suggestions", bytes.NewReader(body))
	})
	if err != nil {
		return nil, fmt.Errorf("generate suggestions for %q: %w", title, err)
	}
	defer resp.Body.Close()

	var out suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("generate suggestions for %q: decode: %w", title, err)
	}
	return out.Suggestions, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries transient failures (network errors, 429/5xx
// responses) using exponential backoff while respecting context
// cancellation. The retry budget is bounded; after it is exhausted the
// last error is returned for the caller to log and drop.
func (c *Client) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	const maxAttempts = 4
	backoff := 200 * time.Millisecond

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}

		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
