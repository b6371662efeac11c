// Package news turns top-headline responses from NewsAPI into post-ready headlines.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/newstweet/internal/logger"
)

// SourceSeparator splits a title from its trailing source attribution.
const SourceSeparator = " - "

var (
	ErrTransport    = errors.New("news request failed")
	ErrMalformed    = errors.New("news response is not valid JSON")
	ErrMissingTitle = errors.New("news article without title")
)

// StatusError reports a non-2xx answer from the news API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("news API status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("news API status %d", e.StatusCode)
}

// Normalize strips a trailing " - <source>" suffix, cutting at the last separator.
func Normalize(title string) string {
	if i := strings.LastIndex(title, SourceSeparator); i >= 0 {
		return title[:i]
	}
	return title
}

// NormalizeAll applies Normalize to every title, keeping order.
func NormalizeAll(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		out = append(out, Normalize(t))
	}
	return out
}

type Client struct {
	baseURL    string
	apiKey     string
	language   string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey, language string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		language:   language,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string {
	return "NewsAPI"
}

// Headlines fetches top headlines once and returns them normalized, in API order.
// Any article without a title rejects the whole batch.
func (c *Client) Headlines(ctx context.Context) ([]string, error) {
	titles, err := c.fetchTitles(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeAll(titles), nil
}

func (c *Client) topHeadlinesURL() string {
	q := url.Values{}
	q.Set("language", c.language)
	q.Set("apiKey", c.apiKey)
	return c.baseURL + "/v2/top-headlines?" + q.Encode()
}

func (c *Client) fetchTitles(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.topHeadlinesURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build news request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("failed to close news response body", "error", err)
		}
	}(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{StatusCode: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil {
			serr.Message = apiErr.Message
		}
		return nil, serr
	}

	var payload topHeadlinesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	titles := make([]string, 0, len(payload.Articles))
	for i, a := range payload.Articles {
		if a.Title == nil {
			return nil, fmt.Errorf("%w: article %d", ErrMissingTitle, i)
		}
		titles = append(titles, *a.Title)
	}

	logger.Info("fetched news", "source", c.Name(), "language", c.language, "articles", len(titles))
	return titles, nil
}

type topHeadlinesResponse struct {
	Status   string    `json:"status"`
	Articles []article `json:"articles"`
}

type article struct {
	Title *string `json:"title"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
