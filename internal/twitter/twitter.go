package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/deusflow/newstweet/internal/logger"
	"github.com/deusflow/newstweet/internal/ratelimit"
)

// Credentials are the two OAuth 1.0a key/secret pairs of the posting account.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// APIError is a non-2xx answer of the X API.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Title + ": " + e.Detail)
	msg = strings.Trim(msg, ": ")
	if msg == "" {
		return fmt.Sprintf("twitter API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("twitter API error: status %d: %s", e.StatusCode, msg)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	waiter     *ratelimit.Waiter
}

// NewClient returns a client whose requests are signed with creds. Rate-limited
// calls are waited out up to maxWaits times.
func NewClient(baseURL string, creds Credentials, timeout time.Duration, maxWaits int) *Client {
	config := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)

	base := &http.Client{Timeout: timeout}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)

	// oauth1 keeps only the transport of base
	httpClient := config.Client(ctx, token)
	httpClient.Timeout = timeout

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		waiter:     ratelimit.NewWaiter(maxWaits),
	}
}

// PostText creates one post with text as its only content and returns its id.
func (c *Client) PostText(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(createTweetRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("error make JSON: %w", err)
	}

	resp, err := c.waiter.Do(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/tweets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.httpClient.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("error HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read twitter response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", parseAPIError(resp.StatusCode, data)
	}

	var created createTweetResponse
	if err := json.Unmarshal(data, &created); err != nil {
		return "", fmt.Errorf("decode twitter response: %w", err)
	}

	logger.Info("tweet posted", "id", created.Data.ID)
	return created.Data.ID, nil
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload errorResponse
	if json.Unmarshal(data, &payload) != nil {
		return apiErr
	}
	apiErr.Title = payload.Title
	apiErr.Detail = payload.Detail
	if apiErr.Detail == "" && len(payload.Errors) > 0 {
		apiErr.Detail = payload.Errors[0].Message
	}
	return apiErr
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type errorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}
