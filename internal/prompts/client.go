package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/pkg/api"
)

// ErrRateLimited is matched by errors.Is on a *RateLimitError.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError is returned when every attempt was answered with 429.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, please wait %d seconds and try again", int(e.Wait.Seconds()))
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// APIError is a non-retryable error status from the chat completions endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai returned %d: %s", e.StatusCode, e.Body)
}

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	MinInterval time.Duration // minimum spacing between attempts; 0 disables pacing
	MaxAttempts int
	Timeout     time.Duration

	// Backoff overrides the wait between attempts. Nil uses Backoff.
	Backoff retryablehttp.Backoff
}

// Client is an HTTP client for the OpenAI chat completions API.
// It is safe for concurrent use.
type Client struct {
	baseURL     string
	apiKey      string
	maxAttempts int
	httpClient  *retryablehttp.Client
}

// NewClient creates a Client from cc.
func NewClient(cc ClientConfig) *Client {
	attempts := cc.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	limit := rate.Inf
	if cc.MinInterval > 0 {
		limit = rate.Every(cc.MinInterval)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Timeout:   cc.Timeout,
		Transport: &pacedTransport{next: http.DefaultTransport, limiter: rate.NewLimiter(limit, 1)},
	}
	rc.RetryMax = attempts - 1
	rc.CheckRetry = retryPolicy
	rc.Backoff = Backoff
	if cc.Backoff != nil {
		rc.Backoff = cc.Backoff
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logging.Leveled{Entry: logging.Component("openai")}

	return &Client{
		baseURL:     cc.BaseURL,
		apiKey:      cc.APIKey,
		maxAttempts: attempts,
		httpClient:  rc,
	}
}

// RateLimitWait is the wait after the attemptNum-th (0-based) 429 response.
func RateLimitWait(attemptNum int) time.Duration {
	secs := math.Min(60, math.Pow(2, float64(attemptNum))*5)
	return time.Duration(secs) * time.Second
}

// Backoff waits RateLimitWait after a 429 and 2^attemptNum seconds after
// anything else.
func Backoff(_, _ time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return RateLimitWait(attemptNum)
	}
	return time.Duration(1<<uint(attemptNum)) * time.Second
}

func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

// ChatCompletion sends a non-streaming chat completion request.
func (c *Client) ChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error connecting to ChatGPT API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, &RateLimitError{Wait: RateLimitWait(c.maxAttempts - 1)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result api.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

// pacedTransport holds every request until the limiter admits it.
type pacedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}
