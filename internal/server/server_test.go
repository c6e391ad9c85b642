package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/prompts"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/pkg/api"
)

type mockAssistant struct {
	mock.Mock
}

func (m *mockAssistant) Enhance(ctx context.Context, prompt, style string, percent int) (string, error) {
	args := m.Called(ctx, prompt, style, percent)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) Improve(ctx context.Context, prompt, desc string, percent int) (string, error) {
	args := m.Called(ctx, prompt, desc, percent)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) Alternatives(ctx context.Context, prompt, variation string) (string, error) {
	args := m.Called(ctx, prompt, variation)
	return args.String(0), args.Error(1)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("ZEROTRACE_DATA_DIR", t.TempDir())
	return config.DefaultConfig()
}

func setupServer(t *testing.T, a *mockAssistant) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if a == nil {
		return New(testConfig(t), nil).Handler()
	}
	return New(testConfig(t), a).Handler()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorDetail {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealth(t *testing.T) {
	h := setupServer(t, &mockAssistant{})
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	a := new(mockAssistant)
	a.On("Alternatives", mock.Anything, "forest", "").Return("a, b, c", nil)
	h := setupServer(t, a)

	req, _ := http.NewRequest(http.MethodPost, "/v1/prompts/alternatives", bytes.NewBufferString(`{"prompt":"forest"}`))
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	var resp api.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "a, b, c", resp.Result)
	assert.Equal(t, "req-123", resp.RequestID)
	a.AssertExpectations(t)
}

func TestEnhance(t *testing.T) {
	a := new(mockAssistant)
	a.On("Enhance", mock.Anything, "cat", "anime", 85).Return("orange tabby cat, anime style", nil)
	h := setupServer(t, a)

	w := postJSON(t, h, "/v1/prompts/enhance", api.EnhanceRequest{Prompt: "cat", Style: "anime", Percentage: 85})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "orange tabby cat, anime style", resp.Result)
	assert.Equal(t, "maximum", resp.Level)
	a.AssertExpectations(t)
}

func TestImproveDefaultLevel(t *testing.T) {
	a := new(mockAssistant)
	a.On("Improve", mock.Anything, "castle", "blurry", 0).Return("1. sharp castle", nil)
	h := setupServer(t, a)

	w := postJSON(t, h, "/v1/prompts/improve", api.ImproveRequest{Prompt: "castle", ImageDescription: "blurry"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp api.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "moderate", resp.Level)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty prompt", fmt.Errorf("%w: please enter a prompt to enhance", prompts.ErrEmptyPrompt), http.StatusBadRequest, "empty_prompt"},
		{"rate limited", &prompts.RateLimitError{Wait: 20 * time.Second}, http.StatusTooManyRequests, "rate_limited"},
		{"upstream", &prompts.APIError{StatusCode: 401, Body: "bad key"}, http.StatusBadGateway, "upstream_failed"},
		{"malformed", prompts.ErrMalformedResponse, http.StatusBadGateway, "upstream_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := new(mockAssistant)
			a.On("Enhance", mock.Anything, "x", "", 0).Return("", tt.err)
			h := setupServer(t, a)

			w := postJSON(t, h, "/v1/prompts/enhance", api.EnhanceRequest{Prompt: "x"})

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
			if tt.status == http.StatusTooManyRequests {
				assert.Equal(t, "20", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestInvalidJSON(t *testing.T) {
	h := setupServer(t, new(mockAssistant))
	req, _ := http.NewRequest(http.MethodPost, "/v1/prompts/enhance", bytes.NewBufferString(`{"prompt":`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_json", decodeError(t, w).Code)
}

func TestAssistantUnavailable(t *testing.T) {
	h := setupServer(t, nil)
	w := postJSON(t, h, "/v1/prompts/enhance", api.EnhanceRequest{Prompt: "cat"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "assistant_unavailable", decodeError(t, w).Code)
}

func TestAssistantUnavailableQuotesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(testConfig(t), nil, WithAssistantError(prompts.ErrAPIKeyEmpty)).Handler()
	w := postJSON(t, h, "/v1/prompts/improve", api.ImproveRequest{Prompt: "cat"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	detail := decodeError(t, w)
	assert.Contains(t, detail.Message, prompts.ErrAPIKeyEmpty.Error())
	assert.NotContains(t, detail.Message, prompts.ErrAPIKeyMissing.Error())
}

func TestWebUIStatus(t *testing.T) {
	webui := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer webui.Close()
	u, _ := url.Parse(webui.URL)
	port, _ := strconv.Atoi(u.Port())

	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.WebUI.Port = port
	h := New(cfg, nil).Handler()

	req, _ := http.NewRequest(http.MethodGet, "/api/webui/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var status api.WebUIStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.Reachable)
	assert.Equal(t, webui.URL, status.URL)

	webui.Close()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Reachable)
	assert.NotEmpty(t, status.Error)
}

func TestWebUIStatusAutoPort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.WebUI.Port = 0
	h := New(cfg, nil).Handler()

	req, _ := http.NewRequest(http.MethodGet, "/api/webui/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var status api.WebUIStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Reachable)
	assert.Empty(t, status.URL)
	assert.Contains(t, status.Error, "fixed port")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(testConfig(t), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
