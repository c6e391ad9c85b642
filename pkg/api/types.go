package api

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest matches the OpenAI chat completions request schema.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse matches the OpenAI chat completions response schema.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EnhanceRequest is the body of POST /v1/prompts/enhance.
type EnhanceRequest struct {
	Prompt     string `json:"prompt"`
	Style      string `json:"style,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

// ImproveRequest is the body of POST /v1/prompts/improve.
type ImproveRequest struct {
	Prompt           string `json:"prompt"`
	ImageDescription string `json:"image_description,omitempty"`
	Percentage       int    `json:"percentage,omitempty"`
}

// AlternativesRequest is the body of POST /v1/prompts/alternatives.
type AlternativesRequest struct {
	Prompt    string `json:"prompt"`
	Variation string `json:"variation,omitempty"`
}

// PromptResponse is returned by every prompt assistant endpoint.
type PromptResponse struct {
	Result    string `json:"result"`
	Level     string `json:"level,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// WebUIStatus is the response for GET /api/webui/status.
type WebUIStatus struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }
