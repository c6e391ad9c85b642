// Package prompts rewrites image generation prompts through the OpenAI chat
// completions API.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/pkg/api"
)

var (
	// ErrEmptyPrompt is returned when the input prompt is blank.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrMalformedResponse is returned when the completion carries no choice.
	ErrMalformedResponse = errors.New("error parsing ChatGPT response")
)

// Default style and variation used when the caller leaves them blank.
const (
	DefaultStyle     = "photorealistic"
	DefaultVariation = "creative"
)

const enhanceSystem = `You are an expert AI image generation prompt engineer. Your task is to enhance user prompts to create better, more detailed, and more effective prompts for AI image generation.

Enhancement Level: %[1]s (%[2]d%%)
Detail Multiplier: %[3]s

Guidelines:
1. Add specific details about lighting, composition, and mood
2. Include technical photography terms when appropriate
3. Specify art style, medium, and quality descriptors
4. Add environmental and atmospheric details
5. Keep the core concept but make it more vivid and descriptive
6. Use comma-separated tags for better AI model understanding
7. Enhancement intensity: %[1]s - aim for %[3]s more detailed than the original
8. Style preference: %[4]s

Examples:
- "cat" → "beautiful orange tabby cat, sitting gracefully on a windowsill, soft natural lighting, detailed fur texture, photorealistic, high quality, 8K resolution"
- "landscape" → "breathtaking mountain landscape at sunset, golden hour lighting, dramatic clouds, lush green valleys, photorealistic, cinematic composition, high detail"

Enhance this prompt with %[1]s intensity while keeping the original intent:`

const enhanceUser = "Original prompt: '%s'\n\nPlease enhance this prompt for better AI image generation results."

const improveSystem = `You are an expert AI image generation prompt engineer. Your task is to analyze the original prompt and suggest improvements for generating a better version of the image.

Enhancement Level: %[1]s (%[2]d%%)
Improvement Focus: %[3]s

Guidelines:
1. Identify what might be missing from the original prompt
2. Suggest better lighting, composition, or style descriptions
3. Add technical details that could improve quality
4. Consider different artistic approaches or perspectives
5. Suggest specific improvements for better visual impact
6. Keep the core concept but enhance the execution
7. Provide 2-3 alternative improved prompts
8. Enhancement intensity: %[1]s - focus on %[3]s

Focus on making the prompt more effective for AI image generation with %[1]s intensity.`

const improveUser = `Original prompt: '%s'
Generated image description: '%s'

Please suggest improvements to create a better version of this image. Provide specific, actionable improvements to the prompt.`

const alternativesSystem = `You are a creative AI image generation prompt engineer. Create alternative prompts that explore different artistic interpretations of the original concept.

Guidelines:
1. Keep the core subject/concept
2. Explore different artistic styles, moods, or perspectives
3. Vary lighting, composition, and atmosphere
4. Consider different art movements or techniques
5. Create prompts that would generate visually distinct but related images
6. Variation type: %s

Provide 3 creative alternative prompts that explore different artistic directions.`

const alternativesUser = "Original prompt: '%s'\n\nCreate creative alternative prompts for different artistic interpretations."

// Completer sends chat completion requests. *Client implements it.
type Completer interface {
	ChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error)
}

// Assistant builds the prompt engineering requests and extracts the answer.
type Assistant struct {
	client Completer
	model  string
}

// NewAssistant creates an Assistant that asks model through client.
func NewAssistant(client Completer, model string) *Assistant {
	if model == "" {
		model = "gpt-3.5-turbo"
	}
	return &Assistant{client: client, model: model}
}

// Enhance rewrites prompt into a more detailed one in the given style.
// A zero percent means DefaultPercent.
func (a *Assistant) Enhance(ctx context.Context, prompt, style string, percent int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: please enter a prompt to enhance", ErrEmptyPrompt)
	}
	if style == "" {
		style = DefaultStyle
	}
	in := IntensityFor(orDefault(percent))

	return a.complete(ctx, "enhance", 500, 0.7,
		fmt.Sprintf(enhanceSystem, in.Level, in.Percent, in.DetailMultiplier, style),
		fmt.Sprintf(enhanceUser, prompt))
}

// Improve suggests better versions of prompt given what it produced.
func (a *Assistant) Improve(ctx context.Context, prompt, imageDescription string, percent int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: please provide the original prompt to improve", ErrEmptyPrompt)
	}
	in := IntensityFor(orDefault(percent))

	return a.complete(ctx, "improve", 600, 0.8,
		fmt.Sprintf(improveSystem, in.Level, in.Percent, in.Focus),
		fmt.Sprintf(improveUser, prompt, imageDescription))
}

// Alternatives proposes three artistic variations of prompt.
func (a *Assistant) Alternatives(ctx context.Context, prompt, variation string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: please provide a prompt to create variations", ErrEmptyPrompt)
	}
	if variation == "" {
		variation = DefaultVariation
	}

	return a.complete(ctx, "alternatives", 500, 0.9,
		fmt.Sprintf(alternativesSystem, variation),
		fmt.Sprintf(alternativesUser, prompt))
}

func (a *Assistant) complete(ctx context.Context, op string, maxTokens int, temperature float64, system, user string) (string, error) {
	req := &api.ChatCompletionRequest{
		Model: a.model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   api.IntPtr(maxTokens),
		Temperature: api.Float64Ptr(temperature),
	}

	resp, err := a.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	if resp.Usage != nil {
		logging.Component("prompts").WithField("op", op).
			Debugf("used %d tokens", resp.Usage.TotalTokens)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func orDefault(percent int) int {
	if percent == 0 {
		return DefaultPercent
	}
	return percent
}
