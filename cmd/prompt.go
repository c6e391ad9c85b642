package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/prompts"
)

// newAssistant wires the prompt assistant from the loaded config.
func newAssistant() (*prompts.Assistant, error) {
	key, err := prompts.LoadAPIKey(cfg.OpenAI)
	if err != nil {
		return nil, err
	}
	client := prompts.NewClient(prompts.ClientConfig{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      key,
		MinInterval: cfg.OpenAI.MinInterval,
		MaxAttempts: cfg.OpenAI.MaxAttempts,
		Timeout:     cfg.OpenAI.Timeout,
	})
	return prompts.NewAssistant(client, cfg.OpenAI.Model), nil
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Rewrite image prompts with the OpenAI prompt assistant",
}

var promptEnhanceCmd = &cobra.Command{
	Use:   "enhance <prompt>",
	Short: "Make a prompt more detailed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		style, _ := cmd.Flags().GetString("style")
		percent, _ := cmd.Flags().GetInt("percent")
		return runPrompt(func(ctx context.Context, a *prompts.Assistant) (string, error) {
			return a.Enhance(ctx, strings.Join(args, " "), style, percent)
		})
	},
}

var promptImproveCmd = &cobra.Command{
	Use:   "improve <prompt>",
	Short: "Suggest improved prompts given what the original produced",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("image")
		percent, _ := cmd.Flags().GetInt("percent")
		return runPrompt(func(ctx context.Context, a *prompts.Assistant) (string, error) {
			return a.Improve(ctx, strings.Join(args, " "), desc, percent)
		})
	},
}

var promptAlternativesCmd = &cobra.Command{
	Use:   "alternatives <prompt>",
	Short: "Propose three artistic variations of a prompt",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		variation, _ := cmd.Flags().GetString("variation")
		return runPrompt(func(ctx context.Context, a *prompts.Assistant) (string, error) {
			return a.Alternatives(ctx, strings.Join(args, " "), variation)
		})
	},
}

func runPrompt(op func(context.Context, *prompts.Assistant) (string, error)) error {
	a, err := newAssistant()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out, err := op(ctx, a)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func init() {
	promptEnhanceCmd.Flags().String("style", prompts.DefaultStyle, "style preference (photorealistic, artistic, anime, ...)")
	promptEnhanceCmd.Flags().Int("percent", prompts.DefaultPercent, "enhancement intensity, 10-100")
	promptImproveCmd.Flags().String("image", "", "description of the image the prompt produced")
	promptImproveCmd.Flags().Int("percent", prompts.DefaultPercent, "enhancement intensity, 10-100")
	promptAlternativesCmd.Flags().String("variation", prompts.DefaultVariation, "variation type (creative, artistic, photorealistic, ...)")

	promptCmd.PersistentFlags().String("model", "", "OpenAI model")
	bindFlag(promptEnhanceCmd, "model", "openai.model")
	bindFlag(promptImproveCmd, "model", "openai.model")
	bindFlag(promptAlternativesCmd, "model", "openai.model")

	promptCmd.AddCommand(promptEnhanceCmd, promptImproveCmd, promptAlternativesCmd)
	rootCmd.AddCommand(promptCmd)
}
