package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/guide"
)

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show the setup guide",
	RunE: func(cmd *cobra.Command, args []string) error {
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Print(guide.Markdown())
			return nil
		}
		style, _ := cmd.Flags().GetString("style")
		width, _ := cmd.Flags().GetInt("width")
		fmt.Print(guide.Render(style, width))
		return nil
	},
}

func init() {
	guideCmd.Flags().Bool("raw", false, "print the markdown source")
	guideCmd.Flags().String("style", "dark", "glamour style (dark, light, notty)")
	guideCmd.Flags().Int("width", 100, "word wrap width, 0 to disable")

	rootCmd.AddCommand(guideCmd)
}
