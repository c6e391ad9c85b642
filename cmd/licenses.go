package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/licenses"
)

var licensesCmd = &cobra.Command{
	Use:   "licenses [component]",
	Short: "List third-party licenses shipped with the web UI",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := licenses.Load(cfg.InstallDir)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			c, ok := licenses.Find(components, args[0])
			if !ok {
				return fmt.Errorf("no license entry named %q", args[0])
			}
			fmt.Printf("%s\n%s\n\n", c.Name, c.URL)
			if c.Note != "" {
				fmt.Printf("%s\n\n", c.Note)
			}
			fmt.Println(c.Text)
			return nil
		}

		for _, c := range components {
			fmt.Printf("%-36s %s\n", c.Name, c.URL)
		}
		fmt.Printf("\n%d components. Run 'zerotrace licenses <name>' for the full text.\n", len(components))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(licensesCmd)
}
