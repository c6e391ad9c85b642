package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/notebook"
)

var notebookCmd = &cobra.Command{
	Use:   "notebook",
	Short: "Write the hosted notebook that runs the web UI on a cloud GPU",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := notebook.OptionsFromConfig(cfg)
		opts.GPUType, _ = cmd.Flags().GetString("gpu")

		nb, err := notebook.Build(opts)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("output")
		var w io.Writer = os.Stdout
		if out != "" && out != "-" {
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}
		if err := notebook.Write(w, nb); err != nil {
			return fmt.Errorf("write notebook: %w", err)
		}

		if out != "" && out != "-" {
			fmt.Fprintf(os.Stderr, "Wrote %s. Upload it, select a GPU runtime and run all cells.\n", out)
		}
		return nil
	},
}

func init() {
	notebookCmd.Flags().StringP("output", "o", "zerotrace.ipynb", "output file, - for stdout")
	notebookCmd.Flags().String("repo", "", "web UI repository to clone")
	notebookCmd.Flags().String("branch", "", "branch to clone")
	notebookCmd.Flags().StringSlice("checkpoint", nil, "checkpoint URL to download (repeatable)")
	notebookCmd.Flags().String("gpu", "T4", "accelerator type hint")

	bindFlag(notebookCmd, "repo", "notebook.repo_url")
	bindFlag(notebookCmd, "branch", "notebook.branch")
	bindFlag(notebookCmd, "checkpoint", "bundle.checkpoints")

	rootCmd.AddCommand(notebookCmd)
}
