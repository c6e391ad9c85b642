package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v7"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/bundle"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download and unpack the web UI bundle and checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		plan, err := bundle.PlanFromConfig(cfg)
		if err != nil {
			return err
		}
		plan.Force, _ = cmd.Flags().GetBool("force")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		progress := mpb.NewWithContext(ctx, mpb.WithWidth(60), mpb.WithOutput(os.Stderr))
		in := &bundle.Installer{
			Downloader: bundle.NewDownloader(progress),
			Out:        os.Stderr,
		}

		receipt, err := in.Install(ctx, plan)
		progress.Wait()
		if err != nil {
			return fmt.Errorf("install failed: %w", err)
		}

		fmt.Printf("Installed %d asset(s) into %s (install %s)\n", len(receipt.Assets), plan.InstallDir, receipt.ID)
		fmt.Println("Next: run 'zerotrace doctor', then 'zerotrace launch'.")
		return nil
	},
}

func init() {
	installCmd.Flags().String("bundle-url", "", "URL of the web UI release zip")
	installCmd.Flags().String("sha256", "", "expected SHA-256 of the bundle")
	installCmd.Flags().StringSlice("checkpoint", nil, "checkpoint URL to fetch into models/Stable-diffusion (repeatable)")
	installCmd.Flags().Bool("force", false, "download again even if files are present")

	bindFlag(installCmd, "bundle-url", "bundle.url")
	bindFlag(installCmd, "sha256", "bundle.sha256")
	bindFlag(installCmd, "checkpoint", "bundle.checkpoints")

	rootCmd.AddCommand(installCmd)
}
