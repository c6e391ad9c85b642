package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/launcher"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/runner"
)

var launchCmd = &cobra.Command{
	Use:   "launch [-- extra web UI args]",
	Short: "Start the web UI and print its URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		share, _ := cmd.Flags().GetBool("share")
		quiet, _ := cmd.Flags().GetBool("quiet")

		l := launcher.New(cfg, nil)
		opts := l.Options(share)
		opts.Quiet = quiet
		if len(args) > 0 {
			opts.ExtraArgs = append(append([]string{}, opts.ExtraArgs...), args...)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fmt.Println("Starting the web UI. The first start installs requirements and can take several minutes.")

		sub, err := l.Start(ctx, opts, func(kind runner.URLKind, url string) {
			fmt.Printf("%s URL: %s\n", kind, url)
		})
		if err != nil {
			return err
		}

		fmt.Printf("Web UI is ready at %s\n", sub.BaseURL())
		if opts.Share {
			if u := sub.PublicURL(); u != "" {
				fmt.Printf("Public link: %s\n", u)
			}
		}
		fmt.Println("Press Ctrl+C to stop.")

		select {
		case <-ctx.Done():
			fmt.Println("\nStopping the web UI...")
			return sub.GracefulStop()
		case <-sub.Done():
			if code := sub.ExitCode(); code != 0 {
				return fmt.Errorf("web UI exited with code %d", code)
			}
			return nil
		}
	},
}

func init() {
	launchCmd.Flags().Bool("share", false, "ask the web UI for a public share link")
	launchCmd.Flags().Bool("script", false, "run webui-user.bat / webui.sh instead of launch.py")
	launchCmd.Flags().String("host", "", "address the web UI binds to")
	launchCmd.Flags().Int("port", 0, "port the web UI listens on (0 picks a free port)")
	launchCmd.Flags().String("python", "", "explicit Python interpreter")
	launchCmd.Flags().Bool("skip-venv", false, "run with the interpreter directly, without a virtualenv")
	launchCmd.Flags().Bool("quiet", false, "do not echo web UI output")

	bindFlag(launchCmd, "script", "webui.use_script")
	bindFlag(launchCmd, "host", "webui.host")
	bindFlag(launchCmd, "port", "webui.port")
	bindFlag(launchCmd, "python", "runtime.python")
	bindFlag(launchCmd, "skip-venv", "runtime.skip_venv")

	rootCmd.AddCommand(launchCmd)
}
