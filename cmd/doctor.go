package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/bundle"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/gpuprobe"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/launcher"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/prompts"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the runtime pin, the install and the local GPU",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		l := launcher.New(cfg, nil)
		failed := false

		if err := l.CheckInstall(); err != nil {
			report(false, "install", err.Error())
			failed = true
		} else if r, err := bundle.ReadReceipt(cfg.InstallDir); err == nil {
			report(true, "install", fmt.Sprintf("%s (installed %s)", cfg.InstallDir, r.InstalledAt.Format(time.RFC3339)))
		} else {
			report(true, "install", cfg.InstallDir)
		}

		interp, err := l.Runtime(ctx)
		switch {
		case err == nil:
			report(true, "python", interp.String())
		case interp != nil:
			report(false, "python", err.Error())
			fmt.Println("       Install Python 3.10.6 and make sure it is first on PATH, or set runtime.python.")
			failed = true
		default:
			report(false, "python", err.Error())
			fmt.Println("       Install Python 3.10.6 and tick 'Add Python to PATH' in the installer.")
			failed = true
		}

		gpus, err := (&gpuprobe.Prober{}).Probe(ctx)
		if errors.Is(err, gpuprobe.ErrNoGPU) {
			report(false, "gpu", "no local NVIDIA GPU found")
			fmt.Println("       Use 'zerotrace notebook' to run the web UI on a hosted GPU instead.")
		} else if err != nil {
			report(false, "gpu", err.Error())
		} else {
			for _, g := range gpus {
				report(true, "gpu", fmt.Sprintf("#%d %s, %d MiB free of %d MiB", g.Index, g.Name, g.MemoryFreeMiB, g.MemoryTotalMiB))
			}
		}

		if _, err := prompts.LoadAPIKey(cfg.OpenAI); err != nil {
			report(false, "openai", err.Error()+" (prompt assistant disabled)")
		} else {
			report(true, "openai", "API key found")
		}

		if failed {
			return errors.New("doctor found problems")
		}
		return nil
	},
}

func report(ok bool, what, detail string) {
	mark := "[ok]"
	if !ok {
		mark = "[!!]"
	}
	fmt.Printf("%s %-7s %s\n", mark, what, detail)
}

func init() {
	doctorCmd.Flags().String("python", "", "explicit Python interpreter")
	bindFlag(doctorCmd, "python", "runtime.python")

	rootCmd.AddCommand(doctorCmd)
}
