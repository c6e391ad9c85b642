package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
)

var (
	cfgFile string
	v       *viper.Viper
	cfg     *config.Config
)

// flagBinding ties a command flag to a config key so flags override the
// config file and environment.
type flagBinding struct {
	cmd  *cobra.Command
	flag string
	key  string
}

var bindings []flagBinding

func bindFlag(cmd *cobra.Command, flag, key string) {
	bindings = append(bindings, flagBinding{cmd: cmd, flag: flag, key: key})
}

var rootCmd = &cobra.Command{
	Use:   "zerotrace",
	Short: "ZeroTraceGPT Image Creator launcher",
	Long: "zerotrace installs and launches the ZeroTraceGPT Image Creator web UI, " +
		"generates the hosted notebook for cloud GPUs, and runs the prompt assistant.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./zerotrace.yaml or <data dir>/zerotrace.yaml)")
	rootCmd.PersistentFlags().String("install-dir", "", "web UI install directory")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	bindFlag(rootCmd, "install-dir", "install_dir")
	bindFlag(rootCmd, "log-level", "log.level")
	bindFlag(rootCmd, "log-format", "log.format")
}

func loadConfig(cmd *cobra.Command) error {
	v = config.New(cfgFile)
	for _, b := range bindings {
		if b.cmd != cmd && b.cmd != cmd.Root() {
			continue
		}
		f := cmd.Flags().Lookup(b.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", b.flag, err)
		}
	}

	if err := config.ReadFile(v, cfgFile != ""); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	if f := v.ConfigFileUsed(); f != "" {
		logging.Component("config").Debugf("using config file %s", f)
	}
	return nil
}

// Exit prints err the way every command reports failures and exits 1.
func Exit(err error) {
	exitError("%v", err)
}

func exitError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
