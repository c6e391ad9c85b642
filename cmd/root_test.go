package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag back to its default; cobra keeps parsed values
// between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	resetFlags(rootCmd)
	cfgFile = ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestNotebookFlagOverridesConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)
	t.Chdir(dir)

	os.WriteFile(filepath.Join(dir, "zerotrace.yaml"), []byte("notebook:\n  repo_url: https://github.com/example/fork\n  branch: stable\n"), 0644)
	out := filepath.Join(dir, "nb.ipynb")

	if err := runCLI(t, "notebook", "-o", out, "--branch", "dev"); err != nil {
		t.Fatalf("notebook: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, "https://github.com/example/fork") {
		t.Error("repo from config file not used")
	}
	if !strings.Contains(s, "-b dev") {
		t.Error("--branch flag did not override the config file")
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)
	t.Setenv("ZEROTRACE_NOTEBOOK_BRANCH", "from-env")
	t.Chdir(dir)
	out := filepath.Join(dir, "nb.ipynb")

	if err := runCLI(t, "notebook", "-o", out); err != nil {
		t.Fatalf("notebook: %v", err)
	}
	data, _ := os.ReadFile(out)
	if !strings.Contains(string(data), "-b from-env") {
		t.Error("environment did not override the default branch")
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)
	t.Chdir(dir)

	if err := runCLI(t, "notebook", "-o", filepath.Join(dir, "x"), "--log-format", "xml"); err == nil {
		t.Fatal("expected invalid log format to fail")
	}
}

func TestLicensesNotInstalled(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)
	t.Chdir(dir)

	err := runCLI(t, "licenses", "--install-dir", filepath.Join(dir, "webui"))
	if err == nil || !strings.Contains(err.Error(), "licenses page not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRootFlagBindsOnSubcommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)
	t.Chdir(dir)
	install := filepath.Join(dir, "custom-webui")

	runCLI(t, "licenses", "--install-dir", install)
	if cfg == nil {
		t.Fatal("config was not loaded before the command ran")
	}
	if cfg.InstallDir != install {
		t.Errorf("InstallDir = %q, want %q", cfg.InstallDir, install)
	}
}
