// Package pyenv locates the Python runtime the web UI is pinned to and
// prepares its virtualenv.
package pyenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
)

var (
	// ErrNotFound is returned when no usable interpreter is on PATH.
	ErrNotFound = errors.New("python runtime not found")
	// ErrRuntimePin is returned when the interpreter version is outside the pin.
	ErrRuntimePin = errors.New("python version does not satisfy runtime pin")
)

// RunFunc executes a command and returns its combined output.
type RunFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// LookPathFunc resolves a binary name on PATH.
type LookPathFunc func(name string) (string, error)

// Interpreter is a discovered Python binary.
type Interpreter struct {
	Path string
	// Args select the version on launchers such as the Windows "py" shim and
	// precede every script argument.
	Args    []string
	Version *version.Version
}

func (i *Interpreter) String() string {
	if len(i.Args) > 0 {
		return fmt.Sprintf("%s %s (Python %s)", i.Path, strings.Join(i.Args, " "), i.Version)
	}
	return fmt.Sprintf("%s (Python %s)", i.Path, i.Version)
}

// CommandArgs returns the launcher args followed by args.
func (i *Interpreter) CommandArgs(args ...string) []string {
	out := make([]string, 0, len(i.Args)+len(args))
	out = append(out, i.Args...)
	return append(out, args...)
}

// CommandLine renders the interpreter invocation for scripts that expand it
// unquoted, like the PYTHON variable of the web UI launcher scripts.
func (i *Interpreter) CommandLine() string {
	return strings.Join(append([]string{i.Path}, i.Args...), " ")
}

// launcherArgs returns the version selector for the "py" launcher.
func launcherArgs(path string) []string {
	switch filepath.Base(path) {
	case "py", "py.exe":
		return []string{"-3.10"}
	}
	return nil
}

// Finder discovers interpreters. The zero value uses the real OS.
type Finder struct {
	Run      RunFunc
	LookPath LookPathFunc
}

func (f *Finder) run() RunFunc {
	if f != nil && f.Run != nil {
		return f.Run
	}
	return execRun
}

func (f *Finder) lookPath() LookPathFunc {
	if f != nil && f.LookPath != nil {
		return f.LookPath
	}
	return exec.LookPath
}

func execRun(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Candidates lists the binary names tried, in order, when no explicit path is set.
func Candidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"python", "py", "python3"}
	}
	return []string{"python3.10", "python3", "python"}
}

var versionRe = regexp.MustCompile(`Python\s+(\d+\.\d+(?:\.\d+)?(?:[a-z]+\d*)?)`)

// ParseVersion extracts the version from `python --version` output.
func ParseVersion(output string) (*version.Version, error) {
	m := versionRe.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("unrecognised version output %q", strings.TrimSpace(output))
	}
	return version.NewVersion(m[1])
}

// Inspect runs path --version and returns the interpreter it describes.
func (f *Finder) Inspect(ctx context.Context, path string) (*Interpreter, error) {
	interp := &Interpreter{Path: path, Args: launcherArgs(path)}
	out, err := f.run()(ctx, "", path, interp.CommandArgs("--version")...)
	if err != nil {
		return nil, fmt.Errorf("%s --version: %w", path, err)
	}
	interp.Version, err = ParseVersion(string(out))
	if err != nil {
		return nil, err
	}
	return interp, nil
}

// Find returns the explicit interpreter if set, otherwise the first candidate
// on PATH that reports a parseable version.
func (f *Finder) Find(ctx context.Context, explicit string) (*Interpreter, error) {
	if explicit != "" {
		return f.Inspect(ctx, explicit)
	}

	logger := logging.Component("pyenv")
	for _, name := range Candidates() {
		path, err := f.lookPath()(name)
		if err != nil {
			continue
		}
		interp, err := f.Inspect(ctx, path)
		if err != nil {
			logger.WithError(err).Debugf("skipping %s", path)
			continue
		}
		return interp, nil
	}
	return nil, fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(Candidates(), ", "))
}

// CheckPin verifies that interp satisfies constraint.
func CheckPin(interp *Interpreter, constraint string) error {
	c, err := version.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("parse constraint %q: %w", constraint, err)
	}
	if !c.Check(interp.Version) {
		return fmt.Errorf("%w: found %s at %s, need %s", ErrRuntimePin, interp.Version, interp.Path, constraint)
	}
	return nil
}

// VenvPython returns the interpreter path inside a virtualenv directory.
func VenvPython(venvDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}

// EnsureVenv creates venvDir with interp if it does not already hold an
// interpreter, and returns the venv interpreter.
func (f *Finder) EnsureVenv(ctx context.Context, interp *Interpreter, venvDir string) (*Interpreter, error) {
	logger := logging.Component("pyenv")
	py := VenvPython(venvDir)

	if _, err := os.Stat(py); err == nil {
		logger.Debugf("reusing virtualenv at %s", venvDir)
		return f.Inspect(ctx, py)
	}

	logger.Infof("creating virtualenv at %s with %s", venvDir, interp)
	out, err := f.run()(ctx, filepath.Dir(venvDir), interp.Path, interp.CommandArgs("-m", "venv", venvDir)...)
	if err != nil {
		return nil, fmt.Errorf("create virtualenv: %w: %s", err, strings.TrimSpace(string(out)))
	}
	if _, err := os.Stat(py); err != nil {
		return nil, fmt.Errorf("virtualenv created but %s is missing: %w", py, err)
	}
	return f.Inspect(ctx, py)
}
