// Package launcher prepares the pinned runtime and starts the external web UI.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/pyenv"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/runner"
)

// ErrNotInstalled means the install dir has no web UI entry point.
var ErrNotInstalled = errors.New("web UI is not installed")

// Launcher turns a Config into a running web UI subprocess.
type Launcher struct {
	cfg    *config.Config
	finder *pyenv.Finder
}

// New creates a Launcher. finder may be nil to use the real OS.
func New(cfg *config.Config, finder *pyenv.Finder) *Launcher {
	if finder == nil {
		finder = &pyenv.Finder{}
	}
	return &Launcher{cfg: cfg, finder: finder}
}

// CheckInstall verifies the install dir holds the web UI entry point.
func (l *Launcher) CheckInstall() error {
	entry := filepath.Join(l.cfg.InstallDir, "launch.py")
	if l.cfg.WebUI.UseScript {
		_, args := runner.ScriptCommand(l.cfg.InstallDir)
		entry = args[len(args)-1]
	}
	if _, err := os.Stat(entry); err != nil {
		return fmt.Errorf("%w: %s missing (run 'zerotrace install')", ErrNotInstalled, entry)
	}
	return nil
}

// Runtime finds the interpreter and checks it against the runtime pin.
func (l *Launcher) Runtime(ctx context.Context) (*pyenv.Interpreter, error) {
	interp, err := l.finder.Find(ctx, l.cfg.Runtime.Python)
	if err != nil {
		return nil, err
	}
	if err := pyenv.CheckPin(interp, l.cfg.Runtime.Constraint); err != nil {
		return interp, err
	}
	return interp, nil
}

// Prepare returns the interpreter the web UI should run under, creating the
// virtualenv when needed.
func (l *Launcher) Prepare(ctx context.Context) (*pyenv.Interpreter, error) {
	interp, err := l.Runtime(ctx)
	if err != nil {
		return nil, err
	}
	if l.cfg.Runtime.SkipVenv {
		return interp, nil
	}
	venvDir := filepath.Join(l.cfg.InstallDir, "venv")
	venv, err := l.finder.EnsureVenv(ctx, interp, venvDir)
	if err != nil {
		return nil, err
	}
	// An existing venv may have been built by another interpreter.
	if err := pyenv.CheckPin(venv, l.cfg.Runtime.Constraint); err != nil {
		return venv, fmt.Errorf("virtualenv %s: %w (delete it to recreate with %s)", venvDir, err, interp)
	}
	return venv, nil
}

// Options maps the config onto runner options.
func (l *Launcher) Options(share bool) runner.Options {
	opts := runner.DefaultOptions()
	opts.Host = l.cfg.WebUI.Host
	opts.Port = l.cfg.WebUI.Port
	opts.Share = share || l.cfg.WebUI.Share
	opts.ExtraArgs = l.cfg.WebUI.Args
	opts.HealthPath = l.cfg.WebUI.HealthPath
	opts.HealthTimeout = l.cfg.WebUI.HealthTimeout
	return opts
}

// Command builds the subprocess configuration without starting anything.
// In script mode the generated flags travel in COMMANDLINE_ARGS, which the
// platform launcher script forwards to launch.py.
func (l *Launcher) Command(interp *pyenv.Interpreter, opts runner.Options, port int) runner.SubprocessConfig {
	args := runner.WebUIArgs(opts, port)
	sc := runner.SubprocessConfig{
		Dir:           l.cfg.InstallDir,
		Port:          port,
		Quiet:         opts.Quiet,
		HealthPath:    opts.HealthPath,
		HealthTimeout: opts.HealthTimeout,
	}

	if l.cfg.WebUI.UseScript {
		script, scriptArgs := runner.ScriptCommand(l.cfg.InstallDir)
		sc.Command = script
		sc.Args = scriptArgs
		sc.Env = []string{"COMMANDLINE_ARGS=" + strings.Join(args[1:], " ")}
		if interp != nil {
			sc.Env = append(sc.Env, "PYTHON="+interp.CommandLine())
		}
		return sc
	}

	sc.Command = interp.Path
	sc.Args = interp.CommandArgs(args...)
	if !l.cfg.Runtime.SkipVenv {
		sc.Env = []string{"VENV_DIR=" + filepath.Join(l.cfg.InstallDir, "venv")}
	}
	return sc
}

// Start prepares the runtime and starts the web UI, blocking until it is
// healthy. onURL receives every URL the web UI announces.
func (l *Launcher) Start(ctx context.Context, opts runner.Options, onURL func(runner.URLKind, string)) (*runner.Subprocess, error) {
	if err := l.CheckInstall(); err != nil {
		return nil, err
	}

	var interp *pyenv.Interpreter
	if !l.cfg.WebUI.UseScript {
		var err error
		interp, err = l.Prepare(ctx)
		if err != nil {
			return nil, err
		}
	}

	port := opts.Port
	if port == 0 {
		var err error
		port, err = runner.AllocatePort()
		if err != nil {
			return nil, err
		}
	}

	sc := l.Command(interp, opts, port)
	sc.OnURL = onURL

	logging.Component("launcher").WithField("install_dir", l.cfg.InstallDir).Info("starting web UI")

	sub, err := runner.NewSubprocess(sc)
	if err != nil {
		return nil, err
	}
	if err := sub.Start(ctx); err != nil {
		return nil, err
	}
	return sub, nil
}
