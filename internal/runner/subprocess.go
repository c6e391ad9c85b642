package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
)

// Subprocess manages the lifecycle of the web UI child process.
// It handles binary resolution, environment setup, process start/stop,
// output logging with URL detection, health polling, and graceful shutdown.
type Subprocess struct {
	cmd  *exec.Cmd
	mu   sync.Mutex
	port int

	binPath       string
	args          []string
	dir           string
	env           []string
	label         string
	quiet         bool
	baseURL       string
	healthPath    string
	healthTimeout time.Duration
	onURL         func(URLKind, string)

	healthy   bool
	stopped   bool          // true after explicit GracefulStop()
	doneCh    chan struct{} // closed when the process exits
	localURL  string
	publicURL string

	logger *log.Entry
}

// SubprocessConfig holds everything needed to start the web UI.
type SubprocessConfig struct {
	Command       string   // interpreter or launcher script
	Args          []string // args passed after Command
	Dir           string   // working directory (the install dir)
	Env           []string // extra KEY=VALUE pairs on top of os.Environ()
	Port          int      // port the web UI listens on; 0 = auto-allocate
	Label         string   // log prefix (default "webui")
	Quiet         bool
	HealthPath    string        // default "/"
	HealthTimeout time.Duration // default 20m

	// OnURL is called for every URL the web UI announces on its output.
	OnURL func(URLKind, string)
}

// AllocatePort finds a free TCP port by binding to :0 and releasing it.
func AllocatePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port, nil
}

// resolveBinary returns the full path to command. Bare names are looked up
// on PATH; anything with a separator must exist.
func resolveBinary(command string) (string, error) {
	if strings.ContainsAny(command, `/\`) {
		if _, err := os.Stat(command); err != nil {
			return "", fmt.Errorf("%s not found, run 'zerotrace install' first: %w", command, err)
		}
		return command, nil
	}
	p, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH: %w", command, err)
	}
	return p, nil
}

// NewSubprocess creates a Subprocess but does not start it. Call Start() next.
func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	binPath, err := resolveBinary(cfg.Command)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port, err = AllocatePort()
		if err != nil {
			return nil, err
		}
	}

	label := cfg.Label
	if label == "" {
		label = "webui"
	}

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/"
	}
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}

	healthTimeout := cfg.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = 20 * time.Minute
	}

	env := append(os.Environ(), cfg.Env...)

	return &Subprocess{
		binPath:       binPath,
		args:          cfg.Args,
		dir:           cfg.Dir,
		env:           env,
		port:          port,
		label:         label,
		quiet:         cfg.Quiet,
		baseURL:       fmt.Sprintf("http://127.0.0.1:%d", port),
		healthPath:    healthPath,
		healthTimeout: healthTimeout,
		onURL:         cfg.OnURL,
		doneCh:        make(chan struct{}),
		logger:        logging.Component(label),
	}, nil
}

// Port returns the port the web UI is listening on.
func (s *Subprocess) Port() int {
	return s.port
}

// BaseURL returns the loopback HTTP base URL of the web UI.
func (s *Subprocess) BaseURL() string {
	return s.baseURL
}

// Healthy returns whether the subprocess last passed a health check.
func (s *Subprocess) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthy
}

// LocalURL returns the local URL the web UI announced, if any.
func (s *Subprocess) LocalURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localURL
}

// PublicURL returns the shared link the web UI announced, if any.
func (s *Subprocess) PublicURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publicURL
}

// Start launches the subprocess and waits for it to become healthy.
// The provided ctx controls only the health-check wait; the subprocess
// itself runs with a background lifetime.
func (s *Subprocess) Start(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = false
	s.healthy = false
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.cmd = exec.Command(s.binPath, s.args...)
	s.cmd.Dir = s.dir
	s.cmd.Env = s.env

	// Output is always scanned so announced URLs are caught even when quiet.
	out, err := s.pipeOutput()
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", s.label, err)
	}

	s.logger.WithFields(log.Fields{
		"cmd":  s.binPath,
		"args": strings.Join(s.args, " "),
		"port": s.port,
	}).Info("starting")

	if err := s.cmd.Start(); err != nil {
		out.closeWriters()
		out.closeReaders()
		return fmt.Errorf("failed to start %s: %w", s.label, err)
	}
	out.closeWriters()

	// Background goroutine to detect process exit. Done is only closed once
	// the last output line has been handled.
	doneCh := s.doneCh
	go func() {
		s.cmd.Wait()
		out.drain(outputDrainTimeout)
		close(doneCh)
	}()

	if err := s.waitForHealth(ctx); err != nil {
		s.GracefulStop()
		return fmt.Errorf("%s failed to become healthy: %w", s.label, err)
	}

	s.mu.Lock()
	s.healthy = true
	s.mu.Unlock()

	s.logger.WithField("url", s.baseURL).Info("ready")
	return nil
}

// Done returns a channel that is closed when the subprocess exits.
func (s *Subprocess) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doneCh
}

// ExitCode returns the process exit code, or -1 if not yet exited.
func (s *Subprocess) ExitCode() int {
	if s.cmd == nil || s.cmd.ProcessState == nil {
		return -1
	}
	return s.cmd.ProcessState.ExitCode()
}

// GracefulStop sends SIGTERM, waits up to 5 seconds, then SIGKILL.
func (s *Subprocess) GracefulStop() error {
	s.mu.Lock()
	s.stopped = true
	s.healthy = false
	s.mu.Unlock()

	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}

	pid := s.cmd.Process.Pid
	s.logger.WithField("pid", pid).Info("sending SIGTERM")

	// SIGINT on Windows for graceful shutdown.
	var sigErr error
	if runtime.GOOS == "windows" {
		sigErr = s.cmd.Process.Signal(os.Interrupt)
	} else {
		sigErr = s.cmd.Process.Signal(syscall.SIGTERM)
	}

	if sigErr != nil {
		// Process may already be dead.
		s.logger.WithError(sigErr).Debug("signal failed (process may have exited)")
		return nil
	}

	select {
	case <-s.doneCh:
		s.logger.Info("process exited cleanly")
		return nil
	case <-time.After(5 * time.Second):
		s.logger.WithField("pid", pid).Warn("process did not exit after SIGTERM, killing")
		if err := s.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("failed to kill %s: %w", s.label, err)
		}
		<-s.doneCh
		return nil
	}
}

// WasStopped returns true if GracefulStop was called (i.e., this was an intentional shutdown).
func (s *Subprocess) WasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// waitForHealth polls the health path until it returns 200, with progress logging.
func (s *Subprocess) waitForHealth(ctx context.Context) error {
	deadline := time.Now().Add(s.healthTimeout)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	progressTicker := time.NewTicker(15 * time.Second)
	defer progressTicker.Stop()

	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.doneCh:
			return fmt.Errorf("%s process exited during startup (exit code %d)", s.label, s.ExitCode())
		case <-progressTicker.C:
			s.logger.Infof("still starting... (%.0fs elapsed)", time.Since(start).Seconds())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for %s to become ready after %s", s.label, s.healthTimeout)
			}
			if s.healthCheck(ctx) == nil {
				return nil
			}
		}
	}
}

func (s *Subprocess) healthCheck(ctx context.Context) error {
	return Ping(ctx, http.DefaultClient, s.baseURL+s.healthPath)
}

// Ping issues a GET to url and expects 200.
func Ping(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// outputDrainTimeout bounds how long output is read after the process exits;
// a grandchild holding the pipes open would otherwise block Done forever.
const outputDrainTimeout = 2 * time.Second

// outputPipes are the stdout and stderr pipes of the subprocess. The read
// ends belong to the scanners, so cmd.Wait never closes them mid-read.
type outputPipes struct {
	readers []*os.File
	writers []*os.File
	wg      sync.WaitGroup
}

func (p *outputPipes) closeWriters() {
	for _, w := range p.writers {
		w.Close()
	}
}

func (p *outputPipes) closeReaders() {
	for _, r := range p.readers {
		r.Close()
	}
}

// drain waits for the scanners to reach EOF, up to timeout, then closes the
// read ends.
func (p *outputPipes) drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
	p.closeReaders()
}

// pipeOutput connects subprocess stdout+stderr to the logger.
func (s *Subprocess) pipeOutput() (*outputPipes, error) {
	p := &outputPipes{}
	for _, dst := range []*io.Writer{&s.cmd.Stdout, &s.cmd.Stderr} {
		r, w, err := os.Pipe()
		if err != nil {
			p.closeWriters()
			p.closeReaders()
			return nil, fmt.Errorf("output pipe: %w", err)
		}
		p.readers = append(p.readers, r)
		p.writers = append(p.writers, w)
		*dst = w
	}
	for _, r := range p.readers {
		p.wg.Add(1)
		go func(r io.Reader) {
			defer p.wg.Done()
			s.scanLines(r)
		}(r)
	}
	return p, nil
}

func (s *Subprocess) scanLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.handleLine(line)
		if !s.quiet {
			s.logger.Info(line)
		}
	}
	// Keep the pipe flowing past an over-long line so the child never blocks.
	io.Copy(io.Discard, r)
}

func (s *Subprocess) handleLine(line string) {
	kind, url, ok := MatchURL(line)
	if !ok {
		return
	}

	s.mu.Lock()
	if kind == PublicURL {
		s.publicURL = url
	} else {
		s.localURL = url
	}
	s.mu.Unlock()

	if s.onURL != nil {
		s.onURL(kind, url)
	}
}

// ScriptCommand returns the platform launcher script in installDir and the
// command that runs it. The script reads extra flags from COMMANDLINE_ARGS.
func ScriptCommand(installDir string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", filepath.Join(installDir, "webui-user.bat")}
	}
	return "bash", []string{filepath.Join(installDir, "webui.sh")}
}
