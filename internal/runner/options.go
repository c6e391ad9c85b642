package runner

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Options configures how the web UI subprocess is started.
type Options struct {
	// Host the web UI binds to. Anything but loopback adds --listen.
	Host string

	// Port for the web UI to listen on (0 = auto-allocate).
	Port int

	// Share asks the web UI for a public tunnel link.
	Share bool

	// ExtraArgs are appended verbatim after the generated flags.
	ExtraArgs []string

	// HealthPath is polled until it answers 200.
	HealthPath string

	// HealthTimeout bounds the first-start wait; the web UI installs its
	// Python dependencies on first run so this is long.
	HealthTimeout time.Duration

	// Quiet suppresses subprocess output.
	Quiet bool
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Host:          "127.0.0.1",
		Port:          7860,
		HealthPath:    "/",
		HealthTimeout: 20 * time.Minute,
	}
}

func isLoopback(host string) bool {
	if host == "" || host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// WebUIArgs builds the launch.py command line for opts. A --port already
// present in ExtraArgs, as "--port N" or "--port=N", is rewritten to port
// rather than duplicated. A trailing --port with no value is dropped.
func WebUIArgs(opts Options, port int) []string {
	args := []string{"launch.py"}

	if !isLoopback(opts.Host) {
		args = append(args, "--listen")
	}
	if opts.Share {
		args = append(args, "--share")
	}

	p := strconv.Itoa(port)
	extra := make([]string, 0, len(opts.ExtraArgs))
	portFound := false
	for i := 0; i < len(opts.ExtraArgs); i++ {
		a := opts.ExtraArgs[i]
		switch {
		case a == "--port":
			if i+1 == len(opts.ExtraArgs) {
				continue
			}
			extra = append(extra, a, p)
			i++
			portFound = true
		case strings.HasPrefix(a, "--port="):
			extra = append(extra, "--port="+p)
			portFound = true
		default:
			extra = append(extra, a)
		}
	}
	if !portFound {
		args = append(args, "--port", p)
	}
	return append(args, extra...)
}
