package runner

import (
	"regexp"
	"strings"
)

var (
	localURLRe  = regexp.MustCompile(`Running on local URL:\s*(\S+)`)
	publicURLRe = regexp.MustCompile(`Running on public URL:\s*(\S+)`)
)

// URLKind tells a local address from a shared tunnel link.
type URLKind int

const (
	LocalURL URLKind = iota
	PublicURL
)

func (k URLKind) String() string {
	if k == PublicURL {
		return "public"
	}
	return "local"
}

// MatchURL reports whether a web UI output line announces a URL.
func MatchURL(line string) (URLKind, string, bool) {
	if m := publicURLRe.FindStringSubmatch(line); m != nil {
		return PublicURL, strings.TrimRight(m[1], "/"), true
	}
	if m := localURLRe.FindStringSubmatch(line); m != nil {
		return LocalURL, strings.TrimRight(m[1], "/"), true
	}
	return LocalURL, "", false
}
