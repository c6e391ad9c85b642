// Package guide holds the setup guide shown by `zerotrace guide`.
package guide

import (
	_ "embed"
	"strings"

	"github.com/charmbracelet/glamour"
)

//go:embed guide.md
var markdown string

// Markdown returns the raw guide.
func Markdown() string {
	return markdown
}

// Render returns the guide styled for a terminal. style is a glamour
// standard style ("dark", "light", "notty"); wrap of 0 disables wrapping.
// On renderer failure the raw markdown is returned.
func Render(style string, wrap int) string {
	if style == "" {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return markdown
	}
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n") + "\n"
}
