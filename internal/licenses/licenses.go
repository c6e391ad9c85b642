// Package licenses reads the third-party license page shipped with the web UI.
package licenses

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
)

// ErrNotInstalled is returned when the install dir has no licenses page.
var ErrNotInstalled = errors.New("licenses page not found, run 'zerotrace install' first")

// Component is one licensed third-party project.
type Component struct {
	Name string
	URL  string
	Note string // optional remark shown under the heading
	Text string // license text
}

// Parse extracts components from licenses.html. Each <h2> starts a
// component; the <small> and <pre> elements up to the next <h2> belong to it.
func Parse(r io.Reader) ([]Component, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse licenses: %w", err)
	}

	var out []Component
	doc.Find("h2").Each(func(i int, h *goquery.Selection) {
		name := strings.TrimSpace(h.Text())
		if name == "" {
			return
		}
		c := Component{Name: name}
		if href, ok := h.Find("a").Attr("href"); ok {
			c.URL = href
		}

		body := h.NextUntil("h2")
		c.Note = strings.TrimSpace(body.Filter("small").First().Text())
		c.Text = strings.Trim(body.Filter("pre").First().Text(), "\n")
		out = append(out, c)
	})
	return out, nil
}

// Load parses <installDir>/html/licenses.html.
func Load(installDir string) ([]Component, error) {
	path := config.LicensesFile(installDir)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Find returns the component whose name matches name, ignoring case.
func Find(components []Component, name string) (Component, bool) {
	for _, c := range components {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Component{}, false
}
