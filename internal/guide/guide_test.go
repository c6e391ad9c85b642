package guide

import (
	"strings"
	"testing"
)

func TestMarkdownCoversSetup(t *testing.T) {
	for _, want := range []string{"Python 3.10.6", "zerotrace launch", "GPU", "html/licenses.html"} {
		if !strings.Contains(Markdown(), want) {
			t.Errorf("guide is missing %q", want)
		}
	}
}

func TestRenderPlain(t *testing.T) {
	out := Render("notty", 80)
	if !strings.Contains(out, "Python 3.10.6") {
		t.Errorf("rendered guide lost content:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("notty style should not emit ANSI escapes")
	}
}
