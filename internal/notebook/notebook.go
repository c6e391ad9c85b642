// Package notebook generates the hosted notebook that provisions and starts
// the web UI on a cloud GPU runtime.
package notebook

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/bundle"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
)

const workDir = "/content/stable-diffusion-webui"

// Options selects what the notebook clones, downloads and runs.
type Options struct {
	RepoURL     string
	Branch      string
	Checkpoints []string // checkpoint URLs fetched into models/Stable-diffusion
	ExtraArgs   []string // appended to the launch command after --share
	GPUType     string   // accelerator hint, default "T4"
}

// OptionsFromConfig fills Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RepoURL:     cfg.Notebook.RepoURL,
		Branch:      cfg.Notebook.Branch,
		Checkpoints: cfg.Bundle.Checkpoints,
		ExtraArgs:   cfg.WebUI.Args,
	}
}

// Notebook is an nbformat 4.5 document.
type Notebook struct {
	Cells         []Cell   `json:"cells"`
	Metadata      Metadata `json:"metadata"`
	NBFormat      int      `json:"nbformat"`
	NBFormatMinor int      `json:"nbformat_minor"`
}

// Metadata is the notebook-level metadata block.
type Metadata struct {
	Accelerator  string       `json:"accelerator"`
	Colab        ColabInfo    `json:"colab"`
	Kernelspec   Kernelspec   `json:"kernelspec"`
	LanguageInfo LanguageInfo `json:"language_info"`
}

type ColabInfo struct {
	Provenance []any  `json:"provenance"`
	GPUType    string `json:"gpuType"`
}

type Kernelspec struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

type LanguageInfo struct {
	Name string `json:"name"`
}

// Cell is a markdown or code cell.
type Cell struct {
	Type   string
	ID     string
	Source []string
}

// MarshalJSON emits the fields nbformat requires for the cell type; code
// cells carry an empty output list and a null execution count.
func (c Cell) MarshalJSON() ([]byte, error) {
	base := map[string]any{
		"cell_type": c.Type,
		"id":        c.ID,
		"metadata":  map[string]any{},
		"source":    c.Source,
	}
	if c.Type == "code" {
		base["execution_count"] = nil
		base["outputs"] = []any{}
	}
	return json.Marshal(base)
}

// UnmarshalJSON reads back the fields Cell models.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   string   `json:"cell_type"`
		ID     string   `json:"id"`
		Source []string `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Cell{Type: raw.Type, ID: raw.ID, Source: raw.Source}
	return nil
}

// Text joins the cell source back into one string.
func (c Cell) Text() string {
	return strings.Join(c.Source, "")
}

// Build assembles the notebook for opts.
func Build(opts Options) (*Notebook, error) {
	if opts.RepoURL == "" {
		return nil, fmt.Errorf("notebook: repo URL is required")
	}
	branch := opts.Branch
	if branch == "" {
		branch = "master"
	}
	gpu := opts.GPUType
	if gpu == "" {
		gpu = "T4"
	}

	var cells []Cell
	add := func(kind, text string) {
		cells = append(cells, Cell{
			Type:   kind,
			ID:     cellID(len(cells), text),
			Source: splitLines(text),
		})
	}

	add("markdown", "# ZeroTraceGPT Image Creator\n\n"+
		"Select **Runtime > Change runtime type > GPU** before running the cells below.\n"+
		"Run every cell in order. The last one prints a public link; open it to use the web UI.")
	add("code", "!nvidia-smi")
	add("code", fmt.Sprintf("!git clone --depth 1 -b %s %s %s\n%%cd %s",
		shellQuote(branch), shellQuote(opts.RepoURL), workDir, workDir))

	if len(opts.Checkpoints) > 0 {
		var b strings.Builder
		for i, u := range opts.Checkpoints {
			name, err := bundle.FileName(u)
			if err != nil {
				return nil, fmt.Errorf("notebook: checkpoint %q: %w", u, err)
			}
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "!wget -q -c -O %s %s",
				shellQuote("models/Stable-diffusion/"+name), shellQuote(u))
		}
		add("code", b.String())
	}

	launch := []string{"!python", "launch.py", "--share"}
	for _, a := range opts.ExtraArgs {
		if a == "--share" {
			continue
		}
		launch = append(launch, shellQuote(a))
	}
	add("code", strings.Join(launch, " "))

	return &Notebook{
		Cells: cells,
		Metadata: Metadata{
			Accelerator:  "GPU",
			Colab:        ColabInfo{Provenance: []any{}, GPUType: gpu},
			Kernelspec:   Kernelspec{Name: "python3", DisplayName: "Python 3"},
			LanguageInfo: LanguageInfo{Name: "python"},
		},
		NBFormat:      4,
		NBFormatMinor: 5,
	}, nil
}

// Write encodes nb as indented JSON.
func Write(w io.Writer, nb *Notebook) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.SetEscapeHTML(false)
	return enc.Encode(nb)
}

// cellID is stable for a given position and source so regenerated
// notebooks diff cleanly.
func cellID(index int, text string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("zerotrace/%d/%s", index, text))).String()
}

// splitLines splits text the way nbformat stores source: every line but the
// last keeps its newline.
func splitLines(text string) []string {
	lines := strings.SplitAfter(text, "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
