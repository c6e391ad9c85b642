package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/schollz/progressbar/v3"
)

// Extract unpacks the zip archive at src into dest. When every entry lives
// under one top-level directory that directory is stripped. It returns the
// relative paths of the files written.
func Extract(src, dest string, out io.Writer) ([]string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	prefix := commonPrefix(zr.File)

	var bar *progressbar.ProgressBar
	if out != nil {
		bar = progressbar.NewOptions(len(zr.File),
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Extracting "+filepath.Base(src)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
	}

	var written []string
	for _, zf := range zr.File {
		if bar != nil {
			bar.Add(1)
		}

		rel := strings.TrimPrefix(zf.Name, prefix)
		if rel == "" {
			continue
		}
		target, err := safeJoin(dest, rel)
		if err != nil {
			return written, err
		}

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, err
			}
			continue
		}

		if err := writeEntry(zf, target); err != nil {
			return written, err
		}
		written = append(written, filepath.ToSlash(rel))
	}
	return written, nil
}

func writeEntry(zf *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	mode := zf.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}

	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	return f.Close()
}

// safeJoin joins rel onto dest and rejects paths that would land outside it.
func safeJoin(dest, rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	target := filepath.Join(dest, filepath.FromSlash(rel))
	base := filepath.Clean(dest) + string(os.PathSeparator)
	if !strings.HasPrefix(target+string(os.PathSeparator), base) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, rel)
	}
	return target, nil
}

// commonPrefix returns "dir/" when all entries share a single top-level dir.
func commonPrefix(files []*zip.File) string {
	var top string
	for _, f := range files {
		name := f.Name
		i := strings.Index(name, "/")
		if i < 0 {
			return ""
		}
		dir := name[:i+1]
		if top == "" {
			top = dir
		} else if dir != top {
			return ""
		}
	}
	return top
}
