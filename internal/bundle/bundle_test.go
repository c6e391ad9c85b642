package bundle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testDownloader() *Downloader {
	d := NewDownloader(nil)
	d.InitialInterval = 10 * time.Millisecond
	d.MaxInterval = 20 * time.Millisecond
	d.MaxElapsed = 500 * time.Millisecond
	return d
}

func serveBytes(data []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, filepath.Base(r.URL.Path), time.Time{}, bytes.NewReader(data))
	}
}

func TestInstallBundleAndCheckpoint(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"webui/launch.py":            "print('hi')\n",
		"webui/html/licenses.html":   "<h2>x</h2>",
		"webui/webui-user.bat":       "@echo off\n",
		"webui/models/.placeholder": "",
	})
	ckpt := []byte("fake-safetensors")

	mux := http.NewServeMux()
	mux.HandleFunc("/webui.zip", serveBytes(archive))
	mux.HandleFunc("/model.safetensors", serveBytes(ckpt))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	cfg := &config.Config{InstallDir: dir}
	cfg.Bundle.URL = srv.URL + "/webui.zip"
	cfg.Bundle.Checkpoints = []string{srv.URL + "/model.safetensors"}

	plan, err := PlanFromConfig(cfg)
	if err != nil {
		t.Fatalf("PlanFromConfig: %v", err)
	}

	in := &Installer{Downloader: testDownloader()}
	receipt, err := in.Install(context.Background(), plan)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "launch.py")); err != nil {
		t.Errorf("top-level dir was not stripped: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(config.CheckpointDir(dir), "model.safetensors"))
	if err != nil {
		t.Fatalf("checkpoint missing: %v", err)
	}
	if !bytes.Equal(got, ckpt) {
		t.Errorf("checkpoint content = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, downloadDir, "webui.zip")); !os.IsNotExist(err) {
		t.Error("staged archive should be removed after extraction")
	}

	if receipt.ID == "" {
		t.Error("receipt should carry an install id")
	}
	stored, err := ReadReceipt(dir)
	if err != nil {
		t.Fatalf("ReadReceipt: %v", err)
	}
	if stored.ID != receipt.ID {
		t.Errorf("stored id = %q, want %q", stored.ID, receipt.ID)
	}
	want := map[string]bool{"launch.py": false, "models/Stable-diffusion/model.safetensors": false}
	for _, f := range stored.Files {
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for f, seen := range want {
		if !seen {
			t.Errorf("receipt missing %s (files: %v)", f, stored.Files)
		}
	}
}

func TestPlanFromConfigEmpty(t *testing.T) {
	_, err := PlanFromConfig(&config.Config{InstallDir: t.TempDir()})
	if !errors.Is(err, ErrNoAssets) {
		t.Fatalf("expected ErrNoAssets, got %v", err)
	}
}

func TestFetchResumesPartial(t *testing.T) {
	data := []byte(strings.Repeat("0123456789", 100))
	var sawRange atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") != "" {
			sawRange.Store(true)
		}
		serveBytes(data)(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(dest+".partial", data[:300], 0644); err != nil {
		t.Fatal(err)
	}

	if err := testDownloader().Fetch(context.Background(), srv.URL+"/file.bin", dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !sawRange.Load() {
		t.Error("expected a Range request")
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, data) {
		t.Errorf("resumed file has %d bytes, want %d", len(got), len(data))
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "f")
	if err := testDownloader().Fetch(context.Background(), srv.URL+"/f", dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := testDownloader().Fetch(context.Background(), srv.URL+"/missing", filepath.Join(t.TempDir(), "m"))
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("404 should not be retried, calls = %d", calls.Load())
	}
}

func TestLockExclusive(t *testing.T) {
	dir := t.TempDir()
	fl, err := Lock(dir)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer fl.Unlock()

	if _, err := Lock(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Lock: expected ErrLocked, got %v", err)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	if err := os.WriteFile(src, makeZip(t, map[string]string{
		"../escape.txt": "x",
		"ok.txt":        "y",
	}), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Extract(src, filepath.Join(dir, "out"), nil)
	if !errors.Is(err, ErrUnsafePath) {
		t.Fatalf("expected ErrUnsafePath, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Error("traversal entry was written")
	}
}

func TestExtractKeepsMixedTopLevel(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mixed.zip")
	if err := os.WriteFile(src, makeZip(t, map[string]string{
		"a/one.txt": "1",
		"two.txt":   "2",
	}), 0644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out")
	if _, err := Extract(src, out, nil); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for _, p := range []string{"a/one.txt", "two.txt"} {
		if _, err := os.Stat(filepath.Join(out, p)); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}
}

func TestVerifySHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("abc"))
	if err := VerifySHA256(path, hex.EncodeToString(sum[:])); err != nil {
		t.Errorf("VerifySHA256 good digest: %v", err)
	}
	if err := VerifySHA256(path, strings.Repeat("0", 64)); !errors.Is(err, ErrChecksum) {
		t.Errorf("expected ErrChecksum, got %v", err)
	}
	if err := VerifySHA256(path, ""); err != nil {
		t.Errorf("empty digest should skip verification: %v", err)
	}
}

func TestFileName(t *testing.T) {
	name, err := FileName("https://huggingface.co/r/resolve/main/v1-5.safetensors?download=true")
	if err != nil {
		t.Fatal(err)
	}
	if name != "v1-5.safetensors" {
		t.Errorf("FileName = %q", name)
	}
	if _, err := FileName("https://example.com/"); err == nil {
		t.Error("expected error for URL without file name")
	}
}
