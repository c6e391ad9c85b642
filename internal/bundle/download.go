package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
)

// Downloader fetches assets with resume, retry and progress bars.
type Downloader struct {
	HTTPClient *http.Client
	Progress   *mpb.Progress // nil disables bars

	// MaxElapsed bounds the total time spent retrying one asset.
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration

	barMu sync.Mutex
}

// NewDownloader returns a Downloader with the default retry policy.
func NewDownloader(progress *mpb.Progress) *Downloader {
	return &Downloader{
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 60 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   60 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       60 * time.Second,
			},
		},
		Progress:        progress,
		MaxElapsed:      5 * time.Minute,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}
}

// FileName derives the local file name from an asset URL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("URL %q has no file name", rawURL)
	}
	return name, nil
}

// Fetch downloads rawURL to destPath, resuming from destPath+".partial".
func (d *Downloader) Fetch(ctx context.Context, rawURL, destPath string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.InitialInterval
	b.MaxInterval = d.MaxInterval
	b.MaxElapsedTime = d.MaxElapsed

	logger := logging.Component("bundle").WithField("url", rawURL)

	return backoff.RetryNotify(func() error {
		err := d.fetchOnce(ctx, rawURL, destPath)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.WithError(err).Warnf("download failed, retrying in %s", wait.Round(time.Millisecond))
	})
}

func (d *Downloader) fetchOnce(ctx context.Context, rawURL, destPath string) error {
	partial := destPath + ".partial"

	var startByte int64
	if info, err := os.Stat(partial); err == nil {
		startByte = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	if startByte > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startByte))
	}
	if token := os.Getenv("HF_TOKEN"); token != "" && strings.Contains(req.URL.Host, "huggingface.co") {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	var total int64
	switch {
	case startByte > 0 && resp.StatusCode == http.StatusPartialContent:
		flags |= os.O_APPEND
		total = startByte + resp.ContentLength
	case resp.StatusCode == http.StatusOK:
		// Server ignored Range or this is a fresh download.
		startByte = 0
		flags |= os.O_TRUNC
		total = resp.ContentLength
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// The partial file already holds everything.
		return os.Rename(partial, destPath)
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("download failed with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return backoff.Permanent(fmt.Errorf("create dir: %w", err))
	}
	f, err := os.OpenFile(partial, flags, 0644)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("open file: %w", err))
	}

	body := io.Reader(resp.Body)
	bar := d.addBar(filepath.Base(destPath), total, startByte)
	if bar != nil {
		defer func() {
			// Abort leaves a half-drawn bar otherwise.
			if !bar.Completed() {
				bar.Abort(true)
			}
		}()
		rc := bar.ProxyReader(resp.Body)
		defer rc.Close()
		body = rc
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", partial, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", partial, err)
	}
	if bar != nil && total <= 0 {
		// Unknown length: the bytes read so far are the total.
		bar.SetTotal(-1, true)
	}

	if err := os.Rename(partial, destPath); err != nil {
		return backoff.Permanent(fmt.Errorf("rename file: %w", err))
	}
	return nil
}

func (d *Downloader) addBar(name string, total, current int64) *mpb.Bar {
	if d.Progress == nil {
		return nil
	}
	d.barMu.Lock()
	defer d.barMu.Unlock()

	if total <= 0 {
		total = 0
	}
	bar := d.Progress.AddBar(total,
		mpb.BarRemoveOnComplete(),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)
	if current > 0 {
		bar.SetCurrent(current)
	}
	return bar
}

// VerifySHA256 checks the file digest when want is non-empty.
func VerifySHA256(path, want string) error {
	if want == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, want) {
		return fmt.Errorf("%w: %s has %s, want %s", ErrChecksum, filepath.Base(path), got, want)
	}
	return nil
}
