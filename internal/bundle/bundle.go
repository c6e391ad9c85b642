// Package bundle installs the web UI bundle and model checkpoints into an
// install directory.
package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/logging"
)

const (
	lockFile    = ".zerotrace.lock"
	receiptFile = ".zerotrace-install.json"
	downloadDir = ".downloads"

	// maxParallel bounds concurrent asset downloads.
	maxParallel = 3
)

var (
	ErrLocked     = errors.New("install directory is locked by another zerotrace process")
	ErrUnsafePath = errors.New("archive entry escapes install directory")
	ErrChecksum   = errors.New("checksum mismatch")
	ErrNoAssets   = errors.New("nothing to install: set bundle.url or bundle.checkpoints")
)

// Asset is one thing to fetch into the install dir.
type Asset struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Dest    string `json:"dest"` // directory, relative to the install dir
	Extract bool   `json:"extract"`
	SHA256  string `json:"sha256,omitempty"`
}

// Plan is everything an install run should fetch.
type Plan struct {
	InstallDir string
	Assets     []Asset
	Force      bool // re-download even if the file is already present
}

// Receipt records a finished install.
type Receipt struct {
	ID          string    `json:"id"`
	InstalledAt time.Time `json:"installed_at"`
	Assets      []Asset   `json:"assets"`
	Files       []string  `json:"files"`
}

// PlanFromConfig builds the install plan from the bundle settings.
func PlanFromConfig(cfg *config.Config) (*Plan, error) {
	plan := &Plan{InstallDir: cfg.InstallDir}

	if cfg.Bundle.URL != "" {
		name, err := FileName(cfg.Bundle.URL)
		if err != nil {
			return nil, err
		}
		plan.Assets = append(plan.Assets, Asset{
			Name:    name,
			URL:     cfg.Bundle.URL,
			Dest:    ".",
			Extract: strings.HasSuffix(strings.ToLower(name), ".zip"),
			SHA256:  cfg.Bundle.SHA256,
		})
	}

	ckptRel, err := filepath.Rel(cfg.InstallDir, config.CheckpointDir(cfg.InstallDir))
	if err != nil {
		return nil, err
	}
	for _, u := range cfg.Bundle.Checkpoints {
		name, err := FileName(u)
		if err != nil {
			return nil, err
		}
		plan.Assets = append(plan.Assets, Asset{Name: name, URL: u, Dest: ckptRel})
	}

	if len(plan.Assets) == 0 {
		return nil, ErrNoAssets
	}
	return plan, nil
}

// Installer runs install plans.
type Installer struct {
	Downloader *Downloader
	Out        io.Writer // extraction progress; nil disables it
}

// Lock takes the exclusive install-dir lock. The caller must Unlock.
func Lock(installDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(installDir, 0755); err != nil {
		return nil, fmt.Errorf("create install dir: %w", err)
	}
	fl := flock.New(filepath.Join(installDir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fl, nil
}

// Install fetches and unpacks every asset in plan and writes the receipt.
func (in *Installer) Install(ctx context.Context, plan *Plan) (*Receipt, error) {
	if len(plan.Assets) == 0 {
		return nil, ErrNoAssets
	}

	fl, err := Lock(plan.InstallDir)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	logger := logging.Component("bundle")
	receipt := &Receipt{
		ID:     uuid.New().String(),
		Assets: plan.Assets,
	}

	var (
		mu    sync.Mutex
		files []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, asset := range plan.Assets {
		g.Go(func() error {
			written, err := in.installAsset(gctx, plan, asset)
			if err != nil {
				return fmt.Errorf("%s: %w", asset.Name, err)
			}
			mu.Lock()
			files = append(files, written...)
			mu.Unlock()
			logger.WithField("asset", asset.Name).Info("installed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(files)
	receipt.Files = files
	receipt.InstalledAt = time.Now().UTC()

	if err := writeReceipt(plan.InstallDir, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (in *Installer) installAsset(ctx context.Context, plan *Plan, asset Asset) ([]string, error) {
	destDir, err := safeJoin(plan.InstallDir, asset.Dest)
	if err != nil {
		return nil, err
	}

	// Archives are staged under .downloads and removed after extraction.
	fetchDir := destDir
	if asset.Extract {
		fetchDir = filepath.Join(plan.InstallDir, downloadDir)
	}
	if err := os.MkdirAll(fetchDir, 0755); err != nil {
		return nil, err
	}
	target := filepath.Join(fetchDir, asset.Name)

	if _, err := os.Stat(target); err == nil && !plan.Force && !asset.Extract {
		logging.Component("bundle").WithField("asset", asset.Name).Info("already present, skipping download")
	} else {
		if err := in.Downloader.Fetch(ctx, asset.URL, target); err != nil {
			return nil, err
		}
	}

	if err := VerifySHA256(target, asset.SHA256); err != nil {
		return nil, err
	}

	if !asset.Extract {
		rel, err := filepath.Rel(plan.InstallDir, target)
		if err != nil {
			return nil, err
		}
		return []string{filepath.ToSlash(rel)}, nil
	}

	written, err := Extract(target, destDir, in.Out)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(target); err != nil {
		logging.Component("bundle").WithError(err).Warn("could not remove staged archive")
	}

	rel, err := filepath.Rel(plan.InstallDir, destDir)
	if err != nil {
		return nil, err
	}
	for i, w := range written {
		written[i] = filepath.ToSlash(filepath.Join(rel, w))
	}
	return written, nil
}

func writeReceipt(dir string, r *Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, receiptFile), data, 0644)
}

// ReadReceipt loads the install record from dir.
func ReadReceipt(dir string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(dir, receiptFile))
	if err != nil {
		return nil, err
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse receipt: %w", err)
	}
	return &r, nil
}
