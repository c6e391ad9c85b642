// Package gpuprobe reports the local NVIDIA GPUs via nvidia-smi.
package gpuprobe

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoGPU means no usable local GPU was found.
var ErrNoGPU = errors.New("no local GPU detected")

// GPU is a single device reported by nvidia-smi.
type GPU struct {
	Index          int    `json:"index"`
	Name           string `json:"name"`
	MemoryTotalMiB int64  `json:"memory_total_mib"`
	MemoryFreeMiB  int64  `json:"memory_free_mib"`
}

// Command is the probe invocation.
var Command = []string{
	"nvidia-smi",
	"--query-gpu=index,name,memory.total,memory.free",
	"--format=csv,noheader,nounits",
}

// Prober runs nvidia-smi. Run may be replaced in tests.
type Prober struct {
	Run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Probe lists local GPUs. It returns ErrNoGPU when the tool is missing,
// fails, or reports nothing.
func (p *Prober) Probe(ctx context.Context) ([]GPU, error) {
	run := p.Run
	if run == nil {
		run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		}
	}

	out, err := run(ctx, Command[0], Command[1:]...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGPU, err)
	}
	gpus, err := Parse(strings.NewReader(string(out)))
	if err != nil {
		return nil, err
	}
	if len(gpus) == 0 {
		return nil, ErrNoGPU
	}
	return gpus, nil
}

// Parse reads nvidia-smi csv,noheader,nounits output.
func Parse(r io.Reader) ([]GPU, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = 4

	var gpus []GPU
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse nvidia-smi output: %w", err)
		}

		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("gpu index %q: %w", rec[0], err)
		}
		total, _ := strconv.ParseInt(strings.TrimSpace(rec[2]), 10, 64)
		free, _ := strconv.ParseInt(strings.TrimSpace(rec[3]), 10, 64)

		gpus = append(gpus, GPU{
			Index:          idx,
			Name:           strings.TrimSpace(rec[1]),
			MemoryTotalMiB: total,
			MemoryFreeMiB:  free,
		})
	}
	return gpus, nil
}
