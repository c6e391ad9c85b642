package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("ZEROTRACE_DATA_DIR", t.TempDir())

	cfg := DefaultConfig()
	assert.Equal(t, 7860, cfg.WebUI.Port)
	assert.Equal(t, "127.0.0.1", cfg.WebUI.Host)
	assert.Equal(t, 20*time.Minute, cfg.WebUI.HealthTimeout)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
	assert.Equal(t, 2*time.Second, cfg.OpenAI.MinInterval)
	assert.Equal(t, 3, cfg.OpenAI.MaxAttempts)
	assert.Equal(t, "apikey.txt", cfg.OpenAI.APIKeyFile)
	assert.Equal(t, ">= 3.10.6, < 3.11", cfg.Runtime.Constraint)
	assert.Equal(t, filepath.Join(os.Getenv("ZEROTRACE_DATA_DIR"), "webui"), cfg.InstallDir)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)

	path := filepath.Join(dir, "custom.yaml")
	yaml := `
install_dir: /opt/webui
webui:
  port: 7000
  share: true
  args: ["--xformers", "--medvram"]
openai:
  model: gpt-4o-mini
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("ZEROTRACE_SERVER_PORT", "9999")

	v := New(path)
	require.NoError(t, ReadFile(v, true))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "/opt/webui", cfg.InstallDir)
	assert.Equal(t, 7000, cfg.WebUI.Port)
	assert.True(t, cfg.WebUI.Share)
	assert.Equal(t, []string{"--xformers", "--medvram"}, cfg.WebUI.Args)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestReadFileMissingImplicit(t *testing.T) {
	t.Setenv("ZEROTRACE_DATA_DIR", t.TempDir())
	t.Chdir(t.TempDir())

	v := New("")
	assert.NoError(t, ReadFile(v, false))
}

func TestReadFileMissingExplicit(t *testing.T) {
	v := New(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, ReadFile(v, true))
}

func TestValidate(t *testing.T) {
	t.Setenv("ZEROTRACE_DATA_DIR", t.TempDir())

	cases := map[string]func(c *Config){
		"empty install dir":  func(c *Config) { c.InstallDir = " " },
		"bad webui port":     func(c *Config) { c.WebUI.Port = 70000 },
		"bad server port":    func(c *Config) { c.Server.Port = 0 },
		"bad constraint":     func(c *Config) { c.Runtime.Constraint = "three ten" },
		"zero health wait":   func(c *Config) { c.WebUI.HealthTimeout = 0 },
		"negative interval":  func(c *Config) { c.OpenAI.MinInterval = -time.Second },
		"no attempts":        func(c *Config) { c.OpenAI.MaxAttempts = 0 },
		"zero timeout":       func(c *Config) { c.OpenAI.Timeout = 0 },
		"unknown log format": func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWebUIURL(t *testing.T) {
	t.Setenv("ZEROTRACE_DATA_DIR", t.TempDir())

	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 7861, "http://127.0.0.1:7861"},
		{"::", 7861, "http://127.0.0.1:7861"},
		{"", 7860, "http://127.0.0.1:7860"},
		{"::1", 7860, "http://[::1]:7860"},
		{"192.168.1.20", 7860, "http://192.168.1.20:7860"},
		{"127.0.0.1", 0, ""},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.WebUI.Host = tt.host
		cfg.WebUI.Port = tt.port
		assert.Equal(t, tt.want, cfg.WebUIURL(), "host %q port %d", tt.host, tt.port)
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ZEROTRACE_DATA_DIR", dir)

	cfg := DefaultConfig()
	cfg.InstallDir = filepath.Join(dir, "a", "b")
	require.NoError(t, EnsureDirs(cfg))

	info, err := os.Stat(cfg.InstallDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
