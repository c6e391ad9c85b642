package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory and DataDir.
const FileName = "zerotrace.yaml"

// Config holds the launcher configuration.
type Config struct {
	InstallDir string

	Bundle   BundleConfig
	Runtime  RuntimeConfig
	WebUI    WebUIConfig
	OpenAI   OpenAIConfig
	Server   ServerConfig
	Log      LogConfig
	Notebook NotebookConfig
}

// BundleConfig describes where the web UI bundle and checkpoints come from.
type BundleConfig struct {
	URL         string
	SHA256      string
	Checkpoints []string
}

// RuntimeConfig pins the language runtime the web UI needs.
type RuntimeConfig struct {
	Python     string // explicit interpreter path; empty = search PATH
	Constraint string // e.g. ">= 3.10.6, < 3.11"
	SkipVenv   bool
}

// WebUIConfig controls how the external web UI is started.
type WebUIConfig struct {
	Host          string
	Port          int
	Share         bool
	Args          []string
	HealthPath    string
	HealthTimeout time.Duration
	UseScript     bool
}

// OpenAIConfig configures the prompt assistant backend.
type OpenAIConfig struct {
	APIKey      string
	APIKeyFile  string
	BaseURL     string
	Model       string
	MinInterval time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// ServerConfig is the bind address of the prompt assistant API.
type ServerConfig struct {
	Host string
	Port int
}

// LogConfig selects logrus level and formatter.
type LogConfig struct {
	Level  string
	Format string // text | json
}

// NotebookConfig is used when generating the hosted notebook.
type NotebookConfig struct {
	RepoURL string
	Branch  string
}

// WebUIURL returns the URL the local web UI is reachable at. Wildcard bind
// hosts map to loopback. It returns "" when webui.port is 0, since an
// auto-allocated port is only known to the process that launched the web UI.
func (c *Config) WebUIURL() string {
	if c.WebUI.Port == 0 {
		return ""
	}
	host := c.WebUI.Host
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.WebUI.Port))
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("install_dir", InstallDir())

	v.SetDefault("bundle.url", "")
	v.SetDefault("bundle.sha256", "")
	v.SetDefault("bundle.checkpoints", []string{})

	v.SetDefault("runtime.python", "")
	v.SetDefault("runtime.constraint", ">= 3.10.6, < 3.11")
	v.SetDefault("runtime.skip_venv", false)

	v.SetDefault("webui.host", "127.0.0.1")
	v.SetDefault("webui.port", 7860)
	v.SetDefault("webui.share", false)
	v.SetDefault("webui.args", []string{})
	v.SetDefault("webui.health_path", "/")
	v.SetDefault("webui.health_timeout", "20m")
	v.SetDefault("webui.use_script", false)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.api_key_file", "apikey.txt")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.min_interval", "2s")
	v.SetDefault("openai.max_attempts", 3)
	v.SetDefault("openai.timeout", "30s")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("notebook.repo_url", "https://github.com/AUTOMATIC1111/stable-diffusion-webui")
	v.SetDefault("notebook.branch", "master")
}

// New returns a viper instance with defaults, env binding and config file
// lookup wired up. configFile may be empty.
func New(configFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("ZEROTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DataDir())
	}
	return v
}

// ReadFile reads the config file if one exists. A missing file is not an error
// unless it was named explicitly.
func ReadFile(v *viper.Viper, explicit bool) error {
	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) && !explicit {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return nil
	}
	return fmt.Errorf("read config: %w", err)
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		InstallDir: v.GetString("install_dir"),
		Bundle: BundleConfig{
			URL:         v.GetString("bundle.url"),
			SHA256:      v.GetString("bundle.sha256"),
			Checkpoints: v.GetStringSlice("bundle.checkpoints"),
		},
		Runtime: RuntimeConfig{
			Python:     v.GetString("runtime.python"),
			Constraint: v.GetString("runtime.constraint"),
			SkipVenv:   v.GetBool("runtime.skip_venv"),
		},
		WebUI: WebUIConfig{
			Host:          v.GetString("webui.host"),
			Port:          v.GetInt("webui.port"),
			Share:         v.GetBool("webui.share"),
			Args:          v.GetStringSlice("webui.args"),
			HealthPath:    v.GetString("webui.health_path"),
			HealthTimeout: v.GetDuration("webui.health_timeout"),
			UseScript:     v.GetBool("webui.use_script"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      v.GetString("openai.api_key"),
			APIKeyFile:  v.GetString("openai.api_key_file"),
			BaseURL:     strings.TrimRight(v.GetString("openai.base_url"), "/"),
			Model:       v.GetString("openai.model"),
			MinInterval: v.GetDuration("openai.min_interval"),
			MaxAttempts: v.GetInt("openai.max_attempts"),
			Timeout:     v.GetDuration("openai.timeout"),
		},
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Notebook: NotebookConfig{
			RepoURL: v.GetString("notebook.repo_url"),
			Branch:  v.GetString("notebook.branch"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a Config built purely from defaults.
func DefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.InstallDir) == "" {
		return errors.New("install_dir must not be empty")
	}
	if c.WebUI.Port < 0 || c.WebUI.Port > 65535 {
		return fmt.Errorf("webui.port out of range: %d", c.WebUI.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := version.NewConstraint(c.Runtime.Constraint); err != nil {
		return fmt.Errorf("runtime.constraint %q: %w", c.Runtime.Constraint, err)
	}
	if c.WebUI.HealthTimeout <= 0 {
		return errors.New("webui.health_timeout must be positive")
	}
	if c.OpenAI.MinInterval < 0 {
		return errors.New("openai.min_interval must not be negative")
	}
	if c.OpenAI.MaxAttempts <= 0 {
		return errors.New("openai.max_attempts must be at least 1")
	}
	if c.OpenAI.Timeout <= 0 {
		return errors.New("openai.timeout must be positive")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}
