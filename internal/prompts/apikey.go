package prompts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/config"
)

var (
	// ErrAPIKeyMissing is returned when no key is configured and the key file does not exist.
	ErrAPIKeyMissing = errors.New("apikey.txt file not found. Please create it with your OpenAI API key")
	// ErrAPIKeyEmpty is returned when the key file exists but holds no key.
	ErrAPIKeyEmpty = errors.New("API key is empty")
)

// LoadAPIKey resolves the OpenAI key: the configured value, then
// OPENAI_API_KEY, then the key file. A relative key file is looked up in the
// working directory first and the data dir second.
func LoadAPIKey(cfg config.OpenAIConfig) (string, error) {
	if k := strings.TrimSpace(cfg.APIKey); k != "" {
		return k, nil
	}
	if k := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); k != "" {
		return k, nil
	}

	name := cfg.APIKeyFile
	if name == "" {
		name = "apikey.txt"
	}
	paths := []string{name}
	if !filepath.IsAbs(name) {
		paths = append(paths, filepath.Join(config.DataDir(), name))
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("error loading API key: %w", err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("%w: %s", ErrAPIKeyEmpty, p)
		}
		return key, nil
	}
	return "", ErrAPIKeyMissing
}
