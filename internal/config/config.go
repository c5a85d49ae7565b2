package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrInvalidJSON    = errors.New("invalid config JSON")
	ErrInvalidBudget  = errors.New("max_context_chars must be positive")
	ErrInvalidTimeout = errors.New("timeouts must be positive")
)

// Defaults for a local Ollama-style backend.
const (
	DefaultBackendURL      = "http://localhost:11434"
	DefaultModel           = "codellama:7b"
	DefaultMaxContextChars = 24000
	DefaultDocumentCap     = 50 * 1024
	DefaultRequestTimeout  = 120 * time.Second
	DefaultHealthTimeout   = 3 * time.Second
)

// Options are the generation options forwarded to the backend verbatim.
type Options struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	NumPredict    int     `json:"num_predict"`
	NumCtx        int     `json:"num_ctx"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

// Config holds the global TITAN Forge configuration.
type Config struct {
	BackendURL      string   `json:"backend_url"`
	Model           string   `json:"model"`
	TitleModel      string   `json:"title_model"`      // Model for auto-generating session titles (cheap/fast)
	MaxContextChars int      `json:"max_context_chars"` // Character budget for one context bundle
	DocumentCap     int      `json:"document_cap"`      // Per-document byte cap before truncation
	RequestSeconds  int      `json:"request_seconds"`   // Generation timeout in seconds
	ExcludeGlobs    []string `json:"exclude_globs"`     // Workspace listing exclusions
	Options         *Options `json:"options"`
}

// Load reads the config from ~/.config/titanforge/config.json.
// A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "titanforge", "config.json")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrInvalidJSON
	}

	// .env in the working directory, then process env, override file values.
	godotenv.Load()
	if v := os.Getenv("TITAN_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}
	if v := os.Getenv("TITAN_MODEL"); v != "" {
		cfg.Model = v
	}

	applyDefaults(&cfg)

	if cfg.MaxContextChars <= 0 || cfg.DocumentCap <= 0 {
		return nil, ErrInvalidBudget
	}
	if cfg.RequestSeconds <= 0 {
		return nil, ErrInvalidTimeout
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BackendURL == "" {
		cfg.BackendURL = DefaultBackendURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.TitleModel == "" {
		cfg.TitleModel = cfg.Model
	}
	if cfg.MaxContextChars == 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.DocumentCap == 0 {
		cfg.DocumentCap = DefaultDocumentCap
	}
	if cfg.RequestSeconds == 0 {
		cfg.RequestSeconds = int(DefaultRequestTimeout / time.Second)
	}
	if len(cfg.ExcludeGlobs) == 0 {
		cfg.ExcludeGlobs = []string{".git", "node_modules", "dist", "build", "*.min.js"}
	}
	if cfg.Options == nil {
		cfg.Options = &Options{
			Temperature:   0.7,
			TopP:          0.9,
			TopK:          40,
			NumPredict:    1024,
			NumCtx:        8192,
			RepeatPenalty: 1.1,
		}
	}
}

// RequestTimeout returns the generation timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestSeconds) * time.Second
}
