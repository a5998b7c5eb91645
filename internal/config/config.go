package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"tagsync/internal/layer"
	"tagsync/internal/tag"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "tagsync.yaml"

type Config struct {
	Project struct {
		Root         string   `yaml:"root" validate:"required"`
		Ignore       []string `yaml:"ignore"`
		MaxFileBytes int64    `yaml:"max_file_bytes" validate:"gte=0"`
		Workers      int      `yaml:"workers" validate:"gte=0,lte=64"`
	} `yaml:"project"`
	Tag struct {
		Pattern     string `yaml:"pattern" validate:"required"`
		Annotation  string `yaml:"annotation" validate:"required"`
		Placeholder string `yaml:"placeholder" validate:"required"`
	} `yaml:"tag"`
	Layers   layer.Rules `yaml:"layers"`
	Resolver struct {
		MaxClosureIterations int  `yaml:"max_closure_iterations" validate:"gte=1,lte=100"`
		MaxReferenceDepth    int  `yaml:"max_reference_depth" validate:"gte=0,lte=16"`
		MaxWalkDepth         int  `yaml:"max_walk_depth" validate:"gte=8"`
		TextHeuristic        bool `yaml:"text_heuristic"`
	} `yaml:"resolver"`
	Store struct {
		Path string `yaml:"path" validate:"required"`
	} `yaml:"store"`
	Log struct {
		Level string `yaml:"level" validate:"oneof=debug info warn error"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Project.Root = "."
	cfg.Project.Ignore = []string{".git", "target", "build", "out", "node_modules", ".idea", ".gradle"}
	cfg.Project.MaxFileBytes = 2 << 20
	cfg.Tag.Pattern = tag.DefaultPattern
	cfg.Tag.Annotation = "ApiMsgId"
	cfg.Tag.Placeholder = "MSG_ID_HERE"
	cfg.Layers = layer.DefaultRules()
	cfg.Resolver.MaxClosureIterations = 10
	cfg.Resolver.MaxReferenceDepth = 3
	cfg.Resolver.MaxWalkDepth = 256
	cfg.Resolver.TextHeuristic = true
	cfg.Store.Path = ".tagsync.db"
	cfg.Log.Level = "info"
	return &cfg
}

// LoadConfig reads .env, then the YAML file over the defaults, then
// TAGSYNC_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if root := os.Getenv("TAGSYNC_ROOT"); root != "" {
		cfg.Project.Root = root
	}
	if db := os.Getenv("TAGSYNC_DB"); db != "" {
		cfg.Store.Path = db
	}
	if level := os.Getenv("TAGSYNC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if pattern := os.Getenv("TAGSYNC_TAG_PATTERN"); pattern != "" {
		cfg.Tag.Pattern = pattern
	}
	if v := os.Getenv("TAGSYNC_TEXT_HEURISTIC"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TAGSYNC_TEXT_HEURISTIC: %w", err)
		}
		cfg.Resolver.TextHeuristic = b
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := tag.NewCodec(c.Tag.Pattern); err != nil {
		return err
	}
	return nil
}
