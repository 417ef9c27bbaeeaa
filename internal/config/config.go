package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github-project-sampler/internal/common"
	"github-project-sampler/internal/domain"
)

// Config holds the collection settings read from config.json
type Config struct {
	SizeCategories      domain.SizeCategories `json:"size_categories"`
	ProjectsPerCategory int                   `json:"projects_per_category"`
	Languages           []string              `json:"languages"`
	SearchParameters    SearchParameters      `json:"search_parameters"`
	TargetYear          int                   `json:"target_year"`
	OutputFile          string                `json:"output_file"`

	// Pacing
	RequestsPerSecond float64 `json:"requests_per_second"`
	PagePauseSeconds  float64 `json:"page_pause_seconds"`
	MaxPages          int     `json:"max_pages"`

	Storage       StorageConfig      `json:"storage"`
	Notifications NotificationConfig `json:"notifications"`
	Log           LogConfig          `json:"log"`
}

// SearchParameters are the qualifiers of the repository search query
type SearchParameters struct {
	MinStars     int    `json:"min_stars"`
	CreatedRange string `json:"created_range"`
	LastPushed   string `json:"last_pushed"`
}

// StorageConfig configures optional mirrors of the output file
type StorageConfig struct {
	PostgresDSN string `json:"postgres_dsn"`
}

// NotificationConfig configures per-project notifications
type NotificationConfig struct {
	FeishuWebhook string `json:"feishu_webhook"`
	NATSURL       string `json:"nats_url"`
	NATSSubject   string `json:"nats_subject"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
		ProjectsPerCategory: 30,
		Languages:           []string{"java", "python"},
		SearchParameters: SearchParameters{
			MinStars:     10,
			CreatedRange: "2015-01-01..2020-01-01",
			LastPushed:   "<2020-12-31",
		},
		TargetYear:       2020,
		OutputFile:       "github_projects.json",
		PagePauseSeconds: 2,
		MaxPages:         50,
		Notifications: NotificationConfig{
			NATSSubject: "github.projects",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.WrapError(common.ErrCodeInvalidConfig, fmt.Sprintf("config file not found: %s", path), err)
		}
		return nil, common.WrapError(common.ErrCodeInvalidConfig, "failed to read config file", err)
	}
	return Parse(data)
}

// Parse decodes a configuration document over the defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, common.WrapError(common.ErrCodeInvalidConfig, "failed to parse config", err)
	}

	for i, lang := range cfg.Languages {
		cfg.Languages[i] = strings.ToLower(strings.TrimSpace(lang))
	}

	if err := cfg.Validate(); err != nil {
		return nil, common.WrapError(common.ErrCodeInvalidConfig, "invalid config", err)
	}
	return cfg, nil
}

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	if err := c.SizeCategories.Validate(); err != nil {
		return err
	}
	if c.ProjectsPerCategory <= 0 {
		return fmt.Errorf("projects_per_category must be positive, got %d", c.ProjectsPerCategory)
	}
	if len(c.Languages) == 0 {
		return errors.New("languages is empty")
	}
	seen := make(map[string]bool, len(c.Languages))
	for _, lang := range c.Languages {
		if seen[lang] {
			return fmt.Errorf("duplicate language %q", lang)
		}
		seen[lang] = true
		if len(domain.ExtensionsFor(lang)) == 0 {
			return fmt.Errorf("no file extensions known for language %q", lang)
		}
	}
	if c.TargetYear <= 0 {
		return fmt.Errorf("target_year must be positive, got %d", c.TargetYear)
	}
	if c.OutputFile == "" {
		return errors.New("output_file is empty")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive, got %d", c.MaxPages)
	}
	if c.RequestsPerSecond < 0 || c.PagePauseSeconds < 0 {
		return errors.New("requests_per_second and page_pause_seconds must not be negative")
	}
	return nil
}

// Metadata builds the metadata envelope written with every save
func (c *Config) Metadata(runID string) domain.Metadata {
	return domain.Metadata{
		RunID:               runID,
		ProjectsPerCategory: c.ProjectsPerCategory,
		SizeCategories:      c.SizeCategories,
		Languages:           c.Languages,
	}
}
