package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Output struct {
		Dir      string `yaml:"dir"`
		Manifest string `yaml:"manifest"` // file name of the evidence index JSON
		Report   string `yaml:"report"`   // file name of the run report JSON
	} `yaml:"output"`
	AI struct {
		Provider         string `yaml:"provider"`
		Model            string `yaml:"model"`
		APIKey           string `yaml:"api_key"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
		TransportRetries int    `yaml:"transport_retries"`
	} `yaml:"ai"`
	Generation struct {
		MaxRetries int `yaml:"max_retries"` // content-quality retries per item
		Workers    int `yaml:"workers"`     // concurrent LLM calls
	} `yaml:"generation"`
	Checker struct {
		RulesFile string `yaml:"rules_file"` // optional YAML rule file
	} `yaml:"checker"`
	PDF struct {
		FontPath     string `yaml:"font_path"` // TTF with CJK coverage
		FontName     string `yaml:"font_name"`
		LinesPerPage int    `yaml:"lines_per_page"`
		WrapWidth    int    `yaml:"wrap_width"` // runes per line
		Cover        bool   `yaml:"cover"`
		TOC          bool   `yaml:"toc"`
	} `yaml:"pdf"`
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Retry counts are pre-seeded with a sentinel so an explicit 0 in
	// the file is distinguishable from an absent key.
	var cfg Config
	cfg.AI.TransportRetries = -1
	cfg.Generation.MaxRetries = -1
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	// 3. Override with environment variables if present
	if apiKey := os.Getenv("DOCKETGEN_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("DOCKETGEN_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if workers := os.Getenv("DOCKETGEN_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return nil, fmt.Errorf("invalid DOCKETGEN_WORKERS: %w", err)
		}
		cfg.Generation.Workers = n
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Output.Dir == "" {
		c.Output.Dir = "outputs"
	}
	if c.Output.Manifest == "" {
		c.Output.Manifest = "evidence_index.json"
	}
	if c.Output.Report == "" {
		c.Output.Report = "run_report.json"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-1.5-pro"
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 180
	}
	if c.AI.TransportRetries == -1 {
		c.AI.TransportRetries = 3
	}
	if c.Generation.MaxRetries == -1 {
		c.Generation.MaxRetries = 3
	}
	if c.Generation.Workers == 0 {
		c.Generation.Workers = 4
	}
	if c.PDF.FontName == "" && c.PDF.FontPath != "" {
		c.PDF.FontName = "cjk"
	}
	if c.PDF.LinesPerPage == 0 {
		c.PDF.LinesPerPage = 40
	}
	if c.PDF.WrapWidth == 0 {
		c.PDF.WrapWidth = 44
	}
}

func (c *Config) validate() error {
	if c.Generation.Workers < 1 || c.Generation.Workers > 8 {
		return fmt.Errorf("generation.workers must be between 1 and 8, got %d", c.Generation.Workers)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("generation.max_retries must not be negative")
	}
	if c.AI.TransportRetries < 0 {
		return fmt.Errorf("ai.transport_retries must not be negative")
	}
	if c.PDF.LinesPerPage < 4 {
		return fmt.Errorf("pdf.lines_per_page too small: %d", c.PDF.LinesPerPage)
	}
	return nil
}
