package model

import (
	"runtime"
	"time"
)

// Config holds all runtime settings
type Config struct {
	Registry     RegistryConfig     `yaml:"registry" mapstructure:"registry"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
}

// RegistryConfig describes the institution CSV layout
type RegistryConfig struct {
	InputFile      string `yaml:"input_file" mapstructure:"input_file"`
	Delimiter      string `yaml:"delimiter" mapstructure:"delimiter"`
	CategoryColumn string `yaml:"category_column" mapstructure:"category_column"`
	Category       string `yaml:"category" mapstructure:"category"`
	NameColumn     string `yaml:"name_column" mapstructure:"name_column"`
	SiteColumn     string `yaml:"site_column" mapstructure:"site_column"`
}

// SearchConfig configures the search collaborator
type SearchConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"` // google
	APIKey            string  `yaml:"-" mapstructure:"api_key"`
	EngineID          string  `yaml:"engine_id" mapstructure:"engine_id"`
	BaseURL           string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Results           int     `yaml:"results" mapstructure:"results"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ExtractionConfig bounds the per-URL extraction work
type ExtractionConfig struct {
	MaxURLs             int     `yaml:"max_urls" mapstructure:"max_urls"`
	ChunkTokenThreshold int     `yaml:"chunk_token_threshold" mapstructure:"chunk_token_threshold"`
	OverlapRate         float64 `yaml:"overlap_rate" mapstructure:"overlap_rate"`
	MaxChunks           int     `yaml:"max_chunks" mapstructure:"max_chunks"`
	ChunkWorkers        int     `yaml:"chunk_workers" mapstructure:"chunk_workers"`
}

// LLMConfig configures the judgment model
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama (or openai/<model>)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// HTTPConfig configures page fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the search/extraction cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig bounds simultaneous in-flight combinations
type ConcurrencyConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// RateLimitingConfig controls per-domain fetch politeness
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// StoreConfig configures the append-only result store
type StoreConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	Sync bool   `yaml:"sync" mapstructure:"sync"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			InputFile:      "../einrichtungen/data/hochschulen.csv",
			Delimiter:      ",",
			CategoryColumn: "Hochschultyp",
			Category:       "Universität",
			NameColumn:     "Hochschulname",
			SiteColumn:     "website",
		},
		Search: SearchConfig{
			Provider:          "google",
			Results:           10,
			RequestsPerSecond: 1,
		},
		Extraction: ExtractionConfig{
			MaxURLs:             5,
			ChunkTokenThreshold: 1000,
			OverlapRate:         0.05,
			MaxChunks:           5,
			ChunkWorkers:        3,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Timeout:     60,
			MaxTokens:   800,
			Temperature: 0,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "claimprobe/0.1 (+https://github.com/ppiankov/claimprobe)",
			MaxBodyBytes:  10_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".claimprobe-cache",
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers:     runtime.NumCPU(),
			MaxAttempts: 1,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Store: StoreConfig{
			Dir:  ".",
			Sync: false,
		},
	}
}
