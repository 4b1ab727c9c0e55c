package model

import (
	"strings"
	"time"
)

// Config is the complete factaudit configuration.
// Field tags serve both viper (mapstructure) and `config show` (yaml).
type Config struct {
	Extractor    EndpointConfig     `yaml:"extractor" mapstructure:"extractor"`
	Verifier     VerifierConfig     `yaml:"verifier" mapstructure:"verifier"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
}

// EndpointConfig locates one external collaborator endpoint
type EndpointConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Path    string        `yaml:"path" mapstructure:"path"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// URL joins the base URL and path
func (e EndpointConfig) URL() string {
	return strings.TrimRight(e.BaseURL, "/") + e.Path
}

// VerifierConfig configures the streaming verification endpoint
type VerifierConfig struct {
	EndpointConfig `yaml:",inline" mapstructure:",squash"`
	EventMarker    string `yaml:"event_marker" mapstructure:"event_marker"` // Prefix of event lines
	ChunkSize      int    `yaml:"chunk_size" mapstructure:"chunk_size"`     // Read size per stream chunk
}

// HTTPConfig holds shared HTTP client settings
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // Document fetch timeout
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// RateLimitingConfig bounds the request rate towards collaborators
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// CacheConfig configures the in-process extraction cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ConcurrencyConfig configures batch parallelism (documents, never claims)
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// AuthorityConfig lists domains used to tier evidence that arrives without a tier
type AuthorityConfig struct {
	FilingDomains    []string          `yaml:"filing_domains" mapstructure:"filing_domains"`
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// PathPattern maps a URL path regex to a tier name
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// LLMConfig configures the optional audit summary
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"` // openai, ollama, or empty to disable
	Model          string `yaml:"model" mapstructure:"model"`
	APIKey         string `yaml:"-" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout        int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	StrictEvidence bool   `yaml:"strict_evidence" mapstructure:"strict_evidence"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
	IncludeTrace  bool `yaml:"include_trace" mapstructure:"include_trace"`
}

// ServerConfig configures `factaudit serve`
type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr" mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Extractor: EndpointConfig{
			BaseURL: "http://localhost:8000",
			Path:    "/api/extract",
			Timeout: 60 * time.Second,
		},
		Verifier: VerifierConfig{
			EndpointConfig: EndpointConfig{
				BaseURL: "http://localhost:8000",
				Path:    "/api/verify",
				Timeout: 3 * time.Minute,
			},
			EventMarker: "data: ",
			ChunkSize:   4096,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "factaudit/0.1 (+https://github.com/ppiankov/factaudit)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Authority: AuthorityConfig{
			FilingDomains: []string{
				"sec.gov",
				"efts.sec.gov",
				"xbrl.us",
				"filings.sedar.com",
				"find-and-update.company-information.service.gov.uk",
			},
			PrimaryDomains: []string{
				"bls.gov",
				"bea.gov",
				"census.gov",
				"federalreserve.gov",
				"europa.eu",
				"imf.org",
				"worldbank.org",
				"oecd.org",
				"doi.org",
			},
			SecondaryDomains: []string{
				"reuters.com",
				"bloomberg.com",
				"ft.com",
				"wsj.com",
				"apnews.com",
				"wikipedia.org",
			},
		},
		LLM: LLMConfig{
			Timeout:        30,
			StrictEvidence: true,
			MaxTokens:      800,
		},
		Output: OutputConfig{
			IncludeFooter: true,
			IncludeTrace:  true,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}
