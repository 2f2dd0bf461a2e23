package config

import (
	"time"

	"tasfish/internal/observability"
)

// Config is the full runtime configuration.
type Config struct {
	Documents     DocumentsConfig      `yaml:"documents"`
	RAG           RAGConfig            `yaml:"rag"`
	Router        RouterConfig         `yaml:"router"`
	LLM           LLMConfig            `yaml:"llm"`
	Tools         ToolsConfig          `yaml:"tools"`
	Server        ServerConfig         `yaml:"server"`
	Observability observability.Config `yaml:"observability"`
}

// DocumentsConfig names the regulation guides to ingest.
type DocumentsConfig struct {
	BasePath string   `yaml:"base_path" validate:"required"`
	Sources  []string `yaml:"sources" validate:"dive,required"`
}

// RAGConfig controls chunking, the vector store and retrieval.
type RAGConfig struct {
	ChunkSize          int             `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap       int             `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	TopK               int             `yaml:"top_k" validate:"gt=0,lte=50"`
	MinSimilarity      float32         `yaml:"min_similarity" validate:"gte=0,lte=1"`
	ContextTokenBudget int             `yaml:"context_token_budget" validate:"gte=0"`
	VectorDB           VectorDBConfig  `yaml:"vector_db"`
	Embedding          EmbeddingConfig `yaml:"embedding"`
}

// VectorDBConfig selects the chromem collection. An empty PersistPath keeps
// the index in memory.
type VectorDBConfig struct {
	Name        string `yaml:"name" validate:"required"`
	PersistPath string `yaml:"persist_path"`
	Compress    bool   `yaml:"compress"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" validate:"oneof=hash openai"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Dimensions int    `yaml:"dimensions" validate:"gt=0"`
	CacheSize  int    `yaml:"cache_size" validate:"gte=0"`
	APIKey     string `yaml:"-"`
}

// RouterConfig selects the classification strategy.
type RouterConfig struct {
	Strategy string `yaml:"strategy" validate:"oneof=llm rules"`
}

// LLMConfig holds text-generation providers. RequestsPerMinute caps
// provider calls; 0 disables the limiter.
type LLMConfig struct {
	DefaultProvider   string         `yaml:"default_provider" validate:"oneof=groq gemini mock"`
	Timeout           time.Duration  `yaml:"timeout" validate:"gt=0"`
	MaxRetries        int            `yaml:"max_retries" validate:"gte=0,lte=10"`
	RequestsPerMinute int            `yaml:"requests_per_minute" validate:"gte=0"`
	CacheSize         int            `yaml:"cache_size" validate:"gte=0"`
	Groq              ProviderConfig `yaml:"groq"`
	Gemini            ProviderConfig `yaml:"gemini"`
}

// ProviderConfig is the per-provider model configuration.
type ProviderConfig struct {
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	APIKey      string  `yaml:"-"`
}

// Provider returns the settings of the named provider.
func (c LLMConfig) Provider(name string) ProviderConfig {
	switch name {
	case "gemini":
		return c.Gemini
	default:
		return c.Groq
	}
}

// ToolsConfig holds per-tool enable flags and provider settings.
type ToolsConfig struct {
	Timeout   time.Duration   `yaml:"timeout" validate:"gt=0"`
	LegalSize LegalSizeConfig `yaml:"legal_size"`
	Weather   WeatherConfig   `yaml:"weather_api"`
}

// LegalSizeConfig configures check_legal_size. An empty SpeciesFile uses the
// embedded table.
type LegalSizeConfig struct {
	Enable      bool   `yaml:"enable"`
	SpeciesFile string `yaml:"species_file"`
}

// WeatherConfig configures get_fishing_weather.
type WeatherConfig struct {
	Enable      bool          `yaml:"enable"`
	Provider    string        `yaml:"provider"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url" validate:"omitempty,url"`
	Region      string        `yaml:"region"`
	CountryCode string        `yaml:"country_code"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	APIKey      string        `yaml:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port" validate:"gt=0,lte=65535"`
	RequestsPerMinute int           `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int           `yaml:"burst" validate:"gte=0"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	obs := observability.DefaultConfig()
	return Config{
		Documents: DocumentsConfig{
			BasePath: "data",
			Sources:  []string{"tas_fishing_guide.json"},
		},
		RAG: RAGConfig{
			ChunkSize:          300,
			ChunkOverlap:       50,
			TopK:               5,
			ContextTokenBudget: 3000,
			VectorDB:           VectorDBConfig{Name: "tas_fishing"},
			Embedding: EmbeddingConfig{
				Provider:   "hash",
				Model:      "text-embedding-3-small",
				BaseURL:    "https://api.openai.com/v1",
				APIKeyEnv:  "OPENAI_API_KEY",
				Dimensions: 256,
				CacheSize:  1024,
			},
		},
		Router: RouterConfig{Strategy: "llm"},
		LLM: LLMConfig{
			DefaultProvider:   "groq",
			Timeout:           60 * time.Second,
			MaxRetries:        2,
			RequestsPerMinute: 30,
			CacheSize:         256,
			Groq: ProviderConfig{
				Model:       "llama-3.1-8b-instant",
				Temperature: 0.2,
				MaxTokens:   1024,
				BaseURL:     "https://api.groq.com/openai/v1",
				APIKeyEnv:   "GROQ_API_KEY",
			},
			Gemini: ProviderConfig{
				Model:       "gemini-2.0-flash",
				Temperature: 0.2,
				MaxTokens:   1024,
				APIKeyEnv:   "GOOGLE_API_KEY",
			},
		},
		Tools: ToolsConfig{
			Timeout:   10 * time.Second,
			LegalSize: LegalSizeConfig{Enable: true},
			Weather: WeatherConfig{
				Enable:      true,
				Provider:    "openweathermap",
				APIKeyEnv:   "WEATHER_API_KEY",
				BaseURL:     "https://api.openweathermap.org/data/2.5",
				Region:      "Tasmania",
				CountryCode: "AU",
				Timeout:     10 * time.Second,
			},
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			RequestsPerMinute: 60,
			Burst:             10,
			AllowedOrigins:    []string{"*"},
			ShutdownTimeout:   10 * time.Second,
		},
		Observability: obs,
	}
}
