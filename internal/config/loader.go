package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault  ValueSource = "default"
	SourceFile     ValueSource = "file"
	SourceEnv      ValueSource = "environment"
	SourceOverride ValueSource = "override"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "tasfish.yaml"

// Metadata contains provenance details for loaded configuration.
type Metadata struct {
	sources  map[string]ValueSource
	path     string
	loadedAt time.Time
}

// Source returns the origin of a dotted field path such as "rag.top_k".
func (m Metadata) Source(field string) ValueSource {
	if src, ok := m.sources[field]; ok {
		return src
	}
	return SourceDefault
}

// Path returns the config file that was read, or "".
func (m Metadata) Path() string { return m.path }

// LoadedAt returns when the configuration was constructed.
func (m Metadata) LoadedAt() time.Time { return m.loadedAt }

// Overrides carries caller values that win over every other source.
type Overrides struct {
	Provider      *string
	RouterMode    *string
	DocsPath      *string
	TopK          *int
	PersistPath   *string
	LogLevel      *string
	ServerPort    *int
	EnableMetrics *bool
}

// EnvLookup resolves the value for an environment variable.
type EnvLookup func(string) (string, bool)

// Option customises the loader behaviour.
type Option func(*loadOptions)

type loadOptions struct {
	envLookup  EnvLookup
	readFile   func(string) ([]byte, error)
	configPath string
	dotEnvPath string
	overrides  Overrides
}

// WithEnv supplies a custom environment lookup implementation.
func WithEnv(lookup EnvLookup) Option {
	return func(o *loadOptions) { o.envLookup = lookup }
}

// WithConfigPath forces the loader to read a specific file. A missing file
// given this way is an error.
func WithConfigPath(path string) Option {
	return func(o *loadOptions) { o.configPath = path }
}

// WithDotEnv reads extra variables from a .env file. Real environment
// variables take precedence over the file.
func WithDotEnv(path string) Option {
	return func(o *loadOptions) { o.dotEnvPath = path }
}

// WithFileReader injects a custom reader, used primarily for tests.
func WithFileReader(reader func(string) ([]byte, error)) Option {
	return func(o *loadOptions) { o.readFile = reader }
}

// WithOverrides applies caller overrides that take highest precedence.
func WithOverrides(overrides Overrides) Option {
	return func(o *loadOptions) { o.overrides = overrides }
}

// DefaultEnvLookup delegates to os.LookupEnv.
func DefaultEnvLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// Load merges defaults, the YAML file, .env, environment and overrides, then
// resolves credentials and validates the result.
func Load(opts ...Option) (Config, Metadata, error) {
	options := loadOptions{
		envLookup: DefaultEnvLookup,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(&options)
	}

	cfg := Default()
	meta := Metadata{sources: map[string]ValueSource{}, loadedAt: time.Now()}

	if err := applyFile(&cfg, &meta, options); err != nil {
		return Config{}, Metadata{}, err
	}

	lookup := options.envLookup
	if options.dotEnvPath != "" {
		values, err := godotenv.Read(options.dotEnvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, Metadata{}, fmt.Errorf("read %s: %w", options.dotEnvPath, err)
		}
		lookup = layeredLookup(lookup, values)
	}

	if err := applyEnv(&cfg, &meta, lookup); err != nil {
		return Config{}, Metadata{}, err
	}
	applyOverrides(&cfg, &meta, options.overrides)
	resolveCredentials(&cfg, &meta, lookup)

	if err := Validate(cfg); err != nil {
		return Config{}, Metadata{}, err
	}
	return cfg, meta, nil
}

func applyFile(cfg *Config, meta *Metadata, options loadOptions) error {
	path := options.configPath
	explicit := path != ""
	if !explicit {
		if p, ok := options.envLookup("TASFISH_CONFIG"); ok && p != "" {
			path, explicit = p, true
		} else {
			path = DefaultConfigFile
		}
	}

	data, err := options.readFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil
	}
	if err := root.Decode(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	recordLeaves(root.Content[0], "", meta)
	meta.path = path
	return nil
}

// recordLeaves marks every scalar or sequence path present in the file.
func recordLeaves(node *yaml.Node, prefix string, meta *Metadata) {
	if node.Kind != yaml.MappingNode {
		if prefix != "" {
			meta.sources[prefix] = SourceFile
		}
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		recordLeaves(node.Content[i+1], key, meta)
	}
}

func layeredLookup(primary EnvLookup, fallback map[string]string) EnvLookup {
	return func(key string) (string, bool) {
		if v, ok := primary(key); ok && v != "" {
			return v, true
		}
		v, ok := fallback[key]
		return v, ok && v != ""
	}
}

func applyEnv(cfg *Config, meta *Metadata, lookup EnvLookup) error {
	str := func(key, field string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
			meta.sources[field] = SourceEnv
		}
	}
	num := func(key, field string, target *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = n
		meta.sources[field] = SourceEnv
		return nil
	}
	flag := func(key, field string, target *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*target = b
		meta.sources[field] = SourceEnv
		return nil
	}

	str("TASFISH_LLM_PROVIDER", "llm.default_provider", &cfg.LLM.DefaultProvider)
	str("TASFISH_ROUTER_STRATEGY", "router.strategy", &cfg.Router.Strategy)
	str("TASFISH_DOCS_PATH", "documents.base_path", &cfg.Documents.BasePath)
	str("TASFISH_VECTOR_DB_PATH", "rag.vector_db.persist_path", &cfg.RAG.VectorDB.PersistPath)
	str("TASFISH_EMBEDDING_PROVIDER", "rag.embedding.provider", &cfg.RAG.Embedding.Provider)
	str("TASFISH_LOG_LEVEL", "observability.log.level", &cfg.Observability.Log.Level)
	str("TASFISH_LOG_FORMAT", "observability.log.format", &cfg.Observability.Log.Format)
	str("TASFISH_SERVER_HOST", "server.host", &cfg.Server.Host)
	str("TASFISH_TRACING_EXPORTER", "observability.tracing.exporter", &cfg.Observability.Tracing.Exporter)

	for _, step := range []func() error{
		func() error { return num("TASFISH_TOP_K", "rag.top_k", &cfg.RAG.TopK) },
		func() error { return num("TASFISH_CHUNK_SIZE", "rag.chunk_size", &cfg.RAG.ChunkSize) },
		func() error { return num("TASFISH_CHUNK_OVERLAP", "rag.chunk_overlap", &cfg.RAG.ChunkOverlap) },
		func() error { return num("TASFISH_SERVER_PORT", "server.port", &cfg.Server.Port) },
		func() error { return flag("TASFISH_WEATHER_ENABLED", "tools.weather_api.enable", &cfg.Tools.Weather.Enable) },
		func() error { return flag("TASFISH_METRICS_ENABLED", "observability.metrics.enabled", &cfg.Observability.Metrics.Enabled) },
		func() error { return flag("TASFISH_TRACING_ENABLED", "observability.tracing.enabled", &cfg.Observability.Tracing.Enabled) },
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func applyOverrides(cfg *Config, meta *Metadata, o Overrides) {
	set := func(field string) { meta.sources[field] = SourceOverride }
	if o.Provider != nil {
		cfg.LLM.DefaultProvider = *o.Provider
		set("llm.default_provider")
	}
	if o.RouterMode != nil {
		cfg.Router.Strategy = *o.RouterMode
		set("router.strategy")
	}
	if o.DocsPath != nil {
		cfg.Documents.BasePath = *o.DocsPath
		set("documents.base_path")
	}
	if o.TopK != nil {
		cfg.RAG.TopK = *o.TopK
		set("rag.top_k")
	}
	if o.PersistPath != nil {
		cfg.RAG.VectorDB.PersistPath = *o.PersistPath
		set("rag.vector_db.persist_path")
	}
	if o.LogLevel != nil {
		cfg.Observability.Log.Level = *o.LogLevel
		set("observability.log.level")
	}
	if o.ServerPort != nil {
		cfg.Server.Port = *o.ServerPort
		set("server.port")
	}
	if o.EnableMetrics != nil {
		cfg.Observability.Metrics.Enabled = *o.EnableMetrics
		set("observability.metrics.enabled")
	}
}

// resolveCredentials reads API keys from the variables named in the config.
// A text-generation provider without a key falls back to the offline mock.
func resolveCredentials(cfg *Config, meta *Metadata, lookup EnvLookup) {
	read := func(name string) string {
		if name == "" {
			return ""
		}
		v, _ := lookup(name)
		return strings.TrimSpace(v)
	}
	cfg.LLM.Groq.APIKey = read(cfg.LLM.Groq.APIKeyEnv)
	cfg.LLM.Gemini.APIKey = read(cfg.LLM.Gemini.APIKeyEnv)
	cfg.Tools.Weather.APIKey = read(cfg.Tools.Weather.APIKeyEnv)
	cfg.RAG.Embedding.APIKey = read(cfg.RAG.Embedding.APIKeyEnv)

	provider := cfg.LLM.DefaultProvider
	if provider != "mock" && cfg.LLM.Provider(provider).APIKey == "" {
		cfg.LLM.DefaultProvider = "mock"
		meta.sources["llm.default_provider"] = SourceDefault
	}
	if cfg.RAG.Embedding.Provider == "openai" && cfg.RAG.Embedding.APIKey == "" {
		cfg.RAG.Embedding.Provider = "hash"
		meta.sources["rag.embedding.provider"] = SourceDefault
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints and reports every violation.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
