package observability

import "context"

// Config groups the observability settings.
type Config struct {
	Log     LoggingConfig `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// DefaultConfig returns the default observability configuration.
func DefaultConfig() Config {
	return Config{
		Log: LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{
			Exporter:       ExporterOTLP,
			OTLPEndpoint:   "localhost:4318",
			ZipkinEndpoint: "http://localhost:9411/api/v2/spans",
			SampleRate:     1.0,
			ServiceName:    meterName,
			ServiceVersion: "dev",
		},
	}
}

// Observability bundles the live logger, metrics and tracer.
type Observability struct {
	Logger  *Logger
	Metrics *MetricsCollector
	Tracer  *TracerProvider
}

// New builds every observability component from config.
func New(ctx context.Context, config Config) (*Observability, error) {
	metrics, err := NewMetricsCollector(config.Metrics)
	if err != nil {
		return nil, err
	}
	tracer, err := NewTracerProvider(ctx, config.Tracing)
	if err != nil {
		return nil, err
	}
	return &Observability{
		Logger:  NewLogger(LogConfig{Level: config.Log.Level, Format: config.Log.Format}),
		Metrics: metrics,
		Tracer:  tracer,
	}, nil
}

// Shutdown stops metrics and tracing, returning the first error.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	metricsErr := o.Metrics.Shutdown(ctx)
	if err := o.Tracer.Shutdown(ctx); err != nil {
		return err
	}
	return metricsErr
}
