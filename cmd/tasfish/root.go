package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tasfish/internal/composer"
	"tasfish/internal/config"
	"tasfish/internal/evaluation"
	"tasfish/internal/logging"
	serverhttp "tasfish/internal/server/http"
	"tasfish/internal/tools/builtin"
)

// cli carries global flags through viper so every command sees the same
// override set.
type cli struct {
	v    *viper.Viper
	env  config.EnvLookup
	sink logging.Logger
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&cli{v: viper.New()})
}

func newRootCommandWith(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "tasfish",
		Short:         "Tasmanian recreational fishing rules, size checks and fishing forecasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configureColor(c.v.GetBool("no_color"))
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (default tasfish.yaml or $TASFISH_CONFIG)")
	flags.String("env-file", ".env", "Read API keys from this .env file")
	flags.String("provider", "", "LLM provider: groq, gemini or mock")
	flags.String("router", "", "Routing strategy: llm or rules")
	flags.String("docs", "", "Directory holding the regulation guides")
	flags.Int("top-k", 0, "Passages to retrieve per question")
	flags.String("persist", "", "Directory for the persistent vector index")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.BoolP("verbose", "v", false, "Show route, tool call and sources")
	flags.Bool("no-color", false, "Disable coloured output")
	for key, flag := range map[string]string{
		"config":    "config",
		"env_file":  "env-file",
		"provider":  "provider",
		"router":    "router",
		"docs":      "docs",
		"top_k":     "top-k",
		"persist":   "persist",
		"log_level": "log-level",
		"verbose":   "verbose",
		"no_color":  "no-color",
	} {
		_ = c.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(
		c.askCommand(),
		c.serveCommand(),
		c.ingestCommand(),
		c.evalCommand(),
		c.checkSizeCommand(),
		c.forecastCommand(),
	)
	return root
}

func (c *cli) overrides() config.Overrides {
	var o config.Overrides
	str := func(key string) *string {
		if !c.v.IsSet(key) {
			return nil
		}
		s := strings.TrimSpace(c.v.GetString(key))
		return &s
	}
	o.Provider = str("provider")
	o.RouterMode = str("router")
	o.DocsPath = str("docs")
	o.PersistPath = str("persist")
	o.LogLevel = str("log_level")
	if c.v.IsSet("top_k") {
		k := c.v.GetInt("top_k")
		o.TopK = &k
	}
	if c.v.IsSet("port") {
		p := c.v.GetInt("port")
		o.ServerPort = &p
	}
	if c.v.IsSet("metrics") {
		m := c.v.GetBool("metrics")
		o.EnableMetrics = &m
	}
	return o
}

func (c *cli) loadConfig() (config.Config, error) {
	opts := []config.Option{
		config.WithOverrides(c.overrides()),
		config.WithDotEnv(c.v.GetString("env_file")),
	}
	if path := c.v.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigPath(path))
	}
	if c.env != nil {
		opts = append(opts, config.WithEnv(c.env))
	}
	cfg, _, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withContainer builds the container, runs fn and flushes telemetry.
func (c *cli) withContainer(ctx context.Context, fn func(*Container) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	container, err := buildContainer(ctx, cfg, c.sink)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Shutdown(shutdownCtx); err != nil {
			logging.NewComponentLogger("cli").Warn("shutdown: %v", err)
		}
	}()
	return fn(container)
}

func (c *cli) askCommand() *cobra.Command {
	var routeOnly, asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return c.withContainer(cmd.Context(), func(app *Container) error {
				out := cmd.OutOrStdout()
				if routeOnly {
					decision, err := app.Assistant.Route(cmd.Context(), question)
					if err != nil {
						return err
					}
					return writeJSON(out, decision)
				}
				answer, err := app.Assistant.Ask(cmd.Context(), question)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, answer)
				}
				printAnswer(out, answer, c.v.GetBool("verbose"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&routeOnly, "route-only", false, "Print the routing decision as JSON and stop")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full answer as JSON")
	return cmd
}

func (c *cli) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.withContainer(ctx, func(app *Container) error {
				cfg := app.Config.Server
				logger := logging.NewComponentLogger("http")
				engine := serverhttp.NewRouter(serverhttp.RouterDeps{
					Pipeline:  app.Assistant,
					Tools:     app.Registry,
					Documents: app.Store,
					Metrics:   app.Obs.Metrics,
					Logger:    logger,
				}, serverhttp.RouterConfig{
					AllowedOrigins: cfg.AllowedOrigins,
					RateLimit:      serverhttp.RateLimitConfig{RequestsPerMinute: cfg.RequestsPerMinute, Burst: cfg.Burst},
					Debug:          app.Config.Observability.Log.Level == "debug",
				})
				server := serverhttp.NewServer(serverhttp.ServerConfig{
					Host:            cfg.Host,
					Port:            cfg.Port,
					ShutdownTimeout: cfg.ShutdownTimeout,
				}, engine, logger)
				fmt.Fprintf(cmd.OutOrStdout(), "%s http://%s\n", green("Serving on"), server.Addr())
				return server.Run(ctx)
			})
		},
	}
	cmd.Flags().Int("port", 0, "Listen port")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on /metrics")
	_ = c.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	_ = c.v.BindPFlag("metrics", cmd.Flags().Lookup("metrics"))
	return cmd
}

func (c *cli) ingestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Load the regulation guides into the vector index",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withContainer(cmd.Context(), func(app *Container) error {
				stats, err := app.Ingest(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d chunks from %d sections in %d sources (run %s, %s)\n",
					green("Ingested"), stats.Chunks, stats.Sections, stats.Sources, stats.RunID, stats.Duration.Round(time.Millisecond))
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d documents\n", bold("Index:"), app.Store.Count())
				return nil
			})
		},
	}
}

func (c *cli) evalCommand() *cobra.Command {
	var suitePath, reportPath string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the evaluation suite",
		RunE: func(cmd *cobra.Command, _ []string) error {
			suite, err := evaluation.LoadSuite(suitePath)
			if err != nil {
				return err
			}
			return c.withContainer(cmd.Context(), func(app *Container) error {
				report, err := evaluation.NewRunner(app.Assistant, nil).Run(cmd.Context(), suite)
				if err != nil {
					return err
				}
				printEvalReport(cmd.OutOrStdout(), report)
				if reportPath != "" {
					if err := os.WriteFile(reportPath, []byte(report.Markdown()), 0o644); err != nil {
						return fmt.Errorf("write report: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", gray("Report written to"), reportPath)
				}
				if s := report.Summary(); s.Passed < s.Total {
					return &ExitCodeError{Code: 2, Err: fmt.Errorf("%d of %d cases failed", s.Total-s.Passed, s.Total)}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&suitePath, "suite", "", "YAML suite file (default: built-in suite)")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a Markdown report to this file")
	return cmd
}

func (c *cli) checkSizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-size <species> <length_cm>",
		Short: "Check a fish length against the minimum size",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			length, err := strconv.ParseFloat(args[len(args)-1], 64)
			if err != nil {
				return fmt.Errorf("length must be a number of centimetres: %w", err)
			}
			name := strings.Join(args[:len(args)-1], " ")
			return c.withContainer(cmd.Context(), func(app *Container) error {
				result := app.Registry.Invoke(cmd.Context(), builtin.LegalSizeToolName, map[string]any{
					"species":   name,
					"length_cm": length,
				})
				fmt.Fprintln(cmd.OutOrStdout(), composer.DescribeResult(result))
				return nil
			})
		},
	}
}

func (c *cli) forecastCommand() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "forecast <location>",
		Short: "Fishing forecast for a Tasmanian location",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withContainer(cmd.Context(), func(app *Container) error {
				result := app.Registry.Invoke(cmd.Context(), builtin.FishingWeatherToolName, map[string]any{
					"location": strings.Join(args, " "),
					"days":     days,
				})
				fmt.Fprintln(cmd.OutOrStdout(), composer.DescribeResult(result))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 3, "Days to forecast (1-5)")
	return cmd
}
