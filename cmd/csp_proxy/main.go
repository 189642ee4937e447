package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/delivery_gate"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/policy_builder"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/stored_config"
	"github.com/Motmedel/csp_go/pkg/env"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	motmedelLog "github.com/Motmedel/csp_go/pkg/log"
	"github.com/Motmedel/csp_go/pkg/log/context_logger"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
	"github.com/urfave/cli/v3"
)

const (
	defaultEnvFile  = ".env"
	shutdownTimeout = 10 * time.Second
)

// envFilePath finds the --env-file argument. The file has to be loaded before
// the flags read their environment variables.
func envFilePath(args []string) string {
	for i, arg := range args {
		if value, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return value
		}
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return env.GetEnvWithDefault("CSP_ENV_FILE", defaultEnvFile)
}

func settingsFromCommand(cmd *cli.Command) *settings {
	return &settings{
		Upstream:       cmd.String("upstream"),
		Listen:         cmd.String("listen"),
		ConfigPath:     cmd.String("config"),
		MetricsListen:  cmd.String("metrics-listen"),
		ReportLog:      cmd.String("report-log"),
		ForwardTimeout: cmd.Duration("forward-timeout"),
		DedupSize:      int(cmd.Int("dedup-size")),
		DedupTtl:       cmd.Duration("dedup-ttl"),
		RedisAddr:      cmd.String("redis-addr"),
		KafkaBrokers:   cmd.StringSlice("kafka-brokers"),
		KafkaTopic:     cmd.String("kafka-topic"),
		JwtKey:         cmd.String("jwt-key"),
		JwtCookie:      cmd.String("jwt-cookie"),
		ReportRate:     cmd.Float("report-rate"),
		ReportBurst:    int(cmd.Int("report-burst")),
	}
}

func listen(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Listening.", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("listen and serve: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func serve(ctx context.Context, cmd *cli.Command, logger *slog.Logger) error {
	settings := settingsFromCommand(cmd)
	if settings.Upstream == "" {
		return motmedelErrors.NewWithTrace(fmt.Errorf("%w: upstream", motmedelErrors.ErrZeroValue))
	}

	app, err := newApplication(settings, logger)
	if err != nil {
		return fmt.Errorf("new application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			motmedelLogError.LogWarning("An error occurred when closing the application.", err, logger)
		}
	}()

	if settings.MetricsListen != "" {
		metricsServer := &http.Server{
			Addr:              settings.MetricsListen,
			Handler:           app.MetricsHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := listen(ctx, metricsServer, logger); err != nil {
				motmedelLogError.LogError("The metrics server failed.", err, logger)
			}
		}()
	}

	server := &http.Server{
		Addr:              settings.Listen,
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return listen(ctx, server, logger)
}

func printExampleConfig(cmd *cli.Command) error {
	data, err := stored_config.Example()
	if err != nil {
		return fmt.Errorf("example: %w", err)
	}

	if !cmd.Bool("meta") {
		if _, err := cmd.Root().Writer.Write(data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		return nil
	}

	values, err := stored_config.Parse(data)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	config, _ := stored_config.ToPolicyConfig(values, false)
	if _, err := fmt.Fprintln(cmd.Root().Writer, delivery_gate.MetaTag(policy_builder.Build(config))); err != nil {
		return fmt.Errorf("fprintln: %w", err)
	}

	return nil
}

func newCommand(levelVar *slog.LevelVar, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "csp_proxy",
		Usage: "Apply a Content Security Policy to an upstream site and collect violation reports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "upstream",
				Usage:   "URL of the site to proxy",
				Sources: cli.EnvVars("CSP_UPSTREAM"),
			},
			&cli.StringFlag{
				Name:    "listen",
				Value:   ":8080",
				Usage:   "Address to listen on",
				Sources: cli.EnvVars("CSP_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "config",
				Value:   "csp.yaml",
				Usage:   "Path of the YAML policy configuration",
				Sources: cli.EnvVars("CSP_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "metrics-listen",
				Usage:   "Address to serve Prometheus metrics on; disabled when empty",
				Sources: cli.EnvVars("CSP_METRICS_LISTEN"),
			},
			&cli.StringFlag{
				Name:    "report-log",
				Usage:   "File debug-mode violation reports are logged to; stderr when empty",
				Sources: cli.EnvVars("CSP_REPORT_LOG"),
			},
			&cli.DurationFlag{
				Name:    "forward-timeout",
				Value:   5 * time.Second,
				Usage:   "Timeout of forwarding one report",
				Sources: cli.EnvVars("CSP_FORWARD_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "dedup-size",
				Value:   10_000,
				Usage:   "Number of report digests remembered in memory",
				Sources: cli.EnvVars("CSP_DEDUP_SIZE"),
			},
			&cli.DurationFlag{
				Name:    "dedup-ttl",
				Value:   24 * time.Hour,
				Usage:   "How long a report digest is remembered",
				Sources: cli.EnvVars("CSP_DEDUP_TTL"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address of a shared deduplication index",
				Sources: cli.EnvVars("CSP_REDIS_ADDR"),
			},
			&cli.StringSliceFlag{
				Name:    "kafka-brokers",
				Usage:   "Kafka brokers reports are also published to",
				Sources: cli.EnvVars("CSP_KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "kafka-topic",
				Value:   "csp.violations.v1",
				Usage:   "Kafka topic of published reports",
				Sources: cli.EnvVars("CSP_KAFKA_TOPIC"),
			},
			&cli.StringFlag{
				Name:    "jwt-key",
				Usage:   "HMAC key of tokens identifying privileged users",
				Sources: cli.EnvVars("CSP_JWT_KEY"),
			},
			&cli.StringFlag{
				Name:    "jwt-cookie",
				Value:   "session",
				Usage:   "Cookie holding the token of privileged users",
				Sources: cli.EnvVars("CSP_JWT_COOKIE"),
			},
			&cli.FloatFlag{
				Name:    "report-rate",
				Value:   50,
				Usage:   "Reports accepted per second; unlimited when 0",
				Sources: cli.EnvVars("CSP_REPORT_RATE"),
			},
			&cli.IntFlag{
				Name:    "report-burst",
				Value:   100,
				Usage:   "Burst of reports accepted above the rate",
				Sources: cli.EnvVars("CSP_REPORT_BURST"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("CSP_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: defaultEnvFile,
				Usage: "Environment file loaded before the flags are read",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			levelVar.Set(motmedelLog.ParseLevel(cmd.String("log-level")))
			return ctx, nil
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cmd, logger)
		},
		Commands: []*cli.Command{
			{
				Name:  "print-example-config",
				Usage: "Print a starter YAML configuration",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "meta",
						Usage: "Print the example policy as a meta element instead",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return printExampleConfig(cmd)
				},
			},
		},
	}
}

func main() {
	levelVar := &slog.LevelVar{}
	logger := context_logger.NewWithErrorExtractor(
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}),
	)
	slog.SetDefault(logger)

	if path, err := env.LoadDotEnv(envFilePath(os.Args[1:])); err != nil {
		motmedelLogError.LogError("An error occurred when loading the environment file.", err, logger)
		os.Exit(1)
	} else if path != "" {
		logger.Debug("Loaded the environment file.", slog.String("path", path))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(levelVar, logger).Run(ctx, os.Args); err != nil {
		motmedelLogError.LogError("The command failed.", err, logger)
		stop()
		os.Exit(1)
	}
}
