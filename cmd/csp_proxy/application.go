package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/deduplication_index"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/deduplication_index/memory_index"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/deduplication_index/redis_index"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/delivery_gate"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/metrics"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/privileged_identity"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_collector"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_forwarder"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_forwarder/kafka_forwarder"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/stored_config"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	"github.com/Motmedel/csp_go/pkg/http/problem_detail"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
	"github.com/Motmedel/csp_go/pkg/log/file_logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type settings struct {
	Upstream       string
	Listen         string
	ConfigPath     string
	MetricsListen  string
	ReportLog      string
	ForwardTimeout time.Duration
	DedupSize      int
	DedupTtl       time.Duration
	RedisAddr      string
	KafkaBrokers   []string
	KafkaTopic     string
	JwtKey         string
	JwtCookie      string
	ReportRate     float64
	ReportBurst    int
}

type application struct {
	Handler        http.Handler
	MetricsHandler http.Handler
	closers        []io.Closer
}

func (app *application) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newProxy(upstream string, logger *slog.Logger) (*httputil.ReverseProxy, error) {
	upstreamUrl, err := url.Parse(upstream)
	if err != nil {
		return nil, motmedelErrors.New(fmt.Errorf("url parse: %w", err), upstream)
	}
	if upstreamUrl.Scheme == "" || upstreamUrl.Host == "" {
		return nil, motmedelErrors.New(
			fmt.Errorf("%w: upstream is not an absolute url", motmedelErrors.ErrValidationError),
			upstream,
		)
	}

	proxy := httputil.NewSingleHostReverseProxy(upstreamUrl)
	proxy.ErrorHandler = func(responseWriter http.ResponseWriter, request *http.Request, err error) {
		motmedelLogError.LogWarning(
			"An error occurred when proxying the request.",
			fmt.Errorf("reverse proxy: %w", err),
			logger,
		)
		problem_detail.Write(
			responseWriter,
			problem_detail.MakeStatusCodeProblemDetail(http.StatusBadGateway, ""),
			logger,
		)
	}

	return proxy, nil
}

func newApplication(settings *settings, logger *slog.Logger) (_ *application, err error) {
	app := &application{}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	proxy, err := newProxy(settings.Upstream, logger)
	if err != nil {
		return nil, fmt.Errorf("new proxy: %w", err)
	}

	provider := stored_config.NewFileProvider(settings.ConfigPath, stored_config.WithLogger(logger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)
	app.MetricsHandler = metrics.Handler(registry)

	reportLogger, reportLogCloser := file_logger.New(file_logger.WithPath(settings.ReportLog)).Logger()
	app.closers = append(app.closers, reportLogCloser)

	var index deduplication_index.Index
	if settings.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
		app.closers = append(app.closers, client)
		index = redis_index.New(client, redis_index.WithTtl(settings.DedupTtl))
	} else {
		index = memory_index.New(
			memory_index.WithSize(settings.DedupSize),
			memory_index.WithTtl(settings.DedupTtl),
		)
	}

	var sinks []report_forwarder.Forwarder
	if len(settings.KafkaBrokers) != 0 {
		kafkaForwarder, err := kafka_forwarder.New(settings.KafkaBrokers, settings.KafkaTopic, settings.ForwardTimeout)
		if err != nil {
			return nil, fmt.Errorf("kafka forwarder new: %w", err)
		}
		app.closers = append(app.closers, kafkaForwarder)
		sinks = append(sinks, kafkaForwarder)
	}

	var limiter *rate.Limiter
	if settings.ReportRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(settings.ReportRate), max(settings.ReportBurst, 1))
	}

	collector := report_collector.New(
		report_collector.WithIndex(index),
		report_collector.WithSinks(sinks...),
		report_collector.WithReportLogger(reportLogger),
		report_collector.WithLogger(logger),
		report_collector.WithMetrics(recorder),
		report_collector.WithLimiter(limiter),
		report_collector.WithForwardTimeout(settings.ForwardTimeout),
		report_collector.WithAsync(true),
	)

	var checker privileged_identity.Checker
	if settings.JwtKey != "" {
		jwtChecker := privileged_identity.NewJwtChecker([]byte(settings.JwtKey), settings.JwtCookie)
		jwtChecker.Logger = logger
		checker = jwtChecker
	}

	gate := &delivery_gate.Gate{
		Provider:      provider,
		Checker:       checker,
		ReportHandler: collector.Handler(delivery_gate.ContextProvider(provider)),
		Logger:        logger,
		Metrics:       recorder,
	}
	app.Handler = gate.Middleware(proxy)

	return app, nil
}
