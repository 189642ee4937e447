// Package report_collector ingests violation reports: it decodes, strips,
// deduplicates and filters them, then forwards or logs the survivors.
package report_collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/deduplication_index"
	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/metrics"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_forwarder"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_forwarder/http_forwarder"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/report_config"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/violation_report"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	motmedelLog "github.com/Motmedel/csp_go/pkg/log"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxBodySize    = 64 << 10
	DefaultForwardTimeout = 5 * time.Second
)

// ReportingApiContentType is the media type of Reporting API deliveries.
const ReportingApiContentType = "application/reports+json"

var AcceptedContentTypes = []string{
	"application/csp-report",
	"application/json",
	ReportingApiContentType,
	"text/plain",
}

type Outcome int

const (
	OutcomeForwarded Outcome = iota + 1
	OutcomeLogged
	OutcomeDropped
	OutcomeDuplicate
	OutcomeFiltered
)

func (outcome Outcome) String() string {
	switch outcome {
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeLogged:
		return "logged"
	case OutcomeDropped:
		return "dropped"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFiltered:
		return "filtered"
	default:
		return "unknown"
	}
}

type Collector struct {
	Index deduplication_index.Index
	// Sinks receive every forwarded report in addition to the configured
	// endpoint.
	Sinks          report_forwarder.Multi
	HttpClient     *http.Client
	ReportLogger   *slog.Logger
	Logger         *slog.Logger
	Metrics        *metrics.Recorder
	Limiter        *rate.Limiter
	ForwardTimeout time.Duration
	MaxBodySize    int
	Async          bool
}

type Option func(*Collector)

func WithIndex(index deduplication_index.Index) Option {
	return func(collector *Collector) {
		collector.Index = index
	}
}

func WithSinks(sinks ...report_forwarder.Forwarder) Option {
	return func(collector *Collector) {
		collector.Sinks = append(collector.Sinks, sinks...)
	}
}

func WithHttpClient(httpClient *http.Client) Option {
	return func(collector *Collector) {
		collector.HttpClient = httpClient
	}
}

func WithReportLogger(logger *slog.Logger) Option {
	return func(collector *Collector) {
		collector.ReportLogger = logger
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(collector *Collector) {
		collector.Logger = logger
	}
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(collector *Collector) {
		collector.Metrics = recorder
	}
}

func WithLimiter(limiter *rate.Limiter) Option {
	return func(collector *Collector) {
		collector.Limiter = limiter
	}
}

func WithForwardTimeout(timeout time.Duration) Option {
	return func(collector *Collector) {
		collector.ForwardTimeout = timeout
	}
}

func WithMaxBodySize(size int) Option {
	return func(collector *Collector) {
		if size > 0 {
			collector.MaxBodySize = size
		}
	}
}

func WithAsync(async bool) Option {
	return func(collector *Collector) {
		collector.Async = async
	}
}

func New(options ...Option) *Collector {
	collector := &Collector{
		ForwardTimeout: DefaultForwardTimeout,
		MaxBodySize:    DefaultMaxBodySize,
	}
	for _, option := range options {
		if option != nil {
			option(collector)
		}
	}

	return collector
}

func (collector *Collector) reportLogger() *slog.Logger {
	if collector.ReportLogger != nil {
		return collector.ReportLogger
	}
	return collector.logger()
}

func (collector *Collector) logger() *slog.Logger {
	if collector.Logger != nil {
		return collector.Logger
	}
	return slog.Default()
}

func (collector *Collector) maxBodySize() int {
	if collector.MaxBodySize > 0 {
		return collector.MaxBodySize
	}
	return DefaultMaxBodySize
}

func checkContentType(contentType string) error {
	if strings.TrimSpace(contentType) == "" {
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return motmedelErrors.New(fmt.Errorf("%w: mime parse media type: %w", cspErrors.ErrContentType, err), contentType)
	}
	if !slices.Contains(AcceptedContentTypes, mediaType) {
		return motmedelErrors.New(cspErrors.ErrContentType, contentType)
	}

	return nil
}

func (collector *Collector) forwarder(config *report_config.Config) report_forwarder.Forwarder {
	var forwarders report_forwarder.Multi
	if config.HasEndpoint() {
		forwarders = append(
			forwarders,
			http_forwarder.New(
				config.Endpoint,
				http_forwarder.WithHttpClient(collector.HttpClient),
				http_forwarder.WithTimeout(0),
			),
		)
	}
	forwarders = append(forwarders, collector.Sinks...)

	if len(forwarders) == 0 {
		return nil
	}
	return forwarders
}

func (collector *Collector) forward(ctx context.Context, forwarder report_forwarder.Forwarder, data []byte, debug bool) error {
	ctx = context.WithoutCancel(ctx)
	if collector.ForwardTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, collector.ForwardTimeout)
		defer cancel()
	}

	start := time.Now()
	err := forwarder.Forward(ctx, data)
	collector.Metrics.ObserveForward(time.Since(start), err)
	if err != nil {
		err = cspErrors.NewForwardFailedError(fmt.Errorf("forward: %w", err))
		if debug {
			motmedelLogError.LogWarning(
				"A violation report could not be forwarded.",
				err,
				collector.reportLogger(),
			)
		}
		return err
	}

	return nil
}

func (collector *Collector) checkRequest(rawBody []byte, contentType string) error {
	if err := checkContentType(contentType); err != nil {
		return cspErrors.NewBadRequestError(fmt.Errorf("check content type: %w", err))
	}
	if len(rawBody) > collector.maxBodySize() {
		return cspErrors.NewBadRequestError(motmedelErrors.New(cspErrors.ErrBodyTooLarge, len(rawBody)))
	}
	return nil
}

// IsBatch reports whether the content type announces a Reporting API delivery,
// which is to be passed to IngestBatch.
func IsBatch(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == ReportingApiContentType
}

// Ingest processes one raw report. Bad requests are reported as an
// *errors.IngestError with KindBadRequest and never touch the index. A
// forwarding failure is returned as KindForwardFailed after the report was
// recorded as seen.
//
// A report that is neither forwarded nor logged, because no forwarder is
// configured and debug is off, is Dropped without being recorded as seen.
// Should debug be switched on later, the same report is logged once then.
func (collector *Collector) Ingest(
	ctx context.Context,
	config *report_config.Config,
	rawBody []byte,
	contentType string,
	debug bool,
) (Outcome, error) {
	if err := collector.checkRequest(rawBody, contentType); err != nil {
		collector.Metrics.ObserveReportOutcome(cspErrors.KindBadRequest.String())
		return 0, err
	}

	report, err := violation_report.Parse(rawBody)
	if err != nil {
		collector.Metrics.ObserveReportOutcome(cspErrors.KindBadRequest.String())
		return 0, cspErrors.NewBadRequestError(fmt.Errorf("violation report parse: %w", err))
	}

	return collector.ingestReport(ctx, config, report, debug)
}

// IngestBatch processes a Reporting API delivery, a JSON array of reports,
// ingesting each csp-violation report on its own. Entries that cannot be
// decoded are skipped; the request is a bad request only when no report could
// be decoded from a body with decoding errors. Forwarding failures are joined.
func (collector *Collector) IngestBatch(
	ctx context.Context,
	config *report_config.Config,
	rawBody []byte,
	contentType string,
	debug bool,
) ([]Outcome, error) {
	if err := collector.checkRequest(rawBody, contentType); err != nil {
		collector.Metrics.ObserveReportOutcome(cspErrors.KindBadRequest.String())
		return nil, err
	}

	reports, err := violation_report.ParseBatch(rawBody)
	if err != nil {
		if len(reports) == 0 {
			collector.Metrics.ObserveReportOutcome(cspErrors.KindBadRequest.String())
			return nil, cspErrors.NewBadRequestError(fmt.Errorf("violation report parse batch: %w", err))
		}
		if debug {
			motmedelLogError.LogWarning(
				"Some reports of a delivery could not be decoded.",
				fmt.Errorf("violation report parse batch: %w", err),
				collector.logger(),
			)
		}
	}

	var outcomes []Outcome
	var errs []error
	for _, report := range reports {
		outcome, err := collector.ingestReport(ctx, config, report, debug)
		if outcome != 0 {
			outcomes = append(outcomes, outcome)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return outcomes, errors.Join(errs...)
}

func (collector *Collector) ingestReport(
	ctx context.Context,
	config *report_config.Config,
	report violation_report.Report,
	debug bool,
) (outcome Outcome, err error) {
	defer func() {
		if outcome != 0 {
			collector.Metrics.ObserveReportOutcome(outcome.String())
		} else if err != nil {
			collector.Metrics.ObserveReportOutcome(cspErrors.KindBadRequest.String())
		}
	}()

	if config == nil {
		config = report_config.New()
	}

	report = report.Without(config.Exclude...)

	for _, name := range config.FilterNames() {
		if value, ok := report.Value(name); ok && config.IsFiltered(name, value) {
			return OutcomeFiltered, nil
		}
	}

	forwarder := collector.forwarder(config)
	if forwarder == nil && !debug {
		return OutcomeDropped, nil
	}

	canonical, err := report.Canonical()
	if err != nil {
		return 0, cspErrors.NewBadRequestError(fmt.Errorf("canonical: %w", err))
	}
	digest, err := report.Digest()
	if err != nil {
		return 0, cspErrors.NewBadRequestError(fmt.Errorf("digest: %w", err))
	}

	if collector.Index != nil {
		inserted, err := collector.Index.InsertIfAbsent(ctx, digest)
		if err != nil {
			// The report is handled as not seen.
			if debug {
				motmedelLogError.LogWarning(
					"The deduplication index could not be updated.",
					fmt.Errorf("index insert if absent: %w", err),
					collector.logger(),
					slog.String("digest", digest),
				)
			}
		} else if !inserted {
			return OutcomeDuplicate, nil
		}
	}

	if forwarder == nil {
		collector.reportLogger().InfoContext(
			ctx,
			"A Content Security Policy violation was reported.",
			slog.String("digest", digest),
			slog.Group("report", motmedelLog.AttrsFromMap(report)...),
		)
		return OutcomeLogged, nil
	}

	if collector.Async {
		go func() {
			_ = collector.forward(ctx, forwarder, canonical, debug)
		}()
		return OutcomeForwarded, nil
	}

	if err := collector.forward(ctx, forwarder, canonical, debug); err != nil {
		return OutcomeForwarded, err
	}

	return OutcomeForwarded, nil
}
