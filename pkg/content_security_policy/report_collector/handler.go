package report_collector

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/policy_config"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	"github.com/Motmedel/csp_go/pkg/http/problem_detail"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
)

// Handler serves the report intake endpoint. Accepted reports are answered
// with 204 No Content whether or not they were forwarded.
func (collector *Collector) Handler(provider policy_config.Provider) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		logger := collector.logger()

		if request.Method != http.MethodPost {
			problem_detail.Write(
				responseWriter,
				problem_detail.MakeStatusCodeProblemDetail(http.StatusMethodNotAllowed, ""),
				logger,
				[2]string{"Allow", http.MethodPost},
			)
			return
		}

		if collector.Limiter != nil && !collector.Limiter.Allow() {
			problem_detail.Write(
				responseWriter,
				problem_detail.MakeStatusCodeProblemDetail(http.StatusTooManyRequests, ""),
				logger,
			)
			return
		}

		if provider == nil {
			motmedelLogError.LogError(
				"The report intake has no configuration provider.",
				motmedelErrors.NewWithTrace(cspErrors.ErrNilConfig),
				logger,
			)
			problem_detail.Write(responseWriter, problem_detail.MakeInternalServerErrorProblemDetail(""), logger)
			return
		}

		config, err := provider.PolicyConfig(request.Context(), request)
		if err != nil {
			motmedelLogError.LogError(
				"An error occurred when obtaining the policy configuration.",
				fmt.Errorf("policy config: %w", err),
				logger,
			)
			problem_detail.Write(responseWriter, problem_detail.MakeInternalServerErrorProblemDetail(""), logger)
			return
		}

		if !config.ReportEnabled() {
			problem_detail.Write(
				responseWriter,
				problem_detail.MakeStatusCodeProblemDetail(http.StatusNotFound, ""),
				logger,
			)
			return
		}

		collector.Metrics.ObserveReportReceived()

		maxBodySize := collector.maxBodySize()
		body, err := io.ReadAll(io.LimitReader(request.Body, int64(maxBodySize)+1))
		if err != nil {
			problem_detail.Write(
				responseWriter,
				problem_detail.MakeBadRequestProblemDetail("The request body could not be read."),
				logger,
			)
			return
		}

		contentType := request.Header.Get("Content-Type")
		if IsBatch(contentType) {
			_, err = collector.IngestBatch(request.Context(), config.Report, body, contentType, config.Debug)
		} else {
			_, err = collector.Ingest(request.Context(), config.Report, body, contentType, config.Debug)
		}
		if err != nil && errors.Is(err, cspErrors.ErrBadRequest) {
			var detail string
			switch {
			case errors.Is(err, cspErrors.ErrContentType):
				detail = "The content type is not supported."
			case errors.Is(err, cspErrors.ErrBodyTooLarge):
				detail = "The report is too large."
			default:
				detail = "The body is not a violation report."
			}
			problem_detail.Write(responseWriter, problem_detail.MakeBadRequestProblemDetail(detail), logger)
			return
		}

		responseWriter.WriteHeader(http.StatusNoContent)
	})
}
