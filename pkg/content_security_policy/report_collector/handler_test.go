package report_collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Motmedel/csp_go/pkg/content_security_policy/deduplication_index/memory_index"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/policy_config"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/report_config"
	"github.com/Motmedel/csp_go/pkg/http/problem_detail"
	"golang.org/x/time/rate"
)

func enabledProvider(endpoint string) policy_config.Provider {
	return &policy_config.Static{
		Config: policy_config.New(
			policy_config.WithReport(
				report_config.New(report_config.WithEnable(true), report_config.WithEndpoint(endpoint)),
			),
		),
	}
}

func TestHandler(t *testing.T) {
	t.Parallel()

	e := newEndpoint(t, http.StatusOK)
	failing := newEndpoint(t, http.StatusInternalServerError)

	testCases := []struct {
		name           string
		provider       policy_config.Provider
		method         string
		contentType    string
		body           string
		expectedStatus int
		problemDetail  bool
	}{
		{
			name:           "accepted",
			provider:       enabledProvider(e.server.URL),
			method:         http.MethodPost,
			contentType:    "application/csp-report; charset=utf-8",
			body:           sampleReport,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "forward failure still accepted",
			provider:       enabledProvider(failing.server.URL),
			method:         http.MethodPost,
			contentType:    cspReportContentType,
			body:           sampleReport,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "reporting api delivery",
			provider:       enabledProvider(e.server.URL),
			method:         http.MethodPost,
			contentType:    "application/reports+json",
			body:           reportingApiDelivery,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "reporting api delivery not an array",
			provider:       enabledProvider(e.server.URL),
			method:         http.MethodPost,
			contentType:    "application/reports+json",
			body:           sampleReport,
			expectedStatus: http.StatusBadRequest,
			problemDetail:  true,
		},
		{
			name:           "method not allowed",
			provider:       enabledProvider(e.server.URL),
			method:         http.MethodGet,
			expectedStatus: http.StatusMethodNotAllowed,
			problemDetail:  true,
		},
		{
			name:           "bad request",
			provider:       enabledProvider(e.server.URL),
			method:         http.MethodPost,
			contentType:    cspReportContentType,
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			problemDetail:  true,
		},
		{
			name:           "unsupported content type",
			provider:       enabledProvider(e.server.URL),
			method:         http.MethodPost,
			contentType:    "multipart/form-data",
			body:           sampleReport,
			expectedStatus: http.StatusBadRequest,
			problemDetail:  true,
		},
		{
			name:           "reporting disabled",
			provider:       &policy_config.Static{Config: policy_config.New()},
			method:         http.MethodPost,
			contentType:    cspReportContentType,
			body:           sampleReport,
			expectedStatus: http.StatusNotFound,
			problemDetail:  true,
		},
		{
			name: "provider error",
			provider: policy_config.ProviderFunc(func(context.Context, *http.Request) (*policy_config.PolicyConfig, error) {
				return nil, errors.New("store unavailable")
			}),
			method:         http.MethodPost,
			contentType:    cspReportContentType,
			body:           sampleReport,
			expectedStatus: http.StatusInternalServerError,
			problemDetail:  true,
		},
		{
			name:           "nil provider",
			method:         http.MethodPost,
			contentType:    cspReportContentType,
			body:           sampleReport,
			expectedStatus: http.StatusInternalServerError,
			problemDetail:  true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			collector, _ := newLoggedCollector(WithIndex(memory_index.New()))
			handler := collector.Handler(testCase.provider)

			request := httptest.NewRequest(testCase.method, "/?csp-violations=1", strings.NewReader(testCase.body))
			if testCase.contentType != "" {
				request.Header.Set("Content-Type", testCase.contentType)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			response := recorder.Result()
			if response.StatusCode != testCase.expectedStatus {
				t.Fatalf("expected status %d, got %d", testCase.expectedStatus, response.StatusCode)
			}

			if !testCase.problemDetail {
				if recorder.Body.Len() != 0 {
					t.Errorf("expected an empty body, got %s", recorder.Body.String())
				}
				return
			}

			if contentType := response.Header.Get("Content-Type"); contentType != problem_detail.ContentType {
				t.Errorf("expected a problem detail content type, got %q", contentType)
			}
			var problemDetail problem_detail.ProblemDetail
			if err := json.Unmarshal(recorder.Body.Bytes(), &problemDetail); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if problemDetail.Status != testCase.expectedStatus {
				t.Errorf("expected problem detail status %d, got %d", testCase.expectedStatus, problemDetail.Status)
			}
			if problemDetail.Instance == "" {
				t.Error("expected a problem detail instance")
			}
		})
	}
}

func TestHandlerAllowHeader(t *testing.T) {
	t.Parallel()

	collector, _ := newLoggedCollector()
	recorder := httptest.NewRecorder()
	collector.Handler(enabledProvider("")).ServeHTTP(recorder, httptest.NewRequest(http.MethodPut, "/", nil))

	if allow := recorder.Result().Header.Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestHandlerRateLimit(t *testing.T) {
	t.Parallel()

	collector, _ := newLoggedCollector(WithLimiter(rate.NewLimiter(0, 1)))
	handler := collector.Handler(enabledProvider(""))

	var statuses []int
	for range 2 {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/?csp-violations=1", strings.NewReader(sampleReport))
		request.Header.Set("Content-Type", cspReportContentType)
		handler.ServeHTTP(recorder, request)
		statuses = append(statuses, recorder.Result().StatusCode)
	}

	if statuses[0] != http.StatusNoContent || statuses[1] != http.StatusTooManyRequests {
		t.Errorf("expected 204 then 429, got %v", statuses)
	}
}
