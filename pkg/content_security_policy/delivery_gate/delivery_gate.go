// Package delivery_gate decides per request whether the Content-Security-Policy
// header is sent and whether the report script is added to HTML responses.
//
// Besides deployment, the policy is applied in debug mode and for privileged
// users. Both bypasses expose the policy to a subset of traffic only; a site
// relying on it for protection must deploy it.
package delivery_gate

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	cspErrors "github.com/Motmedel/csp_go/pkg/content_security_policy/errors"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/metrics"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/policy_builder"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/privileged_identity"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/report_script"
	"github.com/Motmedel/csp_go/pkg/content_security_policy/types/policy_config"
	motmedelContext "github.com/Motmedel/csp_go/pkg/context"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	contentSecurityPolicyTypes "github.com/Motmedel/csp_go/pkg/http/types/content_security_policy"
	motmedelLogError "github.com/Motmedel/csp_go/pkg/log/error"
)

type State int

const (
	StateSkip State = iota
	StateApply
)

func (state State) String() string {
	switch state {
	case StateApply:
		return "apply"
	default:
		return "skip"
	}
}

// Decide returns StateApply when the policy is non-empty and it is deployed,
// debugging is on or the user is privileged.
func Decide(config *policy_config.PolicyConfig, policy string, privileged bool) State {
	if config == nil || policy == "" {
		return StateSkip
	}
	if config.Deploy || config.Debug || privileged {
		return StateApply
	}
	return StateSkip
}

// MetaTag renders the policy as a meta element.
func MetaTag(policy string) string {
	return fmt.Sprintf(
		`<meta http-equiv="%s" content="%s">`,
		contentSecurityPolicyTypes.HeaderName,
		html.EscapeString(policy),
	)
}

type configContextType struct{}

var configContextKey configContextType

func withConfig(ctx context.Context, config *policy_config.PolicyConfig) context.Context {
	return context.WithValue(ctx, configContextKey, config)
}

// ConfigFromContext returns the configuration snapshot the gate loaded for the
// request.
func ConfigFromContext(ctx context.Context) (*policy_config.PolicyConfig, error) {
	config, err := motmedelContext.GetNonZeroContextValue[*policy_config.PolicyConfig](ctx, configContextKey)
	if err != nil {
		return nil, fmt.Errorf("get non zero context value: %w", err)
	}
	return config, nil
}

type contextProvider struct {
	fallback policy_config.Provider
}

func (provider *contextProvider) PolicyConfig(ctx context.Context, request *http.Request) (*policy_config.PolicyConfig, error) {
	if config, err := ConfigFromContext(ctx); err == nil {
		return config, nil
	}
	if provider.fallback == nil {
		return nil, motmedelErrors.NewWithTrace(cspErrors.ErrNilConfig)
	}
	return provider.fallback.PolicyConfig(ctx, request)
}

// ContextProvider provides the snapshot stored by the gate, or asks fallback
// when the request did not pass through a gate.
func ContextProvider(fallback policy_config.Provider) policy_config.Provider {
	return &contextProvider{fallback: fallback}
}

type Gate struct {
	Provider policy_config.Provider
	Checker  privileged_identity.Checker
	// ReportHandler serves report intake requests.
	ReportHandler http.Handler
	Logger        *slog.Logger
	Metrics       *metrics.Recorder
}

type decision struct {
	state  State
	policy string
	inject bool
	markup string
}

func (gate *Gate) logger() *slog.Logger {
	if gate.Logger != nil {
		return gate.Logger
	}
	return slog.Default()
}

func (gate *Gate) loadConfig(request *http.Request) (config *policy_config.PolicyConfig) {
	if gate.Provider == nil {
		return nil
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			motmedelLogError.LogError(
				"A panic occurred when obtaining the policy configuration.",
				motmedelErrors.NewWithTrace(fmt.Errorf("recovered: %v", recovered)),
				gate.logger(),
			)
			config = nil
		}
	}()

	var err error
	config, err = gate.Provider.PolicyConfig(request.Context(), request)
	if err != nil {
		motmedelLogError.LogError(
			"An error occurred when obtaining the policy configuration.",
			fmt.Errorf("policy config: %w", err),
			gate.logger(),
		)
		return nil
	}

	return config
}

func (gate *Gate) decide(request *http.Request, config *policy_config.PolicyConfig) (result decision) {
	defer func() {
		if recovered := recover(); recovered != nil {
			motmedelLogError.LogError(
				"A panic occurred when assembling the policy.",
				motmedelErrors.NewWithTrace(fmt.Errorf("recovered: %v", recovered)),
				gate.logger(),
			)
			result = decision{state: StateSkip}
		}
	}()

	if config == nil {
		return decision{state: StateSkip}
	}

	structuredPolicy := policy_builder.BuildPolicy(config)
	policy := structuredPolicy.String()

	privileged := false
	if !config.Deploy && !config.Debug && policy != "" && gate.Checker != nil {
		privileged = gate.Checker.IsPrivileged(request)
	}

	state := Decide(config, policy, privileged)
	result = decision{state: state, policy: policy}
	if state != StateApply || !config.ReportEnabled() {
		return result
	}

	nonce, err := newNonce()
	if err != nil {
		motmedelLogError.LogError(
			"An error occurred when generating a script nonce; the report script is not added.",
			fmt.Errorf("new nonce: %w", err),
			gate.logger(),
		)
		return result
	}

	if permitNonce(structuredPolicy, nonce) {
		result.policy = structuredPolicy.String()
		result.markup = report_script.Markup(nonce)
	} else {
		result.markup = report_script.Markup("")
	}
	result.inject = true

	return result
}

// IsIntakeRequest reports whether the request targets the report intake.
func IsIntakeRequest(request *http.Request) bool {
	return request.URL != nil && request.URL.Query().Get(report_script.IntakeParameter) == "1"
}

func (gate *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		config := gate.loadConfig(request)
		if config != nil {
			request = request.WithContext(withConfig(request.Context(), config))
		}

		if gate.ReportHandler != nil && IsIntakeRequest(request) {
			gate.ReportHandler.ServeHTTP(responseWriter, request)
			return
		}

		result := gate.decide(request, config)
		gate.Metrics.ObservePolicyDecision(result.state.String())

		if result.state != StateApply {
			next.ServeHTTP(responseWriter, request)
			return
		}

		if result.inject {
			// The body has to be readable to insert the script.
			request = request.Clone(request.Context())
			request.Header.Del("Accept-Encoding")
		}

		writer := &policyResponseWriter{
			ResponseWriter: responseWriter,
			policy:         result.policy,
			inject:         result.inject,
			markup:         result.markup,
			head:           request.Method == http.MethodHead,
		}
		if result.inject {
			writer.onInject = gate.Metrics.ObserveScriptInjection
		}

		next.ServeHTTP(writer, request)
		writer.finish()
	})
}
