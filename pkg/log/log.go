package log

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	motmedelContext "github.com/Motmedel/csp_go/pkg/context"
	motmedelErrors "github.com/Motmedel/csp_go/pkg/errors"
	motmedelStrings "github.com/Motmedel/csp_go/pkg/strings"
)

type ContextExtractor interface {
	Handle(context.Context, *slog.Record) error
}

type ContextExtractorFunction func(context.Context, *slog.Record) error

func (cef ContextExtractorFunction) Handle(ctx context.Context, record *slog.Record) error {
	return cef(ctx, record)
}

type ContextHandler struct {
	Next       slog.Handler
	Extractors []ContextExtractor
}

func (contextHandler *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return contextHandler.Next.Enabled(ctx, level)
}

func (contextHandler *ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, extractor := range contextHandler.Extractors {
		if extractor != nil {
			if err := extractor.Handle(ctx, &record); err != nil {
				return fmt.Errorf("extractor handle: %w", err)
			}
		}
	}
	return contextHandler.Next.Handle(ctx, record)
}

func (contextHandler *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Next: contextHandler.Next.WithAttrs(attrs), Extractors: contextHandler.Extractors}
}

func (contextHandler *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Next: contextHandler.Next.WithGroup(name), Extractors: contextHandler.Extractors}
}

type ErrorContextExtractor struct {
	SkipCause      bool
	SkipInput      bool
	SkipStackTrace bool
}

func (extractor *ErrorContextExtractor) MakeErrorAttrs(err error) []any {
	if err == nil {
		return nil
	}

	errorMessage := err.Error()
	errType := reflect.TypeOf(err).String()

	var attrs []any

	switch err.(type) {
	case *motmedelErrors.Error, *motmedelErrors.ExtendedError:
	default:
		switch errType {
		case "*errors.errorString", "*fmt.wrapError", "*fmt.wrapErrors":
		default:
			attrs = append(attrs, slog.String("type", errType))
		}
	}

	if inputError, ok := err.(motmedelErrors.InputErrorI); ok && !extractor.SkipInput {
		if input := inputError.GetInput(); input != nil {
			inputTextualRepresentation, err := motmedelStrings.MakeTextualRepresentation(input)
			if err == nil {
				var typeName string
				if t := reflect.TypeOf(input); t != nil {
					typeName = t.String()
				}

				attrs = append(
					attrs,
					slog.Group(
						"input",
						slog.String("value", inputTextualRepresentation),
						slog.String("type", typeName),
					),
				)
			}
		}
	}

	if !extractor.SkipCause {
		wrappedErrors := motmedelErrors.CollectWrappedErrors(err)
		var lastWrappedErrorAttrs []any

		for i := len(wrappedErrors) - 1; i >= 0; i-- {
			wrappedError := wrappedErrors[i]
			if wrappedError == nil {
				continue
			}

			switch reflect.TypeOf(wrappedError).String() {
			case "*errors.joinError", "*fmt.wrapError", "*fmt.wrapErrors":
				continue
			}

			wrappedErrorAttrs := (&ErrorContextExtractor{SkipCause: true, SkipInput: extractor.SkipInput, SkipStackTrace: extractor.SkipStackTrace}).MakeErrorAttrs(wrappedError)

			if lastWrappedErrorAttrs != nil {
				wrappedErrorAttrs = append(
					wrappedErrorAttrs,
					slog.Group("cause", lastWrappedErrorAttrs...),
				)
			}

			lastWrappedErrorAttrs = wrappedErrorAttrs
		}

		if lastWrappedErrorAttrs != nil {
			if errType == "*errors.joinError" {
				return lastWrappedErrorAttrs
			}
			attrs = append(attrs, slog.Group("cause", lastWrappedErrorAttrs...))
		}
	}

	if codeError, ok := err.(motmedelErrors.CodeErrorI); ok {
		if code := codeError.GetCode(); code != "" {
			attrs = append(attrs, slog.String("code", code))
		}
	}

	if stackTraceError, ok := err.(motmedelErrors.StackTraceErrorI); ok && !extractor.SkipStackTrace {
		if stackTrace := stackTraceError.GetStackTrace(); stackTrace != "" {
			attrs = append(attrs, slog.String("stack_trace", stackTrace))
		}
	}

	if errorMessage != "" {
		attrs = append(attrs, slog.String("message", errorMessage))
	}

	return attrs
}

func (extractor *ErrorContextExtractor) Handle(ctx context.Context, record *slog.Record) error {
	if record == nil {
		return nil
	}

	if logErr, ok := ctx.Value(motmedelContext.ErrorContextKey).(error); ok && logErr != nil {
		record.Add(slog.Group("error", extractor.MakeErrorAttrs(logErr)...))
	}

	return nil
}

func ParseLevel(levelString string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelString)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func AttrsFromMap(m map[string]any) []any {
	var attrs []any
	for key, value := range m {
		if stringAnyMap, ok := value.(map[string]any); ok {
			attrs = append(attrs, slog.Group(key, AttrsFromMap(stringAnyMap)...))
		} else {
			attrs = append(attrs, slog.Any(key, value))
		}
	}
	return attrs
}
