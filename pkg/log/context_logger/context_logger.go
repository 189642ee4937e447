package context_logger

import (
	"log/slog"

	motmedelLog "github.com/Motmedel/csp_go/pkg/log"
)

func New(handler slog.Handler, extractors ...motmedelLog.ContextExtractor) *slog.Logger {
	return slog.New(&motmedelLog.ContextHandler{Next: handler, Extractors: extractors})
}

// NewWithErrorExtractor returns a logger that renders errors stored in the context.
func NewWithErrorExtractor(handler slog.Handler) *slog.Logger {
	return New(handler, &motmedelLog.ErrorContextExtractor{})
}
