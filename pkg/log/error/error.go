package error

import (
	"context"
	"log/slog"

	motmedelContext "github.com/Motmedel/csp_go/pkg/context"
)

func LogError(message string, err error, logger *slog.Logger, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.ErrorContext(
		motmedelContext.WithErrorContextValue(context.Background(), err),
		message,
		args...,
	)
}

func LogWarning(message string, err error, logger *slog.Logger, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.WarnContext(
		motmedelContext.WithErrorContextValue(context.Background(), err),
		message,
		args...,
	)
}

func LogDebug(message string, err error, logger *slog.Logger, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(
		motmedelContext.WithErrorContextValue(context.Background(), err),
		message,
		args...,
	)
}
