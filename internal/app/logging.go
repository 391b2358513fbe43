package app

import (
	"strings"

	"mpc-wallet/go-backend/internal/outcome"
)

const componentName = "app"

func (s *Service) logInfo(operation, message string, attrs ...any) {
	base := []any{"component", componentName, "operation", strings.TrimSpace(operation)}
	s.logger.Info(message, append(base, attrs...)...)
}

func (s *Service) logFailure(operation string, failure *outcome.Failure, attrs ...any) {
	if failure == nil {
		return
	}
	base := []any{
		"component", componentName,
		"operation", strings.TrimSpace(operation),
		"kind", string(failure.Kind),
		"error", failure.Message,
	}
	if failure.Kind == outcome.KindPrecondition {
		s.logger.Info("operation rejected", append(base, attrs...)...)
		return
	}
	s.logger.Error("operation failed", append(base, attrs...)...)
}
