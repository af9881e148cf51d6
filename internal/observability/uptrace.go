package observability

import (
	"context"
	"strings"

	"github.com/uptrace/uptrace-go/uptrace"

	"github.com/ivanldv/sportcal/internal/config"
	"github.com/ivanldv/sportcal/internal/platform/logging"
)

func noopShutdown(context.Context) error { return nil }

// InitUptrace configures the global OpenTelemetry providers for
// Uptrace. When disabled or unconfigured the returned shutdown is a
// noop, so callers always defer it.
func InitUptrace(cfg config.Config, logger *logging.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Default()
	}

	var reason string
	switch {
	case !cfg.UptraceEnabled:
		reason = "UPTRACE_ENABLED=false"
	case strings.TrimSpace(cfg.UptraceDSN) == "":
		reason = "UPTRACE_DSN empty"
	}
	if reason != "" {
		logger.Info("uptrace disabled", "reason", reason)
		return noopShutdown, nil
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
	)

	logger.Info("uptrace enabled",
		"service_name", cfg.ServiceName,
		"service_version", cfg.ServiceVersion,
		"environment", cfg.AppEnv,
	)
	return uptrace.Shutdown, nil
}
