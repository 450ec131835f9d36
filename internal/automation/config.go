package automation

import (
	"log/slog"

	"planswitch/internal/config"
	"planswitch/internal/portal"
)

// BreakerName labels the shared portal breaker in logs.
const BreakerName = "portal"

// ConfigFromPortal maps the process portal settings onto an EngineConfig.
// Every entry point builds its engine this way so the scheduler, the API and
// the CLI behave identically.
func ConfigFromPortal(p config.PortalConfig, logger *slog.Logger) EngineConfig {
	return EngineConfig{
		Breaker: portal.NewBreaker(BreakerName, p.BreakerThreshold, p.BreakerCooldown),
		Endpoints: portal.Endpoints{
			LoginPath:          p.LoginPath,
			ConfirmPath:        p.ConfirmPath,
			ServiceDetailsPath: p.ServiceDetailsPath,
		},
		Classifier:     portal.NewKeywordClassifier(p.SuccessKeywords...),
		DefaultTimeout: p.RequestTimeout,
		Logger:         logger,
	}
}
