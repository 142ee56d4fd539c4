package meter

import (
	"log/slog"

	"github.com/voicewing/speechrouter"
)

// LogMeter logs routing events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ speechrouter.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnRoute(e speechrouter.RouteEvent) {
	m.Logger.Info("route",
		"request", e.RequestID,
		"provider", e.Provider,
		"attempt", e.Attempt,
		"characters", e.Characters,
		"estimated_cost", e.EstimatedCost,
		"score", e.Score,
	)
}

func (m *LogMeter) OnResult(e speechrouter.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"request", e.RequestID,
			"provider", e.Provider,
			"duration_ms", e.Latency.Milliseconds(),
			"cost", e.Cost,
			"audio_seconds", e.AudioSeconds,
		)
	} else {
		m.Logger.Warn("result_error",
			"request", e.RequestID,
			"provider", e.Provider,
			"duration_ms", e.Latency.Milliseconds(),
			"error", e.Error,
		)
	}
}

func (m *LogMeter) OnSkip(e speechrouter.SkipEvent) {
	m.Logger.Debug("skip",
		"request", e.RequestID,
		"provider", e.Provider,
		"reason", e.Reason,
	)
}

func (m *LogMeter) OnBreakerOpen(e speechrouter.BreakerEvent) {
	m.Logger.Warn("breaker_open",
		"provider", e.Provider,
		"error_rate", e.ErrorRate,
	)
}
