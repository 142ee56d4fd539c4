package meter

import "github.com/voicewing/speechrouter"

// NoopMeter discards all events.
type NoopMeter struct{}

var _ speechrouter.Meter = (*NoopMeter)(nil)

func (*NoopMeter) OnRoute(speechrouter.RouteEvent)         {}
func (*NoopMeter) OnResult(speechrouter.ResultEvent)       {}
func (*NoopMeter) OnSkip(speechrouter.SkipEvent)           {}
func (*NoopMeter) OnBreakerOpen(speechrouter.BreakerEvent) {}
