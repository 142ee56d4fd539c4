package speechrouter

// QualityTier names a synthesis quality class used in selection criteria.
type QualityTier string

const (
	QualityStandard QualityTier = "standard"
	QualityPremium  QualityTier = "premium"
	QualityNeural   QualityTier = "neural"
)

// CostPreference biases selection toward cheaper or pricier providers.
type CostPreference string

const (
	CostLow      CostPreference = "low"
	CostBalanced CostPreference = "balanced"
	CostHigh     CostPreference = "high"
)

// LatencyPreference biases selection toward faster providers.
type LatencyPreference string

const (
	LatencyLow      LatencyPreference = "low"
	LatencyBalanced LatencyPreference = "balanced"
	LatencyHigh     LatencyPreference = "high"
)

// SynthesisRequest is a single text-to-speech request.
type SynthesisRequest struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"` // BCP 47 tag or bare subtag, e.g. "en-US" or "en"
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
	Pitch    float64 `json:"pitch,omitempty"`
}

// SynthesisResult is the outcome of a successful synthesis call.
type SynthesisResult struct {
	Audio        []byte  `json:"-"`
	AudioSeconds float64 `json:"audio_seconds"`
	CostEstimate float64 `json:"cost_estimate"`
	Format       string  `json:"format,omitempty"`
	Routing      RoutingInfo
}

// SelectionCriteria are optional caller hints that bias provider choice
// without hard-constraining it.
type SelectionCriteria struct {
	Language string
	Quality  QualityTier
	Cost     CostPreference
	Latency  LatencyPreference

	// VoiceStyle names a delivery style, matched against the provider
	// descriptor's VoiceStyles in scoring.
	VoiceStyle string
}

// RoutingInfo describes which provider served the request.
type RoutingInfo struct {
	Provider  string
	RequestID string
	Attempts  int
}

// Status is a point-in-time view of the router, suitable for a status endpoint.
type Status struct {
	Initialized      bool                       `json:"initialized"`
	TotalProviders   int                        `json:"total_providers"`
	HealthyProviders int                        `json:"healthy_providers"`
	Health           map[string]ProviderHealth  `json:"health"`
	Metrics          map[string]ProviderMetrics `json:"metrics"`
}
