package speechrouter

// Descriptor is a data-driven capability record for a provider. Selection
// logic reads only the table; adding a provider requires configuration, not
// code changes.
type Descriptor struct {
	Name string

	// CredentialExempt marks providers that work without an API key and may
	// therefore be enabled without credentials (the "always available" default).
	CredentialExempt bool

	// QualityRank assigns an integer rank per quality tier (lower is better).
	// Providers without a rank for the requested tier sort last but are not
	// excluded.
	QualityRank map[QualityTier]int

	// PremiumVoice marks providers tuned for premium-quality voices.
	PremiumVoice bool

	// Multilingual marks providers with broad non-Latin script coverage.
	Multilingual bool

	// VoiceStyles names the delivery styles the provider's voices cover,
	// e.g. "narrative" or "conversational". Matched against
	// SelectionCriteria.VoiceStyle, case-insensitively.
	VoiceStyles []string

	// CharsPerSecond is the speaking rate used to estimate audio duration
	// when a provider does not report one. Zero means use the package default.
	CharsPerSecond float64
}

// defaultDescriptors covers the providers this module ships adapters for,
// plus common hosted services configured through the generic HTTP path.
var defaultDescriptors = map[string]Descriptor{
	"elevenlabs": {
		Name:         "elevenlabs",
		QualityRank:  map[QualityTier]int{QualityPremium: 1, QualityNeural: 2, QualityStandard: 3},
		PremiumVoice: true,
		VoiceStyles:  []string{"narrative", "expressive", "conversational"},
	},
	"openai": {
		Name:         "openai",
		QualityRank:  map[QualityTier]int{QualityPremium: 2, QualityNeural: 1, QualityStandard: 2},
		Multilingual: true,
		VoiceStyles:  []string{"conversational"},
	},
	"azure": {
		Name:         "azure",
		QualityRank:  map[QualityTier]int{QualityNeural: 2, QualityStandard: 1},
		Multilingual: true,
		VoiceStyles:  []string{"newscast", "conversational"},
	},
	"google": {
		Name:        "google",
		QualityRank: map[QualityTier]int{QualityNeural: 3, QualityStandard: 2},
	},
	"edge": {
		Name:             "edge",
		CredentialExempt: true,
		QualityRank:      map[QualityTier]int{QualityStandard: 4},
		Multilingual:     true,
	},
}

// DescriptorFor returns the descriptor for a provider name. Unknown providers
// get a zero-value descriptor carrying only the name.
func DescriptorFor(name string) Descriptor {
	if d, ok := defaultDescriptors[name]; ok {
		return d
	}
	return Descriptor{Name: name}
}

// RegisterDescriptor adds or replaces a provider descriptor in the default
// table. Call before constructing routers; the table is copied at New.
func RegisterDescriptor(d Descriptor) {
	defaultDescriptors[d.Name] = d
}

func copyDescriptors() map[string]Descriptor {
	out := make(map[string]Descriptor, len(defaultDescriptors))
	for k, v := range defaultDescriptors {
		out[k] = v
	}
	return out
}
