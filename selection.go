package speechrouter

import (
	"sort"
	"strings"
	"time"
)

// Candidate is a provider considered for a request, with everything the
// scoring pass needs resolved up front.
type Candidate struct {
	Name          string
	Config        ProviderConfig
	Descriptor    Descriptor
	Health        ProviderHealth
	Metrics       ProviderMetrics
	EstimatedCost float64
	Score         float64
}

// budgetSoftLimit is the share of the monthly budget above which a
// provider's spend makes it dispreferred (not excluded).
const budgetSoftLimit = 0.9

// buildCandidates assembles one candidate per enabled provider, in
// declaration order (priority, then name).
func buildCandidates(cfg Config, descriptors map[string]Descriptor, health *HealthMonitor, metrics *MetricsTracker, text string) []Candidate {
	var out []Candidate
	for _, pc := range cfg.EnabledProviders() {
		d, ok := descriptors[pc.Name]
		if !ok {
			d = Descriptor{Name: pc.Name}
		}
		out = append(out, Candidate{
			Name:          pc.Name,
			Config:        pc,
			Descriptor:    d,
			Health:        health.Get(pc.Name),
			Metrics:       metrics.Provider(pc.Name),
			EstimatedCost: EstimateCost(text, pc.CostPerChar),
		})
	}
	return out
}

// selectCandidates runs the full selection pipeline and returns candidates
// ranked best-first. The filter steps are strict; the re-rank steps only
// reorder; the budget step is a soft preference.
func selectCandidates(cfg Config, descriptors map[string]Descriptor, health *HealthMonitor, metrics *MetricsTracker, req SynthesisRequest, criteria *SelectionCriteria) ([]Candidate, error) {
	candidates := buildCandidates(cfg, descriptors, health, metrics, req.Text)
	if len(candidates) == 0 {
		return nil, ErrNoProviderAvailable
	}

	// 1. Health: drop tripped providers. Degraded candidates survive and are
	// penalized in scoring.
	candidates = keep(candidates, func(c Candidate) bool {
		return c.Health.Status != StatusUnhealthy
	})
	if len(candidates) == 0 {
		return nil, ErrNoProviderAvailable
	}

	// 2. Language: match on the primary subtag ("en" from "en-US").
	lang := req.Language
	if criteria != nil && criteria.Language != "" {
		lang = criteria.Language
	}
	if lang != "" {
		candidates = keep(candidates, func(c Candidate) bool {
			return supportsLanguage(c.Config.Languages, lang)
		})
		if len(candidates) == 0 {
			return nil, ErrNoProviderAvailable
		}
	}

	// 3. Length.
	candidates = keep(candidates, func(c Candidate) bool {
		return c.Config.MaxCharsPerRequest <= 0 || len(req.Text) <= c.Config.MaxCharsPerRequest
	})
	if len(candidates) == 0 {
		return nil, ErrNoProviderAvailable
	}

	// 4. Quality re-rank: static per-tier ranking table; unranked sorts last.
	if criteria != nil && criteria.Quality != "" {
		tier := criteria.Quality
		sort.SliceStable(candidates, func(i, j int) bool {
			return qualityRank(candidates[i].Descriptor, tier) < qualityRank(candidates[j].Descriptor, tier)
		})
	}

	// 5. Cost re-rank.
	if cfg.Policy.CostOptimization && (criteria == nil || criteria.Cost != CostHigh) {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].EstimatedCost < candidates[j].EstimatedCost
		})
	}

	// 6. Latency re-rank.
	if criteria != nil && criteria.Latency == LatencyLow {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Health.Latency < candidates[j].Health.Latency
		})
	}

	// 7. Budget: prefer providers under the soft limit; fall back to the
	// unfiltered set rather than failing outright.
	if budget := cfg.Policy.MonthlyBudget; budget > 0 {
		under := keep(candidates, func(c Candidate) bool {
			return c.Metrics.TotalCost < budgetSoftLimit*budget
		})
		if len(under) > 0 {
			candidates = under
		}
	}

	// 8. Composite scoring; stable sort preserves the re-rank order on ties.
	for i := range candidates {
		candidates[i].Score = compositeScore(candidates[i], req, criteria)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	return candidates, nil
}

// compositeScore weighs health (30), reliability+latency (25), cost (25)
// and affinity bonuses (20).
func compositeScore(c Candidate, req SynthesisRequest, criteria *SelectionCriteria) float64 {
	var score float64

	switch c.Health.Status {
	case StatusHealthy:
		score += 30
	case StatusDegraded:
		score += 15
	}

	score += reliabilityScore(c.Metrics.ErrorRate, c.Health.Latency)
	score += costScore(c.EstimatedCost)
	score += affinityBonus(c, req, criteria)

	return score
}

// reliabilityScore derives up to 25 points from error rate (15) and
// last-known latency (10), both clamped to non-negative.
func reliabilityScore(errorRate float64, latency time.Duration) float64 {
	rel := (1 - errorRate) * 15
	if rel < 0 {
		rel = 0
	}
	lat := 10 - float64(latency.Milliseconds())/100
	if lat < 0 {
		lat = 0
	}
	return rel + lat
}

// costScore awards up to 25 points, more for cheaper requests.
func costScore(estimatedCost float64) float64 {
	s := 25 - estimatedCost*5000
	if s < 0 {
		return 0
	}
	return s
}

// affinityBonus awards up to 20 points from the descriptor table.
func affinityBonus(c Candidate, req SynthesisRequest, criteria *SelectionCriteria) float64 {
	var bonus float64
	if criteria != nil && criteria.Quality == QualityPremium && c.Descriptor.PremiumVoice {
		bonus += 10
	}
	if criteria != nil && criteria.Quality != "" {
		if rank, ok := c.Descriptor.QualityRank[criteria.Quality]; ok && rank == 1 {
			bonus += 5
		}
	}
	if c.Descriptor.Multilingual && containsNonLatinScript(req.Text) {
		bonus += 5
	}
	if criteria != nil && criteria.VoiceStyle != "" && supportsStyle(c.Descriptor.VoiceStyles, criteria.VoiceStyle) {
		bonus += 5
	}
	if bonus > 20 {
		bonus = 20
	}
	return bonus
}

func supportsStyle(styles []string, want string) bool {
	for _, s := range styles {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

func qualityRank(d Descriptor, tier QualityTier) int {
	if rank, ok := d.QualityRank[tier]; ok {
		return rank
	}
	// Unranked providers are not excluded, they sort last.
	return 1 << 20
}

func keep(candidates []Candidate, pred func(Candidate) bool) []Candidate {
	var filtered []Candidate
	for _, c := range candidates {
		if pred(c) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}
