package memory

import "time"

// Policy bundles the retention and consolidation tunables shared by the
// tier stores. Zero values are backfilled by normalize so a partially
// populated policy behaves like the default one.
type Policy struct {
	WorkingCapacity     int
	WorkingTTL          time.Duration
	EpisodicCapacity    int
	EpisodicBaseTTL     time.Duration
	EpisodicThreshold   float64
	SimilarityThreshold float64
	ReinforcementBoost  float64
	SummaryMaxChars     int
}

func DefaultPolicy() Policy {
	return Policy{
		WorkingCapacity:     50,
		WorkingTTL:          5 * time.Minute,
		EpisodicCapacity:    500,
		EpisodicBaseTTL:     30 * 24 * time.Hour,
		EpisodicThreshold:   0.6,
		SimilarityThreshold: 0.7,
		ReinforcementBoost:  0.1,
		SummaryMaxChars:     200,
	}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.WorkingCapacity <= 0 {
		p.WorkingCapacity = def.WorkingCapacity
	}
	if p.WorkingTTL <= 0 {
		p.WorkingTTL = def.WorkingTTL
	}
	if p.EpisodicCapacity <= 0 {
		p.EpisodicCapacity = def.EpisodicCapacity
	}
	if p.EpisodicBaseTTL <= 0 {
		p.EpisodicBaseTTL = def.EpisodicBaseTTL
	}
	if p.EpisodicThreshold <= 0 {
		p.EpisodicThreshold = def.EpisodicThreshold
	}
	if p.SimilarityThreshold <= 0 {
		p.SimilarityThreshold = def.SimilarityThreshold
	}
	if p.ReinforcementBoost <= 0 {
		p.ReinforcementBoost = def.ReinforcementBoost
	}
	if p.SummaryMaxChars <= 0 {
		p.SummaryMaxChars = def.SummaryMaxChars
	}
	return p
}

// ShouldRecordEpisode decides whether an observation is noteworthy enough
// for the episodic tier.
func (p Policy) ShouldRecordEpisode(importance float64) bool {
	return importance > p.EpisodicThreshold
}

// EpisodeTTL scales the base retention by importance.
func (p Policy) EpisodeTTL(importance float64) time.Duration {
	return time.Duration(float64(p.EpisodicBaseTTL) * clamp01(importance))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
