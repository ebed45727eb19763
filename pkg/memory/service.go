package memory

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/lowkeylabs/guildmem/pkg/logger"
	"github.com/lowkeylabs/guildmem/pkg/storage"
)

// Config configures the memory subsystem. Zero values fall back to the
// reference policy.
type Config struct {
	WorkingCapacity     int
	WorkingTTL          time.Duration
	EpisodicCapacity    int
	EpisodicBaseTTL     time.Duration
	EpisodicThreshold   float64
	SimilarityThreshold float64
	ReinforcementBoost  float64
	SummaryMaxChars     int
	CleanupInterval     time.Duration
	RecallCacheTTL      time.Duration
	DisableRecallCache  bool
}

// Service is the single entry point callers use. Writes fan out to the
// working tier always and to the episodic tier above the importance
// threshold; recalls fan out across the requested tiers and merge. A
// background sweep expires the working and episodic tiers periodically.
//
// The service itself holds no data beyond the tier stores; its only states
// are running (initial) and stopped (after Stop).
type Service struct {
	cfg      Config
	policy   Policy
	working  *WorkingStore
	episodic *EpisodicStore
	semantic *SemanticStore

	cache *ristretto.Cache
	epoch atomic.Uint64

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewService wires the three tiers over the given durable store (which only
// the semantic tier uses; nil disables persistence) and starts the cleanup
// timer.
func NewService(cfg Config, store storage.Store) (*Service, error) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.RecallCacheTTL <= 0 {
		cfg.RecallCacheTTL = time.Second
	}
	policy := Policy{
		WorkingCapacity:     cfg.WorkingCapacity,
		WorkingTTL:          cfg.WorkingTTL,
		EpisodicCapacity:    cfg.EpisodicCapacity,
		EpisodicBaseTTL:     cfg.EpisodicBaseTTL,
		EpisodicThreshold:   cfg.EpisodicThreshold,
		SimilarityThreshold: cfg.SimilarityThreshold,
		ReinforcementBoost:  cfg.ReinforcementBoost,
		SummaryMaxChars:     cfg.SummaryMaxChars,
	}.normalize()

	svc := &Service{
		cfg:      cfg,
		policy:   policy,
		working:  NewWorkingStore(policy),
		episodic: NewEpisodicStore(policy),
		semantic: NewSemanticStore(policy, store),
		stopCh:   make(chan struct{}),
	}

	if !cfg.DisableRecallCache {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 10_000,
			MaxCost:     1 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("create recall cache: %w", err)
		}
		svc.cache = cache
	}

	svc.wg.Add(1)
	go svc.runCleanup()
	return svc, nil
}

// Store writes the observation to the working tier and, when important
// enough, records an episode. It never fails; malformed input degrades to
// a smaller write.
func (s *Service) Store(obs Observation) {
	importance := clamp01(obs.Importance)
	guildID, channelID := splitConversationID(obs.ConversationID)
	if obs.GuildID != "" {
		guildID = obs.GuildID
	}

	s.working.Add(obs.ConversationID, WorkingEntry{
		Content:    obs.Content,
		AuthorID:   obs.UserID,
		AuthorName: obs.UserName,
		GuildID:    guildID,
		ChannelID:  channelID,
		Importance: importance,
	})

	if s.policy.ShouldRecordEpisode(importance) {
		epType := EpisodeConversation
		if obs.Type == "action" {
			epType = EpisodeModeration
		}
		s.episodic.Record(Episode{
			Type:         epType,
			GuildID:      guildID,
			Participants: []string{obs.UserID},
			Summary:      truncateRunes(obs.Content, s.policy.SummaryMaxChars),
			Sentiment:    obs.Sentiment,
			Importance:   importance,
			Details:      EpisodeDetails{Content: obs.Content},
		})
	}

	s.epoch.Add(1)
}

// Recall fans the query out to the requested tiers and merges the results.
// An empty tier name means all tiers; an unknown one yields empty results
// rather than an error.
func (s *Service) Recall(query RecallQuery) RecallResult {
	start := time.Now()

	cacheKey := s.recallCacheKey(query)
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey); ok {
			if cached, ok := v.(RecallResult); ok {
				result := dropExpiredFromResult(cached, time.Now())
				result.RecallTimeMs = elapsedMs(start)
				return result
			}
		}
	}

	all := query.Tier == "" || query.Tier == "all"
	result := RecallResult{}
	if all || query.Tier == TierWorking {
		result.Working = s.working.Recall(query.ConversationID, query.Limit)
	}
	if all || query.Tier == TierEpisodic {
		eq := EpisodeQuery{GuildID: query.GuildID, Limit: query.Limit}
		if query.UserID != "" {
			eq.Participants = []string{query.UserID}
		}
		result.Episodic = s.episodic.Recall(eq)
	}
	if all || query.Tier == TierSemantic {
		result.Semantic = s.semantic.Recall(ConceptQuery{GuildID: query.GuildID, Limit: query.Limit})
	}
	result.TotalRecalled = len(result.Working) + len(result.Episodic) + len(result.Semantic)
	result.RecallTimeMs = elapsedMs(start)

	if s.cache != nil {
		s.cache.SetWithTTL(cacheKey, result, 1, s.cfg.RecallCacheTTL)
	}
	return result
}

// LearnPattern forwards directly to the semantic tier. There is no
// automatic promotion path from the episodic tier; callers decide what
// becomes knowledge.
func (s *Service) LearnPattern(guildID string, pattern Pattern) {
	s.semantic.Learn(guildID, pattern)
	s.epoch.Add(1)
}

// Stats returns a per-tier census.
func (s *Service) Stats() Stats {
	return Stats{
		Working:  s.working.Stats(),
		Episodic: s.episodic.Stats(),
		Semantic: s.semantic.Stats(),
	}
}

// Stop cancels the cleanup timer and waits out in-flight persistence
// writes. It is idempotent; a stopped service never restarts.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.semantic.Flush()
		if s.cache != nil {
			s.cache.Close()
		}
	})
}

func (s *Service) runCleanup() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			entries, conversations := s.working.Cleanup()
			episodes, guilds := s.episodic.Cleanup()
			s.epoch.Add(1)
			logger.DebugCF("memory", "Cleanup sweep", map[string]any{
				"working_entries":       entries,
				"working_conversations": conversations,
				"episodes":              episodes,
				"episode_guilds":        guilds,
			})
		}
	}
}

// recallCacheKey folds the write epoch in, so any store or learn call
// invalidates previously cached recalls.
func (s *Service) recallCacheKey(q RecallQuery) string {
	return fmt.Sprintf("recall:%d|%s|%s|%s|%s|%d",
		s.epoch.Load(), q.Tier, q.GuildID, q.ConversationID, q.UserID, q.Limit)
}

// dropExpiredFromResult re-applies the lazy-expiry filter to a cached
// result, so an entry that expired inside the cache window is never served.
func dropExpiredFromResult(r RecallResult, now time.Time) RecallResult {
	working := make([]WorkingEntry, 0, len(r.Working))
	for _, e := range r.Working {
		if !e.Expired(now) {
			working = append(working, e)
		}
	}
	episodic := make([]Episode, 0, len(r.Episodic))
	for _, e := range r.Episodic {
		if !e.Expired(now) {
			episodic = append(episodic, e)
		}
	}
	r.Working = working
	r.Episodic = episodic
	r.TotalRecalled = len(working) + len(episodic) + len(r.Semantic)
	return r
}

// splitConversationID unpacks the guild:channel composite key.
func splitConversationID(conversationID string) (guildID, channelID string) {
	if idx := strings.Index(conversationID, ":"); idx >= 0 {
		return conversationID[:idx], conversationID[idx+1:]
	}
	return "", conversationID
}

// ConversationID builds the composite working-tier key.
func ConversationID(guildID, channelID string) string {
	return guildID + ":" + channelID
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
