package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EpisodicStore records noteworthy guild happenings. Retention scales with
// importance; capacity pressure evicts the least important episodes first,
// irrespective of age.
type EpisodicStore struct {
	mu     sync.Mutex
	policy Policy
	guilds map[string][]Episode
}

func NewEpisodicStore(policy Policy) *EpisodicStore {
	return &EpisodicStore{
		policy: policy.normalize(),
		guilds: make(map[string][]Episode),
	}
}

// Record appends an episode to its guild, assigning an ID and an
// importance-scaled TTL, then enforces the guild capacity cap.
func (s *EpisodicStore) Record(episode Episode) Episode {
	if episode.ID == "" {
		episode.ID = uuid.NewString()
	}
	if episode.Timestamp.IsZero() {
		episode.Timestamp = time.Now()
	}
	if episode.Sentiment == "" {
		episode.Sentiment = SentimentNeutral
	}
	episode.Importance = clamp01(episode.Importance)
	episode.TTL = s.policy.EpisodeTTL(episode.Importance)

	s.mu.Lock()
	defer s.mu.Unlock()

	episodes := append(s.guilds[episode.GuildID], episode)
	if len(episodes) > s.policy.EpisodicCapacity {
		sort.SliceStable(episodes, func(i, j int) bool {
			return episodes[i].Importance > episodes[j].Importance
		})
		episodes = episodes[:s.policy.EpisodicCapacity]
	}
	s.guilds[episode.GuildID] = episodes
	return episode
}

// Recall returns live episodes matching the query, ranked by
// recency-weighted importance. Absent guilds yield nil.
func (s *EpisodicStore) Recall(query EpisodeQuery) []Episode {
	s.mu.Lock()
	defer s.mu.Unlock()

	episodes, ok := s.guilds[query.GuildID]
	if !ok {
		return nil
	}

	now := time.Now()
	matched := make([]Episode, 0, len(episodes))
	for _, e := range episodes {
		if e.Expired(now) {
			continue
		}
		if query.Type != "" && e.Type != query.Type {
			continue
		}
		if len(query.Participants) > 0 && !participantsIntersect(e.Participants, query.Participants) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return s.recencyWeight(matched[i], now) > s.recencyWeight(matched[j], now)
	})

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched
}

// recencyWeight decays importance linearly over the base retention window,
// so an old high-importance episode can still outrank a fresh trivial one.
func (s *EpisodicStore) recencyWeight(e Episode, now time.Time) float64 {
	elapsed := float64(now.Sub(e.Timestamp)) / float64(s.policy.EpisodicBaseTTL)
	return (1 - elapsed) * e.Importance
}

// Cleanup removes expired episodes and drops empty guild buckets.
func (s *EpisodicStore) Cleanup() (removedEpisodes, removedGuilds int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for guildID, episodes := range s.guilds {
		live := episodes[:0]
		for _, e := range episodes {
			if !e.Expired(now) {
				live = append(live, e)
			}
		}
		removedEpisodes += len(episodes) - len(live)
		if len(live) == 0 {
			delete(s.guilds, guildID)
			removedGuilds++
			continue
		}
		s.guilds[guildID] = live
	}
	return removedEpisodes, removedGuilds
}

func (s *EpisodicStore) Stats() EpisodicStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := EpisodicStats{Guilds: len(s.guilds)}
	for _, episodes := range s.guilds {
		stats.TotalEpisodes += len(episodes)
	}
	return stats
}

func participantsIntersect(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
