package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkingStore is the per-conversation short-horizon buffer. Everything
// lives in memory and starts empty on restart.
type WorkingStore struct {
	mu            sync.Mutex
	policy        Policy
	conversations map[string][]WorkingEntry
}

func NewWorkingStore(policy Policy) *WorkingStore {
	return &WorkingStore{
		policy:        policy.normalize(),
		conversations: make(map[string][]WorkingEntry),
	}
}

// Add appends an entry to a conversation, assigning an ID and the default
// TTL/timestamp when unset, then enforces the capacity cap by keeping the
// entries with the highest recency-weighted importance.
func (s *WorkingStore) Add(conversationID string, entry WorkingEntry) WorkingEntry {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.TTL <= 0 {
		entry.TTL = s.policy.WorkingTTL
	}
	entry.Importance = clamp01(entry.Importance)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := append(s.conversations[conversationID], entry)
	if len(entries) > s.policy.WorkingCapacity {
		entries = evictByScore(entries, s.policy.WorkingCapacity, time.Now())
	}
	s.conversations[conversationID] = entries
	return entry
}

// Recall drops expired entries from the conversation in place, then returns
// the most recent limit entries in insertion order. limit <= 0 returns all
// live entries. Unknown conversations yield nil.
func (s *WorkingStore) Recall(conversationID string, limit int) []WorkingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.conversations[conversationID]
	if !ok {
		return nil
	}

	live := dropExpired(entries, time.Now())
	s.conversations[conversationID] = live

	start := 0
	if limit > 0 && len(live) > limit {
		start = len(live) - limit
	}
	out := make([]WorkingEntry, len(live)-start)
	copy(out, live[start:])
	return out
}

// Cleanup expires entries across all conversations and drops conversations
// left empty. It returns the removal counts for sweep logging.
func (s *WorkingStore) Cleanup() (removedEntries, removedConversations int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, entries := range s.conversations {
		live := dropExpired(entries, now)
		removedEntries += len(entries) - len(live)
		if len(live) == 0 {
			delete(s.conversations, id)
			removedConversations++
			continue
		}
		s.conversations[id] = live
	}
	return removedEntries, removedConversations
}

func (s *WorkingStore) Stats() WorkingStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := WorkingStats{Conversations: len(s.conversations)}
	for _, entries := range s.conversations {
		stats.TotalEntries += len(entries)
	}
	return stats
}

// evictByScore keeps the cap highest-scoring entries, preserving their
// insertion order. Score is importance weighted by remaining TTL fraction,
// so old unimportant entries go first regardless of insertion order.
func evictByScore(entries []WorkingEntry, capacity int, now time.Time) []WorkingEntry {
	type scored struct {
		index int
		score float64
	}
	ranked := make([]scored, len(entries))
	for i, e := range entries {
		remaining := 0.0
		if e.TTL > 0 {
			remaining = 1 - float64(now.Sub(e.Timestamp))/float64(e.TTL)
		}
		ranked[i] = scored{index: i, score: e.Importance * remaining}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	keep := make(map[int]struct{}, capacity)
	for _, r := range ranked[:capacity] {
		keep[r.index] = struct{}{}
	}

	out := make([]WorkingEntry, 0, capacity)
	for i, e := range entries {
		if _, ok := keep[i]; ok {
			out = append(out, e)
		}
	}
	return out
}

func dropExpired(entries []WorkingEntry, now time.Time) []WorkingEntry {
	live := entries[:0]
	for _, e := range entries {
		if !e.Expired(now) {
			live = append(live, e)
		}
	}
	return live
}
