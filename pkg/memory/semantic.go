package memory

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lowkeylabs/guildmem/pkg/logger"
	"github.com/lowkeylabs/guildmem/pkg/storage"
)

const (
	storageNamespace = "memories"
	storageKey       = "semantic_memory.json"
)

// SemanticStore accumulates guild knowledge. New observations either
// reinforce an existing similar concept or become a new one; the full
// guild-keyed collection is persisted after every mutation, best effort.
type SemanticStore struct {
	mu      sync.Mutex
	policy  Policy
	store   storage.Store
	guilds  map[string][]Concept
	ready   chan struct{}
	writeWG sync.WaitGroup
}

// NewSemanticStore builds the store and kicks off an asynchronous snapshot
// load. A load failure is logged and leaves the store empty, never fatal.
// A nil storage store disables persistence entirely.
func NewSemanticStore(policy Policy, store storage.Store) *SemanticStore {
	s := &SemanticStore{
		policy: policy.normalize(),
		store:  store,
		guilds: make(map[string][]Concept),
		ready:  make(chan struct{}),
	}
	go s.load()
	return s
}

func (s *SemanticStore) load() {
	defer close(s.ready)
	if s.store == nil {
		return
	}

	data, ok, err := s.store.Read(context.Background(), storageNamespace, storageKey)
	if err != nil {
		logger.ErrorCF("memory", "Failed to load semantic snapshot, starting empty", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if !ok {
		return
	}

	loaded := make(map[string][]Concept)
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.ErrorCF("memory", "Corrupt semantic snapshot, starting empty", map[string]any{
			"error": err.Error(),
		})
		return
	}

	s.mu.Lock()
	s.guilds = loaded
	s.mu.Unlock()

	total := 0
	for _, concepts := range loaded {
		total += len(concepts)
	}
	logger.InfoCF("memory", "Loaded semantic snapshot", map[string]any{
		"guilds":   len(loaded),
		"concepts": total,
	})
}

// WaitReady blocks until the startup load attempt has finished.
func (s *SemanticStore) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Learn merges the pattern into an existing concept of the same type when
// its content is similar enough, otherwise records a new concept. Either
// way the snapshot is persisted in the background.
func (s *SemanticStore) Learn(guildID string, pattern Pattern) Concept {
	<-s.ready

	s.mu.Lock()
	concepts := s.guilds[guildID]

	var result Concept
	merged := false
	for i := range concepts {
		if concepts[i].Type != pattern.Type {
			continue
		}
		if jaccard(concepts[i].Content, pattern.Content) <= s.policy.SimilarityThreshold {
			continue
		}
		concepts[i].Reinforcements++
		concepts[i].Confidence = math.Min(1.0, concepts[i].Confidence+s.policy.ReinforcementBoost)
		concepts[i].Evidence = append(concepts[i].Evidence, pattern.Evidence...)
		result = concepts[i]
		merged = true
		break
	}

	if !merged {
		result = Concept{
			ID:             uuid.NewString(),
			Type:           pattern.Type,
			GuildID:        guildID,
			Content:        pattern.Content,
			Confidence:     clamp01(pattern.Confidence),
			Evidence:       append([]string(nil), pattern.Evidence...),
			LearnedAt:      time.Now(),
			Reinforcements: 1,
		}
		concepts = append(concepts, result)
	}
	s.guilds[guildID] = concepts

	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snapshot)
	return result
}

// Recall returns concepts matching the query ranked by
// confidence × ln(reinforcements+1), so frequently reinforced knowledge
// outranks single observations of equal confidence.
func (s *SemanticStore) Recall(query ConceptQuery) []Concept {
	<-s.ready

	s.mu.Lock()
	defer s.mu.Unlock()

	concepts, ok := s.guilds[query.GuildID]
	if !ok {
		return nil
	}

	matched := make([]Concept, 0, len(concepts))
	for _, c := range concepts {
		if query.Type != "" && c.Type != query.Type {
			continue
		}
		if c.Confidence < query.MinConfidence {
			continue
		}
		matched = append(matched, c)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return conceptRank(matched[i]) > conceptRank(matched[j])
	})

	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched
}

func (s *SemanticStore) Stats() SemanticStats {
	<-s.ready

	s.mu.Lock()
	defer s.mu.Unlock()

	stats := SemanticStats{Guilds: len(s.guilds)}
	for _, concepts := range s.guilds {
		stats.TotalConcepts += len(concepts)
	}
	return stats
}

// Flush waits for in-flight persistence writes, for shutdown and tests.
func (s *SemanticStore) Flush() {
	s.writeWG.Wait()
}

// snapshotLocked serializes the collection while the caller holds the lock,
// so the background write never races concept mutation.
func (s *SemanticStore) snapshotLocked() []byte {
	data, err := json.Marshal(s.guilds)
	if err != nil {
		logger.ErrorCF("memory", "Failed to encode semantic snapshot", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return data
}

// persist writes the snapshot in the background. A failed save is logged
// only; in-memory state remains the source of truth until the next save.
func (s *SemanticStore) persist(snapshot []byte) {
	if s.store == nil || snapshot == nil {
		return
	}
	s.writeWG.Add(1)
	go func() {
		defer s.writeWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.store.Write(ctx, storageNamespace, storageKey, snapshot); err != nil {
			logger.ErrorCF("memory", "Failed to persist semantic snapshot", map[string]any{
				"error": err.Error(),
			})
		}
	}()
}

func conceptRank(c Concept) float64 {
	return c.Confidence * math.Log(float64(c.Reinforcements)+1)
}
