package memory

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

// fakeDocStore is an in-memory storage.Store with failure injection.
type fakeDocStore struct {
	mu         sync.Mutex
	data       map[string][]byte
	writes     int
	failWrites bool
	readErr    error
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{data: make(map[string][]byte)}
}

func (f *fakeDocStore) Write(ctx context.Context, namespace, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("disk full")
	}
	f.writes++
	f.data[namespace+"/"+key] = append([]byte(nil), value...)
	return nil
}

func (f *fakeDocStore) Read(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, false, f.readErr
	}
	value, ok := f.data[namespace+"/"+key]
	return value, ok, nil
}

func (f *fakeDocStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) { return 0, nil }

func (f *fakeDocStore) Close() error { return nil }

func waitReady(t *testing.T, s *SemanticStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.WaitReady(ctx); err != nil {
		t.Fatalf("store never became ready: %v", err)
	}
}

func TestSemanticStore_SimilarPatternReinforces(t *testing.T) {
	store := NewSemanticStore(Policy{}, newFakeDocStore())
	waitReady(t, store)

	first := store.Learn("g1", Pattern{
		Type:       ConceptPattern,
		Content:    "alice always posts memes in the general channel",
		Confidence: 0.6,
		Evidence:   []string{"msg-1"},
	})
	second := store.Learn("g1", Pattern{
		Type:       ConceptPattern,
		Content:    "alice always posts memes in the general channel lately",
		Confidence: 0.6,
		Evidence:   []string{"msg-2"},
	})

	if second.ID != first.ID {
		t.Fatalf("expected reinforcement of the same concept, got new id")
	}
	if second.Reinforcements != 2 {
		t.Fatalf("expected 2 reinforcements, got %d", second.Reinforcements)
	}
	if math.Abs(second.Confidence-0.7) > 1e-9 {
		t.Fatalf("expected confidence 0.7, got %v", second.Confidence)
	}
	if len(second.Evidence) != 2 {
		t.Fatalf("expected merged evidence, got %v", second.Evidence)
	}

	if got := store.Recall(ConceptQuery{GuildID: "g1"}); len(got) != 1 {
		t.Fatalf("expected exactly one concept, got %d", len(got))
	}
}

func TestSemanticStore_ConfidenceCapsAtOne(t *testing.T) {
	store := NewSemanticStore(Policy{}, nil)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptRule, Content: "no links in welcome channel", Confidence: 0.95})
	got := store.Learn("g1", Pattern{Type: ConceptRule, Content: "no links in welcome channel please", Confidence: 0.95})

	if got.Confidence != 1.0 {
		t.Fatalf("expected confidence capped at 1.0, got %v", got.Confidence)
	}
}

func TestSemanticStore_DissimilarPatternCreatesNewConcept(t *testing.T) {
	store := NewSemanticStore(Policy{}, nil)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptKnowledge, Content: "weekly raid happens friday evening", Confidence: 0.5})
	store.Learn("g1", Pattern{Type: ConceptKnowledge, Content: "bob moderates the art contest", Confidence: 0.5})

	got := store.Recall(ConceptQuery{GuildID: "g1"})
	if len(got) != 2 {
		t.Fatalf("expected two distinct concepts, got %d", len(got))
	}
	for _, c := range got {
		if c.Reinforcements != 1 {
			t.Fatalf("expected reinforcements 1, got %d", c.Reinforcements)
		}
	}
}

func TestSemanticStore_SameContentDifferentTypeStaysSeparate(t *testing.T) {
	store := NewSemanticStore(Policy{}, nil)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptPattern, Content: "quiet hours after midnight", Confidence: 0.5})
	store.Learn("g1", Pattern{Type: ConceptRule, Content: "quiet hours after midnight", Confidence: 0.5})

	if got := store.Recall(ConceptQuery{GuildID: "g1"}); len(got) != 2 {
		t.Fatalf("expected type-scoped consolidation, got %d concepts", len(got))
	}
}

func TestSemanticStore_RecallRanksByReinforcedConfidence(t *testing.T) {
	store := NewSemanticStore(Policy{}, nil)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptKnowledge, Content: "server birthday is in march", Confidence: 0.8})
	reinforced := "trivia night runs every tuesday"
	for i := 0; i < 5; i++ {
		store.Learn("g1", Pattern{Type: ConceptKnowledge, Content: reinforced, Confidence: 0.4})
	}

	got := store.Recall(ConceptQuery{GuildID: "g1"})
	if len(got) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(got))
	}
	if got[0].Content != reinforced {
		t.Fatalf("expected frequently reinforced concept first, got %q", got[0].Content)
	}
}

func TestSemanticStore_RecallFiltersTypeAndConfidence(t *testing.T) {
	store := NewSemanticStore(Policy{}, nil)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptRule, Content: "be nice to newcomers", Confidence: 0.9})
	store.Learn("g1", Pattern{Type: ConceptKnowledge, Content: "carol runs the book club", Confidence: 0.3})

	byType := store.Recall(ConceptQuery{GuildID: "g1", Type: ConceptRule})
	if len(byType) != 1 || byType[0].Type != ConceptRule {
		t.Fatalf("unexpected type filter result: %+v", byType)
	}

	confident := store.Recall(ConceptQuery{GuildID: "g1", MinConfidence: 0.5})
	if len(confident) != 1 || confident[0].Confidence < 0.5 {
		t.Fatalf("unexpected confidence filter result: %+v", confident)
	}
}

func TestSemanticStore_PersistsAfterEveryLearn(t *testing.T) {
	docs := newFakeDocStore()
	store := NewSemanticStore(Policy{}, docs)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptPattern, Content: "dave argues about tabs versus spaces", Confidence: 0.7})
	store.Flush()

	docs.mu.Lock()
	defer docs.mu.Unlock()
	if docs.writes != 1 {
		t.Fatalf("expected 1 persistence write, got %d", docs.writes)
	}

	var snapshot map[string][]Concept
	if err := json.Unmarshal(docs.data["memories/semantic_memory.json"], &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot["g1"]) != 1 {
		t.Fatalf("unexpected snapshot contents: %+v", snapshot)
	}
}

func TestSemanticStore_LoadsSnapshotAtStartup(t *testing.T) {
	docs := newFakeDocStore()
	seed, _ := json.Marshal(map[string][]Concept{
		"g1": {{
			ID:             "c1",
			Type:           ConceptRule,
			GuildID:        "g1",
			Content:        "english only in announcements",
			Confidence:     0.8,
			Reinforcements: 3,
			LearnedAt:      time.Now(),
		}},
	})
	docs.data["memories/semantic_memory.json"] = seed

	store := NewSemanticStore(Policy{}, docs)
	waitReady(t, store)

	got := store.Recall(ConceptQuery{GuildID: "g1"})
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected snapshot concept recalled, got %+v", got)
	}
}

func TestSemanticStore_LoadFailureStartsEmpty(t *testing.T) {
	docs := newFakeDocStore()
	docs.readErr = errors.New("backend down")

	store := NewSemanticStore(Policy{}, docs)
	waitReady(t, store)

	if stats := store.Stats(); stats.TotalConcepts != 0 {
		t.Fatalf("expected empty store after load failure, got %+v", stats)
	}

	// The store still accepts writes afterwards.
	docs.readErr = nil
	store.Learn("g1", Pattern{Type: ConceptPattern, Content: "eve lurks but never posts", Confidence: 0.5})
	if stats := store.Stats(); stats.TotalConcepts != 1 {
		t.Fatalf("expected learn to work after failed load, got %+v", stats)
	}
}

func TestSemanticStore_WriteFailureDoesNotLoseMemory(t *testing.T) {
	docs := newFakeDocStore()
	docs.failWrites = true

	store := NewSemanticStore(Policy{}, docs)
	waitReady(t, store)

	store.Learn("g1", Pattern{Type: ConceptPattern, Content: "frank greets everyone at dawn", Confidence: 0.5})
	store.Flush()

	if got := store.Recall(ConceptQuery{GuildID: "g1"}); len(got) != 1 {
		t.Fatalf("expected in-memory concept despite write failure, got %d", len(got))
	}
}
