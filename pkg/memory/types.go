package memory

import "time"

// WorkingEntry is one raw observation in a conversation's short-horizon
// buffer. Entries are immutable after creation and disappear by TTL expiry
// or capacity eviction.
type WorkingEntry struct {
	ID         string        `json:"id"`
	Content    string        `json:"content"`
	Timestamp  time.Time     `json:"timestamp"`
	AuthorID   string        `json:"author_id"`
	AuthorName string        `json:"author_name"`
	GuildID    string        `json:"guild_id"`
	ChannelID  string        `json:"channel_id"`
	Importance float64       `json:"importance"`
	TTL        time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e WorkingEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.Timestamp) > e.TTL
}

// EpisodeType classifies noteworthy guild happenings.
type EpisodeType string

const (
	EpisodeInteraction  EpisodeType = "interaction"
	EpisodeConflict     EpisodeType = "conflict"
	EpisodeModeration   EpisodeType = "moderation"
	EpisodeAchievement  EpisodeType = "achievement"
	EpisodeConversation EpisodeType = "conversation"
)

// Sentiment is the caller-supplied tone of an episode.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// EpisodeDetails holds free-form context for an episode.
type EpisodeDetails struct {
	Content string `json:"content,omitempty"`
	Action  string `json:"action,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Impact  string `json:"impact,omitempty"`
}

// Episode is one noteworthy happening in a guild. TTL scales with
// importance: low-importance episodes expire sooner.
type Episode struct {
	ID           string         `json:"id"`
	Type         EpisodeType    `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	GuildID      string         `json:"guild_id"`
	Participants []string       `json:"participants"`
	Summary      string         `json:"summary"`
	Sentiment    Sentiment      `json:"sentiment"`
	Importance   float64        `json:"importance"`
	Details      EpisodeDetails `json:"details"`
	TTL          time.Duration  `json:"ttl"`
}

// Expired reports whether the episode's TTL has elapsed at now.
func (e Episode) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.Timestamp) > e.TTL
}

// ConceptType classifies accumulated guild knowledge.
type ConceptType string

const (
	ConceptPattern      ConceptType = "pattern"
	ConceptConcept      ConceptType = "concept"
	ConceptRule         ConceptType = "rule"
	ConceptRelationship ConceptType = "relationship"
	ConceptKnowledge    ConceptType = "knowledge"
)

// Concept is one consolidated piece of guild knowledge. Unlike the other
// tiers it never auto-expires and is mutated in place on reinforcement.
type Concept struct {
	ID             string      `json:"id"`
	Type           ConceptType `json:"type"`
	GuildID        string      `json:"guild_id"`
	Content        string      `json:"content"`
	Confidence     float64     `json:"confidence"`
	Evidence       []string    `json:"evidence"`
	LearnedAt      time.Time   `json:"learned_at"`
	Reinforcements int         `json:"reinforcements"`
	Permanent      bool        `json:"permanent"`
}

// Pattern is the caller-facing input to LearnPattern.
type Pattern struct {
	Type       ConceptType
	Content    string
	Confidence float64
	Evidence   []string
}

// Observation is the orchestrator-facing write input.
type Observation struct {
	ConversationID string
	GuildID        string
	UserID         string
	UserName       string
	Content        string
	Importance     float64
	Type           string
	Sentiment      Sentiment
}

// Tier names accepted by RecallQuery. Anything else yields empty results
// for that tier rather than an error.
const (
	TierWorking  = "working"
	TierEpisodic = "episodic"
	TierSemantic = "semantic"
)

// RecallQuery selects tiers and scopes for a fan-out recall. An empty Tier
// means all tiers.
type RecallQuery struct {
	Tier           string
	GuildID        string
	ConversationID string
	UserID         string
	Limit          int
}

// EpisodeQuery scopes an episodic-tier recall.
type EpisodeQuery struct {
	GuildID      string
	Type         EpisodeType
	Participants []string
	Limit        int
}

// ConceptQuery scopes a semantic-tier recall.
type ConceptQuery struct {
	GuildID       string
	Type          ConceptType
	MinConfidence float64
	Limit         int
}

// RecallResult is the merged fan-out response.
type RecallResult struct {
	Working       []WorkingEntry
	Episodic      []Episode
	Semantic      []Concept
	TotalRecalled int
	RecallTimeMs  float64
}

// Stats is a point-in-time census of the three tiers.
type Stats struct {
	Working  WorkingStats
	Episodic EpisodicStats
	Semantic SemanticStats
}

type WorkingStats struct {
	Conversations int
	TotalEntries  int
}

type EpisodicStats struct {
	Guilds        int
	TotalEpisodes int
}

type SemanticStats struct {
	Guilds        int
	TotalConcepts int
}
