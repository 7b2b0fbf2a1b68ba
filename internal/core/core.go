package core

import "time"

// SourceType identifies where a piece of raw content came from.
type SourceType string

const (
	SourcePost    SourceType = "post"
	SourceComment SourceType = "comment"
)

// LifecycleStage tracks where a pain event sits in the clustering lifecycle.
type LifecycleStage string

const (
	StageActive   LifecycleStage = "active"
	StageOrphan   LifecycleStage = "orphan"
	StageArchived LifecycleStage = "archived"
)

// AlignmentStatus tracks whether a cluster has been merged across sources.
type AlignmentStatus string

const (
	AlignmentNone    AlignmentStatus = "none"
	AlignmentPending AlignmentStatus = "pending"
	AlignmentAligned AlignmentStatus = "aligned"
)

// RawPost represents one collected post or comment before filtering.
type RawPost struct {
	ID            string     `json:"id"`             // Unique identifier for the raw item
	SourceType    SourceType `json:"source_type"`    // post or comment
	Platform      string     `json:"platform"`       // Origin platform (e.g., "reddit", "hackernews")
	Community     string     `json:"community"`      // Subreddit or equivalent community name
	Author        string     `json:"author"`         // Author handle
	Title         string     `json:"title"`          // Post title (empty for comments)
	Body          string     `json:"body"`           // Raw text body
	ParentPostID  string     `json:"parent_post_id"` // Parent post for comments (empty for posts)
	Score         int        `json:"score"`          // Platform score/upvotes
	CollectedAt   time.Time  `json:"collected_at"`   // When the item was collected
	PainScore     float64    `json:"pain_score"`     // Heuristic pain score assigned by the signal filter
	PainFiltered  bool       `json:"pain_filtered"`  // Whether the item passed the signal filter
	Extracted     bool       `json:"extracted"`      // Whether pain extraction has run on this item
	FilterReasons []string   `json:"filter_reasons"` // Signal factors that contributed to the verdict
}

// PainEvent is a structured record of one user-described problem,
// extracted from a filtered post or comment.
type PainEvent struct {
	ID                string         `json:"id"`
	Problem           string         `json:"problem"`            // What the user struggles with
	Context           string         `json:"context"`            // Situation in which the problem occurs
	CurrentWorkaround string         `json:"current_workaround"` // How the user copes today
	EmotionalSignal   string         `json:"emotional_signal"`   // Expressed frustration level/phrase
	FrequencyPhrase   string         `json:"frequency_phrase"`   // Free-text frequency ("daily", "every sprint", ...)
	FrequencyScore    float64        `json:"frequency_score"`    // Numeric frequency derived from the phrase
	PostPainScore     float64        `json:"post_pain_score"`    // Pain score inherited from the source item
	SourceType        SourceType     `json:"source_type"`
	SourceID          string         `json:"source_id"`       // Raw post/comment this event came from
	ParentPostID      string         `json:"parent_post_id"`  // Parent post for comment-derived events
	Platform          string         `json:"platform"`        // Copied from the source item
	Community         string         `json:"community"`       // Copied from the source item
	Author            string         `json:"author"`          // Copied from the source item
	MentionedTools    []string       `json:"mentioned_tools"` // Tools named in the workaround/problem
	ClusterID         *string        `json:"cluster_id"`      // Owning cluster, nil while unclustered
	LifecycleStage    LifecycleStage `json:"lifecycle_stage"` // active ⇔ ClusterID != nil
	LastClusteredAt   *time.Time     `json:"last_clustered_at"`
	OrphanSince       *time.Time     `json:"orphan_since"`
	Embedding         []float64      `json:"embedding"` // 768-dim vector, empty until embedded
	CreatedAt         time.Time      `json:"created_at"`
}

// Active reports whether the event currently belongs to a cluster.
func (e *PainEvent) Active() bool {
	return e.LifecycleStage == StageActive && e.ClusterID != nil
}

// Cluster is a group of pain events judged similar enough to represent
// one recurring problem.
type Cluster struct {
	ID                 string          `json:"id"`
	Name               string          `json:"cluster_name"`
	Description        string          `json:"cluster_description"`
	SourceType         string          `json:"source_type"` // Dominant platform of the member events
	CentroidSummary    string          `json:"centroid_summary"`
	CommonPain         string          `json:"common_pain"`
	CommonContext      string          `json:"common_context"`
	PainEventIDs       []string        `json:"pain_event_ids"`
	ClusterSize        int             `json:"cluster_size"` // Always equals len(PainEventIDs)
	WorkflowSimilarity float64         `json:"workflow_similarity"`
	Centroid           []float64       `json:"centroid"` // Mean embedding of member events
	JTBD               *JTBD           `json:"jtbd"`     // Populated lazily by enrichment, nil until then
	SemanticCategory   string          `json:"semantic_category"`
	ProductImpact      string          `json:"product_impact"`
	AlignmentStatus    AlignmentStatus `json:"alignment_status"`
	AlignedProblemID   *string         `json:"aligned_problem_id"`
	CreatedAt          time.Time       `json:"created_at"`
}

// JTBD is a jobs-to-be-done block describing what a cluster's users are
// ultimately trying to accomplish.
type JTBD struct {
	JobStatement    string   `json:"job_statement"`
	JobSteps        []string `json:"job_steps"`
	DesiredOutcomes []string `json:"desired_outcomes"`
	JobContext      string   `json:"job_context"`
	CustomerProfile string   `json:"customer_profile"`
}

// AlignedProblem merges two or more clusters from different sources that
// describe the same underlying problem.
type AlignedProblem struct {
	ID                   string    `json:"id"`
	Sources              []string  `json:"sources"` // Platforms/communities contributing evidence
	CoreProblem          string    `json:"core_problem"`
	WhyTheyLookDifferent string    `json:"why_they_look_different"`
	Evidence             []string  `json:"evidence"`
	ClusterIDs           []string  `json:"cluster_ids"`
	CreatedAt            time.Time `json:"created_at"`
}

// Opportunity is a candidate product idea derived from a cluster or an
// aligned problem. At most one opportunity row exists per cluster.
type Opportunity struct {
	ID                string     `json:"id"`
	ClusterID         string     `json:"cluster_id"` // Cluster or aligned-problem id this was mapped from
	Name              string     `json:"opportunity_name"`
	Description       string     `json:"description"`
	TargetUsers       string     `json:"target_users"`
	MissingCapability string     `json:"missing_capability"`
	WhyExistingFail   string     `json:"why_existing_fail"`
	TotalScore        float64    `json:"total_score"` // 0-10 viability, 0 until scored
	Scored            bool       `json:"scored"`      // Whether a scoring pass has run
	Recommendation    string     `json:"recommendation"`
	TrustLevel        float64    `json:"trust_level"` // Per-community confidence weight
	CurrentVersion    int        `json:"current_version"`
	ScoredAt          *time.Time `json:"scored_at"`
	LastRescoredAt    *time.Time `json:"last_rescored_at"`
	RescoreCount      int        `json:"rescore_count"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ValidationLevel grades how independently a problem was observed.
// Lower is stronger: 1 = multiple platforms, 2 = multiple communities on
// one platform, 3 = weak single signal. 0 means no validation.
type ValidationLevel int

const (
	ValidationNone           ValidationLevel = 0
	ValidationMultiPlatform  ValidationLevel = 1
	ValidationMultiCommunity ValidationLevel = 2
	ValidationWeak           ValidationLevel = 3
)

// CrossSourceValidation is computed at query time from an opportunity's
// cluster or aligned-problem lineage; it is never persisted on its own.
type CrossSourceValidation struct {
	HasCrossSource   bool            `json:"has_cross_source"`
	Level            ValidationLevel `json:"validation_level"`
	BoostScore       float64         `json:"boost_score"`
	Evidence         string          `json:"evidence"`
	ValidatedProblem bool            `json:"validated_problem"`
	Badge            string          `json:"badge"`
}

// StageSummary is the result shape every pipeline stage returns: counts
// instead of thrown errors, so a batch survives individual failures.
type StageSummary struct {
	Stage     string    `json:"stage"`
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Errors    []string  `json:"errors,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// RecordError appends a per-item error and bumps the failure count.
func (s *StageSummary) RecordError(err error) {
	s.Failed++
	if err != nil {
		s.Errors = append(s.Errors, err.Error())
	}
}
