// Package llm wraps the Gemini API behind a domain-level service: every
// pipeline stage that needs a judgment call goes through this interface,
// so tests can substitute a fake.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"

	"painfinder/internal/core"
)

const (
	// DefaultModel is the default Gemini model for structured calls.
	DefaultModel = "gemini-2.5-flash-preview-05-20"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "text-embedding-004"
	// DefaultEmbeddingDimensions is the output dimension for embeddings (Matryoshka).
	DefaultEmbeddingDimensions = int32(768)
)

// MalformedLLMResponse reports that the model returned JSON that does not
// satisfy the expected schema. It is a data-integrity error: callers skip
// the item with a warning instead of aborting the batch.
type MalformedLLMResponse struct {
	Operation string
	Detail    string
	Raw       string
}

func (e *MalformedLLMResponse) Error() string {
	return fmt.Sprintf("malformed LLM response in %s: %s", e.Operation, e.Detail)
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int32 `json:"prompt_tokens"`
	CompletionTokens int32 `json:"completion_tokens"`
	TotalTokens      int32 `json:"total_tokens"`
}

// PainEventDraft is the validated shape of one extracted pain event
// before it is persisted.
type PainEventDraft struct {
	Problem           string   `json:"problem"`
	Context           string   `json:"context"`
	CurrentWorkaround string   `json:"current_workaround"`
	EmotionalSignal   string   `json:"emotional_signal"`
	FrequencyPhrase   string   `json:"frequency_phrase"`
	MentionedTools    []string `json:"mentioned_tools"`
}

// ClusterSummary is the LLM-derived description of a new cluster.
type ClusterSummary struct {
	Name            string `json:"cluster_name"`
	Description     string `json:"cluster_description"`
	CentroidSummary string `json:"centroid_summary"`
	CommonPain      string `json:"common_pain"`
	CommonContext   string `json:"common_context"`
}

// AlignmentJudgment is the verdict on whether a group of clusters from
// different sources describe the same underlying problem.
type AlignmentJudgment struct {
	SameProblem          bool     `json:"same_problem"`
	CoreProblem          string   `json:"core_problem"`
	WhyTheyLookDifferent string   `json:"why_they_look_different"`
	Evidence             []string `json:"evidence"`
}

// OpportunityDraft is one candidate product idea returned by the mapper call.
type OpportunityDraft struct {
	Name              string `json:"opportunity_name"`
	Description       string `json:"description"`
	TargetUsers       string `json:"target_users"`
	MissingCapability string `json:"missing_capability"`
	WhyExistingFail   string `json:"why_existing_fail"`
}

// ViabilityResult is the 0-10 score plus narrative recommendation.
type ViabilityResult struct {
	Score          float64 `json:"score"`
	Recommendation string  `json:"recommendation"`
}

// CandidateNarrative holds the human-readable fields generated for one
// shortlisted candidate.
type CandidateNarrative struct {
	Problem string `json:"problem"`
	MVP     string `json:"mvp"`
	WhyNow  string `json:"why_now"`
}

// Service is the LLM capability the pipeline stages depend on.
type Service interface {
	ExtractPainEvents(ctx context.Context, body string, topComments []string) ([]PainEventDraft, error)
	SummarizeCluster(ctx context.Context, events []core.PainEvent) (*ClusterSummary, error)
	EnrichJTBD(ctx context.Context, cluster *core.Cluster, sample []core.PainEvent) (*core.JTBD, error)
	JudgeAlignment(ctx context.Context, clusters []core.Cluster) (*AlignmentJudgment, error)
	MapOpportunities(ctx context.Context, compactSummaryJSON string) ([]OpportunityDraft, error)
	ScoreViability(ctx context.Context, opp *core.Opportunity, clusterContext string) (*ViabilityResult, error)
	NarrateCandidate(ctx context.Context, opp *core.Opportunity) (*CandidateNarrative, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Client implements Service against the Gemini API.
type Client struct {
	modelName      string
	embeddingModel string
	gClient        *genai.Client
}

var _ Service = (*Client)(nil)

// NewClient creates a new LLM client. The API key is resolved from the
// GEMINI_API_KEY family of environment variables or ai.gemini.api_key in
// the config file.
func NewClient(modelName string) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GOOGLE_GEMINI_API_KEY"); apiKey == "" {
			if apiKey = os.Getenv("GOOGLE_AI_API_KEY"); apiKey == "" {
				apiKey = viper.GetString("ai.gemini.api_key")
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set GEMINI_API_KEY or ai.gemini.api_key in config")
	}

	if modelName == "" {
		modelName = viper.GetString("ai.gemini.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}
	embeddingModel := viper.GetString("ai.gemini.embedding_model")
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		embeddingModel: embeddingModel,
		gClient:        gClient,
	}, nil
}

// generateJSON runs one structured call and unmarshals the response into out.
func (c *Client) generateJSON(ctx context.Context, operation, prompt string, schema *genai.Schema, out any) error {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temp := viper.GetViper().GetFloat64("ai.gemini.temperature")
	t := float32(temp)
	config := &genai.GenerateContentConfig{
		Temperature:      &t,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	if maxTokens := viper.GetInt32("ai.gemini.max_tokens"); maxTokens > 0 {
		config.MaxOutputTokens = maxTokens
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return fmt.Errorf("%s: failed to generate content: %w", operation, err)
	}

	text := resp.Text()
	if text == "" {
		return &MalformedLLMResponse{Operation: operation, Detail: "empty response"}
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &MalformedLLMResponse{Operation: operation, Detail: err.Error(), Raw: text}
	}
	return nil
}

// ExtractPainEvents turns one filtered post/comment plus its top comments
// into zero or more validated pain event drafts.
func (c *Client) ExtractPainEvents(ctx context.Context, body string, topComments []string) ([]PainEventDraft, error) {
	prompt := buildExtractionPrompt(body, topComments)

	var wrapper struct {
		Events []PainEventDraft `json:"events"`
	}
	if err := c.generateJSON(ctx, "extract_pain_events", prompt, painEventListSchema(), &wrapper); err != nil {
		return nil, err
	}

	valid := wrapper.Events[:0]
	for _, ev := range wrapper.Events {
		if ev.Problem == "" {
			return nil, &MalformedLLMResponse{Operation: "extract_pain_events", Detail: "event missing problem field"}
		}
		valid = append(valid, ev)
	}
	return valid, nil
}

// SummarizeCluster derives a name, description, and centroid summary for
// a freshly created cluster from its member events.
func (c *Client) SummarizeCluster(ctx context.Context, events []core.PainEvent) (*ClusterSummary, error) {
	prompt := buildClusterSummaryPrompt(events)

	var summary ClusterSummary
	if err := c.generateJSON(ctx, "summarize_cluster", prompt, clusterSummarySchema(), &summary); err != nil {
		return nil, err
	}
	if summary.Name == "" || summary.CentroidSummary == "" {
		return nil, &MalformedLLMResponse{Operation: "summarize_cluster", Detail: "missing cluster_name or centroid_summary"}
	}
	return &summary, nil
}

// EnrichJTBD produces the jobs-to-be-done block for a cluster. It runs as
// a separate lazy call keyed by cluster id and never blocks cluster creation.
func (c *Client) EnrichJTBD(ctx context.Context, cluster *core.Cluster, sample []core.PainEvent) (*core.JTBD, error) {
	prompt := buildJTBDPrompt(cluster, sample)

	var jtbd core.JTBD
	if err := c.generateJSON(ctx, "enrich_jtbd", prompt, jtbdSchema(), &jtbd); err != nil {
		return nil, err
	}
	if jtbd.JobStatement == "" {
		return nil, &MalformedLLMResponse{Operation: "enrich_jtbd", Detail: "missing job_statement"}
	}
	return &jtbd, nil
}

// JudgeAlignment decides whether a group of clusters from different
// sources describe the same underlying problem.
func (c *Client) JudgeAlignment(ctx context.Context, clusters []core.Cluster) (*AlignmentJudgment, error) {
	prompt := buildAlignmentPrompt(clusters)

	var judgment AlignmentJudgment
	if err := c.generateJSON(ctx, "judge_alignment", prompt, alignmentSchema(), &judgment); err != nil {
		return nil, err
	}
	if judgment.SameProblem && judgment.CoreProblem == "" {
		return nil, &MalformedLLMResponse{Operation: "judge_alignment", Detail: "positive judgment missing core_problem"}
	}
	return &judgment, nil
}

// MapOpportunities turns a compact cluster summary into candidate product
// opportunities. The summary must already be token-budgeted by the caller.
func (c *Client) MapOpportunities(ctx context.Context, compactSummaryJSON string) ([]OpportunityDraft, error) {
	prompt := buildMappingPrompt(compactSummaryJSON)

	var wrapper struct {
		Opportunities []OpportunityDraft `json:"opportunities"`
	}
	if err := c.generateJSON(ctx, "map_opportunities", prompt, opportunityListSchema(), &wrapper); err != nil {
		return nil, err
	}
	for _, draft := range wrapper.Opportunities {
		if draft.Name == "" || draft.Description == "" {
			return nil, &MalformedLLMResponse{Operation: "map_opportunities", Detail: "opportunity missing name or description"}
		}
	}
	return wrapper.Opportunities, nil
}

// ScoreViability assigns a 0-10 viability score and a recommendation.
func (c *Client) ScoreViability(ctx context.Context, opp *core.Opportunity, clusterContext string) (*ViabilityResult, error) {
	prompt := buildViabilityPrompt(opp, clusterContext)

	var result ViabilityResult
	if err := c.generateJSON(ctx, "score_viability", prompt, viabilitySchema(), &result); err != nil {
		return nil, err
	}
	if result.Score < 0 || result.Score > 10 {
		return nil, &MalformedLLMResponse{
			Operation: "score_viability",
			Detail:    fmt.Sprintf("score %v outside 0-10", result.Score),
		}
	}
	return &result, nil
}

// NarrateCandidate generates the human-readable report fields for one
// shortlisted candidate.
func (c *Client) NarrateCandidate(ctx context.Context, opp *core.Opportunity) (*CandidateNarrative, error) {
	prompt := buildNarrativePrompt(opp)

	var narrative CandidateNarrative
	if err := c.generateJSON(ctx, "narrate_candidate", prompt, narrativeSchema(), &narrative); err != nil {
		return nil, err
	}
	if narrative.Problem == "" {
		return nil, &MalformedLLMResponse{Operation: "narrate_candidate", Detail: "missing problem field"}
	}
	return &narrative, nil
}

// GenerateEmbedding returns a 768-dim embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	if len(text) > 8000 {
		text = text[:8000]
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: text}},
		Role:  "user",
	}}

	dims := DefaultEmbeddingDimensions
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	}

	resp, err := c.gClient.Models.EmbedContent(ctx, c.embeddingModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned from API")
	}

	values := resp.Embeddings[0].Values
	embedding := make([]float64, len(values))
	for i, val := range values {
		embedding[i] = float64(val)
	}
	return embedding, nil
}

// CosineSimilarity calculates the cosine similarity between two embeddings.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
