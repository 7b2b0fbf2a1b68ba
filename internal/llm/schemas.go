package llm

import "google.golang.org/genai"

// Response schemas force structured JSON output from Gemini so the
// pipeline never parses free-form prose.

func painEventListSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"events": {
				Type:        genai.TypeArray,
				Description: "Distinct user-described problems found in the post; empty if none",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"problem": {
							Type:        genai.TypeString,
							Description: "The concrete problem in the author's terms (1-2 sentences)",
						},
						"context": {
							Type:        genai.TypeString,
							Description: "Situation in which the problem occurs",
						},
						"current_workaround": {
							Type:        genai.TypeString,
							Description: "How the author copes today (empty if not mentioned)",
						},
						"emotional_signal": {
							Type:        genai.TypeString,
							Description: "Expressed frustration phrase or level",
						},
						"frequency_phrase": {
							Type:        genai.TypeString,
							Description: "How often the problem occurs, in the author's own words",
						},
						"mentioned_tools": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{"problem", "context"},
				},
			},
		},
		Required: []string{"events"},
	}
}

func clusterSummarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"cluster_name":        {Type: genai.TypeString, Description: "Short name, 3-6 words"},
			"cluster_description": {Type: genai.TypeString, Description: "One-paragraph description"},
			"centroid_summary":    {Type: genai.TypeString, Description: "Single problem statement closest to all members"},
			"common_pain":         {Type: genai.TypeString},
			"common_context":      {Type: genai.TypeString},
		},
		Required: []string{"cluster_name", "cluster_description", "centroid_summary"},
	}
}

func jtbdSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"job_statement": {
				Type:        genai.TypeString,
				Description: "When I..., I want to..., so I can...",
			},
			"job_steps": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"desired_outcomes": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"job_context":      {Type: genai.TypeString},
			"customer_profile": {Type: genai.TypeString},
		},
		Required: []string{"job_statement"},
	}
}

func alignmentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"same_problem": {
				Type:        genai.TypeBoolean,
				Description: "Whether the clusters describe the same underlying problem",
			},
			"core_problem":            {Type: genai.TypeString},
			"why_they_look_different": {Type: genai.TypeString},
			"evidence": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"same_problem"},
	}
}

func opportunityListSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"opportunities": {
				Type:        genai.TypeArray,
				Description: "Candidate product opportunities; empty if the cluster supports none",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"opportunity_name":   {Type: genai.TypeString},
						"description":        {Type: genai.TypeString},
						"target_users":       {Type: genai.TypeString},
						"missing_capability": {Type: genai.TypeString},
						"why_existing_fail":  {Type: genai.TypeString},
					},
					Required: []string{"opportunity_name", "description"},
				},
			},
		},
		Required: []string{"opportunities"},
	}
}

func viabilitySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score": {
				Type:        genai.TypeNumber,
				Description: "Viability from 0 (not viable) to 10 (exceptional)",
			},
			"recommendation": {Type: genai.TypeString},
		},
		Required: []string{"score", "recommendation"},
	}
}

func narrativeSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"problem": {Type: genai.TypeString, Description: "The user problem in two sentences"},
			"mvp":     {Type: genai.TypeString, Description: "Smallest product that addresses it"},
			"why_now": {Type: genai.TypeString},
		},
		Required: []string{"problem", "mvp", "why_now"},
	}
}
