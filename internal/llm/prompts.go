package llm

import (
	"fmt"
	"strings"

	"painfinder/internal/core"
)

const extractionPromptTemplate = `You analyze social-media posts for product research.

Extract every distinct user-described problem ("pain event") from the post
below. A pain event needs a concrete problem; skip vague complaints. For
each event capture the surrounding context, any workaround the author
mentions, the emotional register, how often the problem occurs in the
author's own words, and any tools named.

Return an empty events list if the post contains no real problem.

POST:
%s
%s`

const mappingPromptTemplate = `You turn validated user problems into candidate product opportunities.

Below is a compact summary of one cluster of pain events: the highest-pain
examples plus aggregate statistics. Propose zero or more product
opportunities that would resolve the recurring problem. Each opportunity
must name the missing capability and explain why existing tools fail.
Propose nothing if the cluster does not support a real product.

CLUSTER SUMMARY (JSON):
%s`

const viabilityPromptTemplate = `You evaluate product opportunities for commercial viability.

Score the opportunity below from 0 (not viable) to 10 (exceptional) and
write a short recommendation. Consider market size, willingness to pay,
competition, and how acute the underlying pain is.

OPPORTUNITY:
Name: %s
Description: %s
Target users: %s
Missing capability: %s
Why existing solutions fail: %s

CLUSTER CONTEXT:
%s`

const narrativePromptTemplate = `Write the decision-report entry for the product opportunity below.
Produce three fields: "problem" (the user problem in two sentences),
"mvp" (the smallest product that addresses it), and "why_now" (why this
is worth building now).

OPPORTUNITY:
Name: %s
Description: %s
Target users: %s
Viability score: %.1f
Recommendation: %s`

func buildExtractionPrompt(body string, topComments []string) string {
	var comments string
	if len(topComments) > 0 {
		var b strings.Builder
		b.WriteString("\nTOP COMMENTS:\n")
		for i, c := range topComments {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, c))
		}
		comments = b.String()
	}
	return fmt.Sprintf(extractionPromptTemplate, body, comments)
}

func buildClusterSummaryPrompt(events []core.PainEvent) string {
	var b strings.Builder
	b.WriteString("You name and describe clusters of related user problems.\n\n")
	b.WriteString("The pain events below were grouped by semantic similarity. Derive a short\n")
	b.WriteString("cluster name, a one-paragraph description, a centroid summary (the single\n")
	b.WriteString("problem statement closest to all members), the common pain, and the common\n")
	b.WriteString("context.\n\nPAIN EVENTS:\n")
	for i, ev := range events {
		b.WriteString(fmt.Sprintf("%d. Problem: %s\n   Context: %s\n", i+1, ev.Problem, ev.Context))
		if ev.CurrentWorkaround != "" {
			b.WriteString(fmt.Sprintf("   Workaround: %s\n", ev.CurrentWorkaround))
		}
	}
	return b.String()
}

func buildJTBDPrompt(cluster *core.Cluster, sample []core.PainEvent) string {
	var b strings.Builder
	b.WriteString("You describe the job-to-be-done behind a cluster of user problems.\n\n")
	b.WriteString(fmt.Sprintf("CLUSTER: %s\n%s\n\nSAMPLE EVENTS:\n", cluster.Name, cluster.Description))
	for i, ev := range sample {
		b.WriteString(fmt.Sprintf("%d. %s (context: %s)\n", i+1, ev.Problem, ev.Context))
	}
	b.WriteString("\nProduce a job statement (\"When I..., I want to..., so I can...\"),\n")
	b.WriteString("the job steps, desired outcomes, job context, and the customer profile.")
	return b.String()
}

func buildAlignmentPrompt(clusters []core.Cluster) string {
	var b strings.Builder
	b.WriteString("You decide whether problem clusters observed in different communities\n")
	b.WriteString("describe the same underlying problem.\n\nCLUSTERS:\n")
	for i, c := range clusters {
		b.WriteString(fmt.Sprintf("%d. [%s] %s\n   Pain: %s\n   Context: %s\n",
			i+1, c.SourceType, c.CentroidSummary, c.CommonPain, c.CommonContext))
	}
	b.WriteString("\nJudge strictly: surface similarity is not enough; the same job must be\n")
	b.WriteString("blocked in the same way. If they match, state the core problem, why the\n")
	b.WriteString("descriptions look different, and cite evidence from each cluster.")
	return b.String()
}

func buildMappingPrompt(compactSummaryJSON string) string {
	return fmt.Sprintf(mappingPromptTemplate, compactSummaryJSON)
}

func buildViabilityPrompt(opp *core.Opportunity, clusterContext string) string {
	return fmt.Sprintf(viabilityPromptTemplate,
		opp.Name, opp.Description, opp.TargetUsers,
		opp.MissingCapability, opp.WhyExistingFail, clusterContext)
}

func buildNarrativePrompt(opp *core.Opportunity) string {
	return fmt.Sprintf(narrativePromptTemplate,
		opp.Name, opp.Description, opp.TargetUsers, opp.TotalScore, opp.Recommendation)
}
