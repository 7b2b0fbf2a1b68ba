// Package signal scores raw posts and comments for pain signal using
// keyword and pattern heuristics. No LLM calls happen here; the filter
// exists to keep cheap junk away from the expensive extraction stage.
package signal

import (
	"math"
	"regexp"
	"strings"

	"painfinder/internal/core"
)

// Scorer assigns a pain score in [0,1] to raw text.
type Scorer struct {
	minScore      float64
	painPhrases   []string
	reliefPhrases []string
	helpPatterns  []*regexp.Regexp
	whitespace    *regexp.Regexp
}

// Verdict is the outcome of filtering one raw item.
type Verdict struct {
	Score   float64
	Passed  bool
	Factors map[string]float64
	Reasons []string
}

func NewScorer(minScore float64) *Scorer {
	return &Scorer{
		minScore:      minScore,
		painPhrases:   painPhrases(),
		reliefPhrases: reliefPhrases(),
		helpPatterns:  helpPatterns(),
		whitespace:    regexp.MustCompile(`\s+`),
	}
}

// Score evaluates one raw post or comment. The verdict carries the
// per-factor breakdown so filter reasons can be persisted.
func (s *Scorer) Score(post *core.RawPost) Verdict {
	title := s.normalize(post.Title)
	body := s.normalize(post.Body)

	factors := map[string]float64{
		"pain_language":  s.phraseDensity(body, s.painPhrases),
		"title_pain":     s.phraseDensity(title, s.painPhrases),
		"help_seeking":   s.helpSeeking(title + " " + body),
		"substance":      s.substance(post),
		"promotion_risk": s.promotionRisk(title, body),
	}

	score := factors["pain_language"]*0.40 +
		factors["title_pain"]*0.20 +
		factors["help_seeking"]*0.20 +
		factors["substance"]*0.20 -
		factors["promotion_risk"]*0.30
	score = math.Max(0.0, math.Min(1.0, score))

	return Verdict{
		Score:   score,
		Passed:  score >= s.minScore,
		Factors: factors,
		Reasons: s.reasons(factors),
	}
}

// phraseDensity scores how strongly a text leans on pain vocabulary:
// coverage of distinct phrases plus a diminishing bonus for repeats.
func (s *Scorer) phraseDensity(text string, phrases []string) float64 {
	if len(text) == 0 {
		return 0.0
	}

	totalMatches := 0
	uniqueMatches := 0
	for _, phrase := range phrases {
		matches := strings.Count(text, phrase)
		if matches > 0 {
			uniqueMatches++
			totalMatches += matches
		}
	}
	if uniqueMatches == 0 {
		return 0.0
	}

	coverage := float64(uniqueMatches) / 6.0
	frequency := math.Log(float64(totalMatches)+1) / math.Log(10)
	return math.Min(1.0, coverage*0.7+frequency*0.3)
}

func (s *Scorer) helpSeeking(text string) float64 {
	for _, pattern := range s.helpPatterns {
		if pattern.MatchString(text) {
			return 1.0
		}
	}
	if strings.Contains(text, "?") {
		return 0.4
	}
	return 0.0
}

// substance rewards text long enough to describe an actual situation.
func (s *Scorer) substance(post *core.RawPost) float64 {
	length := len(post.Body)
	switch {
	case length > 1000:
		return 1.0
	case length > 300:
		return 0.8
	case length > 100:
		return 0.5
	default:
		return 0.2
	}
}

// promotionRisk detects launch/promo posts masquerading as problems.
func (s *Scorer) promotionRisk(title, body string) float64 {
	risk := 0.0
	for _, phrase := range s.reliefPhrases {
		if strings.Contains(title, phrase) || strings.Contains(body, phrase) {
			risk += 0.4
		}
	}
	return math.Min(1.0, risk)
}

func (s *Scorer) reasons(factors map[string]float64) []string {
	var reasons []string
	if factors["pain_language"] > 0.5 {
		reasons = append(reasons, "strong pain vocabulary in body")
	} else if factors["pain_language"] == 0 {
		reasons = append(reasons, "no pain vocabulary in body")
	}
	if factors["title_pain"] > 0.5 {
		reasons = append(reasons, "pain vocabulary in title")
	}
	if factors["help_seeking"] >= 1.0 {
		reasons = append(reasons, "explicit help-seeking phrasing")
	}
	if factors["promotion_risk"] > 0.3 {
		reasons = append(reasons, "promotional language")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "mixed signal")
	}
	return reasons
}

func (s *Scorer) normalize(text string) string {
	text = strings.ToLower(text)
	return strings.TrimSpace(s.whitespace.ReplaceAllString(text, " "))
}

func painPhrases() []string {
	return []string{
		"frustrated", "frustrating", "annoying", "drives me crazy",
		"waste of time", "wasting time", "so tedious", "tedious",
		"painful", "pain point", "struggling", "struggle with",
		"can't figure out", "cannot figure out", "doesn't work",
		"keeps breaking", "every single time", "fed up", "sick of",
		"workaround", "hacky", "manual process", "manually",
		"wish there was", "is there a tool", "there has to be a better way",
		"i hate", "nightmare", "impossible to",
	}
}

// reliefPhrases mark promotional or solved content.
func reliefPhrases() []string {
	return []string{
		"check out my", "i built", "i launched", "we launched",
		"use code", "discount", "sign up now", "my new app",
	}
}

func helpPatterns() []*regexp.Regexp {
	return []*regexp.Regexp{
		regexp.MustCompile(`how do (i|you|we)\b`),
		regexp.MustCompile(`is there (a|any) (tool|way|app|service)\b`),
		regexp.MustCompile(`what do you (use|do) (for|when)\b`),
		regexp.MustCompile(`any (recommendations|suggestions|advice)\b`),
		regexp.MustCompile(`looking for (a|an|some)\b`),
	}
}
