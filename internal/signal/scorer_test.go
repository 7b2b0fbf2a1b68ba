package signal

import (
	"testing"

	"painfinder/internal/core"
)

func TestScoreOrdersPainAboveNeutral(t *testing.T) {
	scorer := NewScorer(0.35)

	painful := &core.RawPost{
		Title: "So frustrated with manual invoice tracking",
		Body: "Every single time I close the books I waste hours copying numbers " +
			"between spreadsheets. It's so tedious and the export keeps breaking. " +
			"Is there a tool that handles this? My current workaround is a pile of " +
			"hacky scripts and I'm sick of maintaining them. There has to be a " +
			"better way to do this because the manual process eats a full day.",
	}
	neutral := &core.RawPost{
		Title: "Weekly community thread",
		Body:  "Share what you are working on this week. All projects welcome.",
	}

	painVerdict := scorer.Score(painful)
	neutralVerdict := scorer.Score(neutral)

	if painVerdict.Score <= neutralVerdict.Score {
		t.Errorf("pain post scored %.3f, neutral post %.3f; expected pain higher",
			painVerdict.Score, neutralVerdict.Score)
	}
	if !painVerdict.Passed {
		t.Errorf("pain post should pass the filter, score %.3f", painVerdict.Score)
	}
	if neutralVerdict.Passed {
		t.Errorf("neutral post should not pass the filter, score %.3f", neutralVerdict.Score)
	}
}

func TestScorePenalizesPromotion(t *testing.T) {
	scorer := NewScorer(0.35)

	promo := &core.RawPost{
		Title: "I built a tool so you never get frustrated with invoices again",
		Body: "Check out my new app! I launched it last week. Sign up now and " +
			"use code LAUNCH for a discount. It fixes the tedious manual process " +
			"everyone complains about.",
	}
	organic := &core.RawPost{
		Title: "Frustrated with invoices",
		Body: "The tedious manual process is a waste of time and I am struggling " +
			"to keep up with it. How do I automate any of this?",
	}

	if p, o := scorer.Score(promo), scorer.Score(organic); p.Score >= o.Score {
		t.Errorf("promo scored %.3f, organic %.3f; expected promo lower", p.Score, o.Score)
	}
}

func TestScoreEmptyBody(t *testing.T) {
	scorer := NewScorer(0.35)
	verdict := scorer.Score(&core.RawPost{Title: "hello", Body: ""})

	if verdict.Passed {
		t.Errorf("empty body should not pass, score %.3f", verdict.Score)
	}
	if len(verdict.Reasons) == 0 {
		t.Error("verdict should always carry at least one reason")
	}
}
