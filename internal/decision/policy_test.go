package decision

import (
	"testing"

	"github.com/vibetrade/papertrader/models"
)

func TestRecommendTiers(t *testing.T) {
	cases := []struct {
		score      int
		rec        string
		confidence int
	}{
		{45, "STRONG BUY", 95},
		{35, "STRONG BUY", 85},
		{30, "STRONG BUY", 80},
		{20, "BUY", 70},
		{15, "BUY", 65},
		{10, "HOLD", 60},
		{0, "HOLD", 50},
		{-10, "HOLD", 60},
		{-15, "SELL", 65},
		{-20, "SELL", 70},
		{-30, "STRONG SELL", 80},
		{-35, "STRONG SELL", 85},
		{-50, "STRONG SELL", 95},
	}
	for _, tc := range cases {
		rec, conf := Recommend(tc.score)
		if rec != tc.rec || conf != tc.confidence {
			t.Fatalf("Recommend(%d) = (%q, %d), want (%q, %d)", tc.score, rec, conf, tc.rec, tc.confidence)
		}
	}
}

func TestDecideRiskTiers(t *testing.T) {
	cases := []struct {
		score  int
		risk   models.RiskTolerance
		action models.Action
	}{
		{20, models.RiskLow, models.ActionHold},
		{35, models.RiskLow, models.ActionBuy},
		{-34, models.RiskLow, models.ActionHold},
		{-35, models.RiskLow, models.ActionSell},
		{17, models.RiskMedium, models.ActionHold},
		{18, models.RiskMedium, models.ActionBuy},
		{-18, models.RiskMedium, models.ActionSell},
		{14, models.RiskHigh, models.ActionHold},
		{15, models.RiskHigh, models.ActionBuy},
		{-15, models.RiskHigh, models.ActionSell},
		{0, models.RiskHigh, models.ActionHold},
	}
	for _, tc := range cases {
		action, _ := Decide(tc.score, tc.risk)
		if action != tc.action {
			t.Fatalf("Decide(%d, %s) = %s, want %s", tc.score, tc.risk, action, tc.action)
		}
	}
}

func TestDecideConfidence(t *testing.T) {
	action, conf := Decide(28, models.RiskMedium)
	if action != models.ActionBuy || conf != 80 {
		t.Fatalf("Decide(28, medium) = (%s, %d), want (buy, 80)", action, conf)
	}
	action, conf = Decide(60, models.RiskMedium)
	if action != models.ActionBuy || conf != 95 {
		t.Fatalf("confidence must cap at 95, got %d", conf)
	}
	action, conf = Decide(-25, models.RiskMedium)
	if action != models.ActionSell || conf != 77 {
		t.Fatalf("Decide(-25, medium) = (%s, %d), want (sell, 77)", action, conf)
	}
	action, conf = Decide(10, models.RiskMedium)
	if action != models.ActionHold || conf != 60 {
		t.Fatalf("Decide(10, medium) = (%s, %d), want (hold, 60)", action, conf)
	}
}

func TestUnknownRiskFallsBackToMedium(t *testing.T) {
	p := ProfileFor(models.RiskTolerance("reckless"))
	if p.BuyThreshold != 18 {
		t.Fatalf("fallback buy threshold = %d, want 18", p.BuyThreshold)
	}
}

func TestPositionSizes(t *testing.T) {
	for risk, want := range map[models.RiskTolerance]string{
		models.RiskLow:    "0.05",
		models.RiskMedium: "0.1",
		models.RiskHigh:   "0.15",
	} {
		got := ProfileFor(risk).PositionSize.String()
		if got != want {
			t.Fatalf("position size for %s = %s, want %s", risk, got, want)
		}
	}
}
