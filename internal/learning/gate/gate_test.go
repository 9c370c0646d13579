package gate

import (
	"testing"
	"time"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func pass(id string, hoursAgo float64, tags ...string) Attempt {
	return Attempt{ID: id, Score: 0.8, HighStakes: true, ErrorTags: tags, At: now.Add(-time.Duration(hoursAgo * float64(time.Hour)))}
}

func TestEvaluateCooldown(t *testing.T) {
	verified := Evaluate(Snapshot{PMastery: 0.90, History: []Attempt{pass("a", 40), pass("b", 10)}, Now: now})
	if !verified.Verified || len(verified.Reasons) != 0 {
		t.Fatalf("30h apart should verify, got %+v", verified)
	}
	if verified.PassCount != 2 || verified.HoursBetweenPasses != 30 {
		t.Fatalf("unexpected snapshot stats %+v", verified)
	}

	tooClose := Evaluate(Snapshot{PMastery: 0.90, History: []Attempt{pass("a", 20), pass("b", 8)}, Now: now})
	if tooClose.Verified {
		t.Fatalf("12h apart must not verify")
	}
	if len(tooClose.Reasons) != 1 || tooClose.Reasons[0].Code != ReasonInsufficientCooldown {
		t.Fatalf("want only insufficient_cooldown, got %+v", tooClose.Reasons)
	}
}

func TestEvaluateCollectsAllReasons(t *testing.T) {
	history := []Attempt{
		{ID: "p1", Score: 0.3, ErrorTags: []string{"missed_issue"}, At: now.Add(-72 * time.Hour)},
		{ID: "p2", Score: 0.4, ErrorTags: []string{"missed_issue"}, At: now.Add(-60 * time.Hour)},
		pass("x", 5, "missed_issue"),
	}
	d := Evaluate(Snapshot{PMastery: 0.5, History: history, Now: now})
	if d.Verified {
		t.Fatalf("should not verify")
	}
	for _, code := range []string{ReasonMasteryBelowThreshold, ReasonInsufficientHighStakesPasses, ReasonInsufficientCooldown, ReasonRecurringErrorTags} {
		if !d.Has(code) {
			t.Fatalf("missing reason %s in %+v", code, d.Reasons)
		}
	}
}

func TestEvaluateIgnoresPracticeAndOldPasses(t *testing.T) {
	history := []Attempt{
		{ID: "practice", Score: 1, HighStakes: false, At: now.Add(-50 * time.Hour)},
		pass("old", 24*91),
		pass("recent", 2),
		{ID: "timed-fail", Score: 0.59, HighStakes: true, At: now.Add(-30 * time.Hour)},
	}
	d := Evaluate(Snapshot{PMastery: 0.95, History: history, Now: now})
	if d.PassCount != 1 {
		t.Fatalf("only one pass counts, got %d", d.PassCount)
	}
	if !d.Has(ReasonInsufficientHighStakesPasses) {
		t.Fatalf("want insufficient passes, got %+v", d.Reasons)
	}
	if d.Has(ReasonMasteryBelowThreshold) {
		t.Fatalf("mastery is above threshold")
	}
}

func TestEvaluateRecurringTags(t *testing.T) {
	history := []Attempt{
		{ID: "h1", Score: 0.2, ErrorTags: []string{"remedies", "standing"}, At: now.Add(-200 * time.Hour)},
		{ID: "h2", Score: 0.3, ErrorTags: []string{"remedies", "issue_spotting"}, At: now.Add(-150 * time.Hour)},
		{ID: "h3", Score: 0.4, ErrorTags: []string{"standing", "issue_spotting"}, At: now.Add(-120 * time.Hour)},
		pass("a", 50),
		pass("b", 3, "formatting"),
	}
	d := Evaluate(Snapshot{PMastery: 0.9, History: history, Now: now})
	if !d.Verified {
		t.Fatalf("a clean pass set should verify, got %+v", d.Reasons)
	}

	history[4] = pass("b", 3, "remedies")
	d = Evaluate(Snapshot{PMastery: 0.9, History: history, Now: now})
	if d.Verified || !d.Has(ReasonRecurringErrorTags) {
		t.Fatalf("recurring top tag should block, got %+v", d)
	}
}

func TestEvaluateAlreadyVerified(t *testing.T) {
	d := Evaluate(Snapshot{PMastery: 0.1, AlreadyVerified: true, Now: now})
	if !d.Verified || !d.AlreadyVerified || len(d.Reasons) != 0 {
		t.Fatalf("already verified should stay verified, got %+v", d)
	}
}

func TestEvaluateNoData(t *testing.T) {
	d := Evaluate(Snapshot{Now: now})
	if d.Verified {
		t.Fatalf("empty snapshot must not verify")
	}
	if !d.Has(ReasonMasteryBelowThreshold) || !d.Has(ReasonInsufficientHighStakesPasses) {
		t.Fatalf("unexpected reasons %+v", d.Reasons)
	}
}

func TestTopTags(t *testing.T) {
	history := []Attempt{
		{ErrorTags: []string{"b", "a"}},
		{ErrorTags: []string{"b", "c"}},
		{ErrorTags: []string{"d", "b", "c"}},
	}
	got := TopTags(history, 3)
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("TopTags=%v want %v", got, want)
		}
	}
}

func TestEvaluateOneOffTagOnOlderPassDoesNotBlock(t *testing.T) {
	history := []Attempt{
		pass("p0", 80, "citation_format"),
		pass("p1", 30),
		pass("p2", 0),
	}
	d := Evaluate(Snapshot{PMastery: 0.9, History: history, Now: now})
	if !d.Verified {
		t.Fatalf("two clean passes 30h apart should verify, got %+v", d.Reasons)
	}
	if d.PassCount != 2 || d.HoursBetweenPasses != 30 {
		t.Fatalf("counted=%v hours=%v", d.CountedAttemptIDs, d.HoursBetweenPasses)
	}
	if len(d.CountedAttemptIDs) != 2 || d.CountedAttemptIDs[0] != "p1" || d.CountedAttemptIDs[1] != "p2" {
		t.Fatalf("tagged pass must not be counted: %v", d.CountedAttemptIDs)
	}
}

func TestEvaluateTagOnEveryRecentPassBlocks(t *testing.T) {
	history := []Attempt{
		pass("p0", 80, "citation_format"),
		pass("p1", 30, "citation_format"),
		pass("p2", 0),
	}
	d := Evaluate(Snapshot{PMastery: 0.9, History: history, Now: now})
	if d.Verified || !d.Has(ReasonRecurringErrorTags) {
		t.Fatalf("one clean pass is not enough, got %+v", d)
	}
	if !d.Has(ReasonInsufficientHighStakesPasses) || d.PassCount != 1 {
		t.Fatalf("only the clean pass counts, got %+v", d)
	}
}
