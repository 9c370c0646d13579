package content

import (
	"errors"
	"testing"

	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
)

func draftItems() []Item {
	return []Item{
		{ID: "1", SkillID: "s1", Title: "Offer", Body: "An offer is...", Citations: []string{"ot-s1"}},
		{ID: "2", SkillID: "s1", Title: "Invented", Body: "Smith v Jones holds...", Answer: "x", Citations: []string{"auth-made-up"}},
		{ID: "3", SkillID: "s2", Title: "Bare", Body: "Consideration must move..."},
		{ID: "4", SkillID: "s1", Title: "Mixed", Body: "Acceptance...", Citations: []string{"ot-s1", "auth-made-up", "ot-s1"}},
	}
}

var allowed = map[string]bool{"ot-s1": true, "auth-s1": true}

func TestValidateSoftReplacesUncitedItems(t *testing.T) {
	res, err := Validate(draftItems(), allowed, products.GroundingSoft, 1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(res.Items) != 4 {
		t.Fatalf("soft mode keeps every item, got %d", len(res.Items))
	}
	want := products.AssetStats{ItemsTotal: 4, ItemsCited: 2, ItemsFallback: 2}
	if res.Stats != want {
		t.Fatalf("stats=%+v want %+v", res.Stats, want)
	}
	inv := res.Items[1]
	if !inv.Fallback || inv.Title != FallbackTitle || inv.Body != FallbackText || inv.Answer != "" || len(inv.Citations) != 0 {
		t.Fatalf("invented citation not flagged: %+v", inv)
	}
	mixed := res.Items[3]
	if mixed.Fallback || len(mixed.Citations) != 1 || mixed.Citations[0] != "ot-s1" {
		t.Fatalf("mixed item should keep its one valid citation: %+v", mixed)
	}
	if len(res.Missing) != 2 {
		t.Fatalf("missing=%d want 2", len(res.Missing))
	}
	if res.Missing[0].Reason != "citation_not_in_retrieved_sources" || res.Missing[1].Reason != "no_citation" {
		t.Fatalf("reasons=%+v", res.Missing)
	}
	if res.Missing[0].Claim != "Invented: Smith v Jones holds..." {
		t.Fatalf("missing claim keeps the composed text, got %q", res.Missing[0].Claim)
	}
	if res.Missing[1].SkillID != "s2" {
		t.Fatalf("missing skill=%q want s2", res.Missing[1].SkillID)
	}
}

func TestValidateStrictDropsUncitedItems(t *testing.T) {
	res, err := Validate(draftItems(), allowed, products.GroundingStrict, 1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(res.Items) != 2 || res.Stats.ItemsRejected != 2 || res.Stats.ItemsFallback != 0 {
		t.Fatalf("items=%d stats=%+v", len(res.Items), res.Stats)
	}
	for _, it := range res.Items {
		if it.Fallback || it.Body == FallbackText {
			t.Fatalf("strict mode must not emit fallback items: %+v", it)
		}
	}
	if len(res.Missing) != 2 {
		t.Fatalf("strict mode still logs missing claims, got %d", len(res.Missing))
	}
}

func TestValidateStrictWithNoSurvivorsFails(t *testing.T) {
	items := []Item{{ID: "1", SkillID: "s1", Title: "x", Citations: []string{"nope"}}}
	res, err := Validate(items, allowed, products.GroundingStrict, 1)
	if !errors.Is(err, ErrNoSurvivingItems) {
		t.Fatalf("err=%v want ErrNoSurvivingItems", err)
	}
	if len(res.Missing) != 1 {
		t.Fatalf("missing=%d want 1", len(res.Missing))
	}
}

func TestValidateMinCitations(t *testing.T) {
	items := []Item{
		{ID: "1", SkillID: "s1", Title: "one", Citations: []string{"ot-s1"}},
		{ID: "2", SkillID: "s1", Title: "two", Citations: []string{"ot-s1", "auth-s1"}},
	}
	res, err := Validate(items, allowed, products.GroundingSoft, 2)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Stats.ItemsCited != 1 || res.Stats.ItemsFallback != 1 {
		t.Fatalf("stats=%+v", res.Stats)
	}
	if res.Missing[0].Reason != "insufficient_citations" {
		t.Fatalf("reason=%q", res.Missing[0].Reason)
	}
	if got := res.Items[0].Citations; len(got) != 1 {
		t.Fatalf("valid citations are preserved on flagged items, got %v", got)
	}
}

func TestScrubItems(t *testing.T) {
	items, hits := ScrubItems([]Item{{Title: "Offer", Body: "As an AI language model, an offer is a promise. I hope this helps!"}})
	if items[0].Body != "an offer is a promise." {
		t.Fatalf("body=%q", items[0].Body)
	}
	if len(hits) != 2 {
		t.Fatalf("hits=%v", hits)
	}
}
