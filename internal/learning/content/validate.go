package content

import (
	"errors"

	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
)

// ErrNoSurvivingItems is returned when strict validation rejects every item.
var ErrNoSurvivingItems = errors.New("no items survived strict grounding validation")

// MissingClaim is an item that lacked enough valid citations.
type MissingClaim struct {
	SkillID string
	Claim   string
	Reason  string
}

type ValidationResult struct {
	Items   []Item
	Stats   products.AssetStats
	Missing []MissingClaim
}

// Validate enforces minCitations valid citations per item. Only ids in
// allowed count. Soft mode replaces the title and body of failing items;
// strict mode drops them. Valid citations are preserved on flagged items.
func Validate(items []Item, allowed map[string]bool, mode string, minCitations int) (ValidationResult, error) {
	if minCitations < 1 {
		minCitations = 1
	}
	res := ValidationResult{Stats: products.AssetStats{ItemsTotal: len(items)}}
	for _, it := range items {
		valid := make([]string, 0, len(it.Citations))
		seen := map[string]bool{}
		invented := 0
		for _, id := range it.Citations {
			if seen[id] {
				continue
			}
			seen[id] = true
			if allowed[id] {
				valid = append(valid, id)
			} else {
				invented++
			}
		}
		it.Citations = valid
		if len(valid) >= minCitations {
			it.Fallback = false
			res.Items = append(res.Items, it)
			res.Stats.ItemsCited++
			continue
		}

		reason := "no_citation"
		if invented > 0 {
			reason = "citation_not_in_retrieved_sources"
		} else if len(valid) > 0 {
			reason = "insufficient_citations"
		}
		claim := it.Title
		if it.Body != "" {
			claim = it.Title + ": " + it.Body
		}
		res.Missing = append(res.Missing, MissingClaim{SkillID: it.SkillID, Claim: claim, Reason: reason})

		if mode == products.GroundingStrict {
			res.Stats.ItemsRejected++
			continue
		}
		it.Title = FallbackTitle
		it.Body = FallbackText
		it.Answer = ""
		it.Fallback = true
		res.Items = append(res.Items, it)
		res.Stats.ItemsFallback++
	}
	if mode == products.GroundingStrict && len(res.Items) == 0 {
		return res, ErrNoSurvivingItems
	}
	return res, nil
}
