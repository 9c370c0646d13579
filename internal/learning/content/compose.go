package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yungbote/studyforge-backend/internal/domain/learning/products"
	"github.com/yungbote/studyforge-backend/internal/learning/grounding"
	"github.com/yungbote/studyforge-backend/internal/platform/openai"
)

type SkillBrief struct {
	ID   string
	Name string
}

type ComposeRequest struct {
	Kind      string
	Skills    []SkillBrief
	Blueprint Blueprint
	Sources   grounding.Set
}

// Composer drafts items that cite source ids from the request.
type Composer interface {
	Compose(ctx context.Context, req ComposeRequest) (Draft, error)
	Name() string
}

// TemplateComposer builds items straight from the retrieved sources. Skills
// with no sources still get an uncited item so validation can flag the gap.
type TemplateComposer struct{}

func (TemplateComposer) Name() string { return "template" }

func (TemplateComposer) Compose(_ context.Context, req ComposeRequest) (Draft, error) {
	typ := itemTypeFor(req.Kind)
	bySkill := map[string][]grounding.Source{}
	for _, src := range req.Sources.All() {
		for _, id := range src.SkillIDs {
			bySkill[id] = append(bySkill[id], src)
		}
	}

	var items []Item
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("%s-%d", strings.ToLower(req.Kind), n)
	}
	for _, sk := range req.Skills {
		srcs := bySkill[sk.ID]
		if len(srcs) == 0 {
			items = append(items, Item{
				ID: next(), Type: typ, SkillID: sk.ID,
				Title: "Key rules: " + sk.Name,
				Body:  "Core principles of " + sk.Name + ".",
			})
			continue
		}
		for _, src := range srcs {
			it := Item{ID: next(), Type: typ, SkillID: sk.ID, Citations: []string{src.ID}}
			switch req.Kind {
			case products.AssetCheckpoint:
				it.Title = "Check: " + src.Title
				it.Body = "State the rule from " + src.Label + " in one sentence."
				it.Answer = src.Text
			case products.AssetPracticeSet:
				it.Title = "Apply: " + src.Title
				it.Body = "Identify the issue and apply " + src.Label + " to a short fact pattern on " + sk.Name + "."
				it.Answer = src.Text
			case products.AssetRubric:
				it.Title = "Uses " + src.Label
				it.Body = "Answer identifies and correctly applies " + src.Label + "."
			default:
				it.Title = src.Title
				it.Body = src.Text
			}
			items = append(items, it)
		}
	}
	return Draft{Items: items, Model: "template"}, nil
}

var composeSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []any{"items"},
	"properties": map[string]any{
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"skill_id", "title", "body", "answer", "citations"},
				"properties": map[string]any{
					"skill_id":  map[string]any{"type": "string"},
					"title":     map[string]any{"type": "string"},
					"body":      map[string]any{"type": "string"},
					"answer":    map[string]any{"type": "string"},
					"citations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
	},
}

const composeSystem = `You write law exam study material. Use only the numbered sources provided.
Every item must list in "citations" the exact source ids it relies on. If no source supports a point,
leave "citations" empty; do not invent cases, statutes or quotations.`

// LLMComposer drafts items with a structured-output model.
type LLMComposer struct {
	Client openai.Client
}

func (c LLMComposer) Name() string { return "llm:" + c.Client.ModelID() }

func (c LLMComposer) Compose(ctx context.Context, req ComposeRequest) (Draft, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset kind: %s\n", req.Kind)
	b.WriteString("Skills:\n")
	for _, s := range req.Skills {
		fmt.Fprintf(&b, "- %s: %s\n", s.ID, s.Name)
	}
	if len(req.Blueprint.Slots) > 0 {
		b.WriteString("Session plan:\n")
		for _, slot := range req.Blueprint.Slots {
			fmt.Fprintf(&b, "- %s %d min\n", slot.Type, slot.Minutes)
		}
	}
	b.WriteString("Sources:\n")
	for _, src := range req.Sources.All() {
		fmt.Fprintf(&b, "[%s] (%s, skills %s) %s: %s\n", src.ID, src.Class, strings.Join(src.SkillIDs, ","), src.Label, src.Text)
	}

	obj, err := c.Client.GenerateJSON(ctx, composeSystem, b.String(), "study_asset_items", composeSchema)
	if err != nil {
		return Draft{}, fmt.Errorf("compose %s: %w", req.Kind, err)
	}
	raw, err := json.Marshal(obj["items"])
	if err != nil {
		return Draft{}, err
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return Draft{}, fmt.Errorf("decode composed items: %w", err)
	}
	typ := itemTypeFor(req.Kind)
	for i := range items {
		items[i].ID = fmt.Sprintf("%s-%d", strings.ToLower(req.Kind), i+1)
		items[i].Type = typ
		items[i].Fallback = false
	}
	return Draft{Items: items, Model: c.Client.ModelID()}, nil
}
