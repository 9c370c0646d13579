// Package grading scores free-text and multiple-choice responses.
package grading

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/yungbote/studyforge-backend/internal/platform/logger"
	"github.com/yungbote/studyforge-backend/internal/platform/openai"
)

// Submission is one learner response to grade.
type Submission struct {
	ItemID   string
	Prompt   string
	Response string
	Format   string
	// Keywords are the terms a strong answer is expected to use.
	Keywords []string
}

// Grade is a normalized grading outcome.
type Grade struct {
	Score     float64            `json:"score"`
	Rubric    map[string]float64 `json:"rubric"`
	ErrorTags []string           `json:"error_tags"`
	Grader    string             `json:"grader"`
	Fallback  bool               `json:"fallback"`
}

type Grader interface {
	Grade(ctx context.Context, sub Submission) (Grade, error)
}

var ErrEmptyResponse = errors.New("empty response")

// HeuristicConfig tunes the fallback grader.
type HeuristicConfig struct {
	// Cap bounds every heuristic score.
	Cap           float64
	TargetWords   int
	LengthWeight  float64
	KeywordWeight float64
}

func DefaultHeuristicConfig() HeuristicConfig {
	return HeuristicConfig{Cap: 0.7, TargetWords: 120, LengthWeight: 0.4, KeywordWeight: 0.6}
}

// HeuristicGrader is the conservative length and keyword fallback.
type HeuristicGrader struct {
	Config HeuristicConfig
}

func (h HeuristicGrader) Grade(_ context.Context, sub Submission) (Grade, error) {
	cfg := h.Config
	if cfg.Cap <= 0 {
		cfg = DefaultHeuristicConfig()
	}
	words := strings.FieldsFunc(strings.ToLower(sub.Response), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	g := Grade{Grader: "heuristic", Fallback: true, Rubric: map[string]float64{}}
	if len(words) == 0 {
		g.ErrorTags = []string{"no_answer"}
		g.Rubric["length"] = 0
		return g, nil
	}

	length := 1.0
	if cfg.TargetWords > 0 {
		length = math.Min(1, float64(len(words))/float64(cfg.TargetWords))
	}
	g.Rubric["length"] = round2(length)

	score := length
	if len(sub.Keywords) > 0 {
		have := make(map[string]bool, len(words))
		for _, w := range words {
			have[w] = true
		}
		joined := " " + strings.Join(words, " ") + " "
		hit := 0
		for _, k := range sub.Keywords {
			k = strings.ToLower(strings.TrimSpace(k))
			if k == "" {
				continue
			}
			if have[k] || strings.Contains(joined, " "+k+" ") {
				hit++
			}
		}
		kw := float64(hit) / float64(len(sub.Keywords))
		g.Rubric["keywords"] = round2(kw)
		score = cfg.LengthWeight*length + cfg.KeywordWeight*kw
		if kw < 0.5 {
			g.ErrorTags = append(g.ErrorTags, "missing_key_terms")
		}
	}
	if length < 0.25 {
		g.ErrorTags = append(g.ErrorTags, "underdeveloped")
	}
	g.Score = round2(math.Min(cfg.Cap, math.Max(0, score)))
	return g, nil
}

var gradeSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []any{"score", "rubric", "error_tags"},
	"properties": map[string]any{
		"score": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"rubric": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"criterion", "score"},
				"properties": map[string]any{
					"criterion": map[string]any{"type": "string"},
					"score":     map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
			},
		},
		"error_tags": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

const gradeSystem = `You grade law exam answers. Return a score from 0 to 1, a per-criterion rubric,
and short snake_case error tags naming each mistake (for example "missed_issue", "wrong_rule", "no_application").`

// LLMGrader grades with a structured-output model.
type LLMGrader struct {
	Client openai.Client
}

func (g LLMGrader) Grade(ctx context.Context, sub Submission) (Grade, error) {
	if strings.TrimSpace(sub.Response) == "" {
		return Grade{}, ErrEmptyResponse
	}
	user := fmt.Sprintf("Item: %s\nFormat: %s\nQuestion:\n%s\nExpected terms: %s\nAnswer:\n%s",
		sub.ItemID, sub.Format, sub.Prompt, strings.Join(sub.Keywords, ", "), sub.Response)
	obj, err := g.Client.GenerateJSON(ctx, gradeSystem, user, "attempt_grade", gradeSchema)
	if err != nil {
		return Grade{}, err
	}
	out := Grade{Grader: g.Client.ModelID(), Rubric: map[string]float64{}}
	if v, ok := obj["score"].(float64); ok {
		out.Score = math.Min(1, math.Max(0, v))
	}
	if rows, ok := obj["rubric"].([]any); ok {
		for _, r := range rows {
			m, _ := r.(map[string]any)
			name, _ := m["criterion"].(string)
			v, _ := m["score"].(float64)
			if name != "" {
				out.Rubric[name] = v
			}
		}
	}
	if tags, ok := obj["error_tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				out.ErrorTags = append(out.ErrorTags, strings.TrimSpace(s))
			}
		}
	}
	return out, nil
}

// WithFallback uses primary and falls back to the heuristic on any error.
type WithFallback struct {
	Primary  Grader
	Fallback Grader
	Log      *logger.Logger
}

func (w WithFallback) Grade(ctx context.Context, sub Submission) (Grade, error) {
	if w.Primary != nil {
		g, err := w.Primary.Grade(ctx, sub)
		if err == nil {
			return g, nil
		}
		if ctx.Err() != nil {
			return Grade{}, ctx.Err()
		}
		if w.Log != nil {
			w.Log.Warn("grader failed; using fallback", "item_id", sub.ItemID, "error", err)
		}
	}
	fb := w.Fallback
	if fb == nil {
		fb = HeuristicGrader{Config: DefaultHeuristicConfig()}
	}
	return fb.Grade(ctx, sub)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
