// Package grounding gathers the verified source material study content may cite.
package grounding

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/studyforge-backend/internal/data/graph"
	"github.com/yungbote/studyforge-backend/internal/data/repos"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
	"github.com/yungbote/studyforge-backend/internal/platform/logger"
)

const (
	ClassOutline    = "outline_topic"
	ClassTranscript = "transcript_excerpt"
	ClassAuthority  = "authority"
)

// Source is one retrievable piece of evidence.
type Source struct {
	ID         string   `json:"id"`
	Class      string   `json:"class"`
	SkillIDs   []string `json:"skill_ids"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
}

// Set is the retrieval result for one or more skills.
type Set struct {
	Outline     []Source `json:"outline"`
	Transcripts []Source `json:"transcripts"`
	Authorities []Source `json:"authorities"`
}

func (s Set) All() []Source {
	out := make([]Source, 0, len(s.Outline)+len(s.Transcripts)+len(s.Authorities))
	out = append(out, s.Outline...)
	out = append(out, s.Authorities...)
	out = append(out, s.Transcripts...)
	return out
}

func (s Set) Empty() bool {
	return len(s.Outline) == 0 && len(s.Transcripts) == 0 && len(s.Authorities) == 0
}

// IDs is the set of ids a composed item may legitimately cite.
func (s Set) IDs() map[string]bool {
	ids := make(map[string]bool, len(s.Outline)+len(s.Transcripts)+len(s.Authorities))
	for _, src := range s.All() {
		ids[src.ID] = true
	}
	return ids
}

// Refs converts the set into the grounding refs persisted with an asset.
func (s Set) Refs() types.GroundingRefs {
	conv := func(in []Source) []types.GroundingRef {
		out := make([]types.GroundingRef, 0, len(in))
		for _, src := range in {
			out = append(out, types.GroundingRef{SourceType: src.Class, SourceID: src.ID, Title: src.Title, Confidence: src.Confidence})
		}
		return out
	}
	return types.GroundingRefs{
		Outline:     conv(s.Outline),
		Authorities: conv(s.Authorities),
		Lectures:    conv(s.Transcripts),
	}
}

// Subset keeps only the sources whose ids are in ids.
func (s Set) Subset(ids map[string]bool) Set {
	keep := func(in []Source) []Source {
		var out []Source
		for _, src := range in {
			if ids[src.ID] {
				out = append(out, src)
			}
		}
		return out
	}
	return Set{Outline: keep(s.Outline), Transcripts: keep(s.Transcripts), Authorities: keep(s.Authorities)}
}

// CoversSkill reports whether src was retrieved for skillID.
func (src Source) CoversSkill(skillID string) bool {
	for _, id := range src.SkillIDs {
		if id == skillID {
			return true
		}
	}
	return false
}

// Merge appends other. A source already present keeps its position and
// gains the other skill ids it was retrieved for.
func (s Set) Merge(other Set) Set {
	out := Set{
		Outline:     cloneSources(s.Outline),
		Transcripts: cloneSources(s.Transcripts),
		Authorities: cloneSources(s.Authorities),
	}
	type loc struct {
		list *[]Source
		i    int
	}
	at := map[string]loc{}
	for _, list := range []*[]Source{&out.Outline, &out.Authorities, &out.Transcripts} {
		for i := range *list {
			at[(*list)[i].ID] = loc{list, i}
		}
	}
	add := func(list *[]Source, src []Source) {
		for _, x := range src {
			if l, ok := at[x.ID]; ok {
				prev := &(*l.list)[l.i]
				for _, id := range x.SkillIDs {
					if !prev.CoversSkill(id) {
						prev.SkillIDs = append(prev.SkillIDs, id)
					}
				}
				continue
			}
			x.SkillIDs = append([]string(nil), x.SkillIDs...)
			*list = append(*list, x)
			at[x.ID] = loc{list, len(*list) - 1}
		}
	}
	add(&out.Outline, other.Outline)
	add(&out.Authorities, other.Authorities)
	add(&out.Transcripts, other.Transcripts)
	return out
}

func cloneSources(in []Source) []Source {
	if in == nil {
		return nil
	}
	out := make([]Source, len(in))
	for i, src := range in {
		src.SkillIDs = append([]string(nil), src.SkillIDs...)
		out[i] = src
	}
	return out
}

type Limits struct {
	Outline     int
	Transcripts int
	Authorities int
}

func DefaultLimits() Limits {
	return Limits{Outline: 5, Transcripts: 5, Authorities: 8}
}

// Retriever is read-only. Unavailable backends degrade to fewer sources, never to an error.
type Retriever struct {
	curriculum repos.CurriculumRepo
	sources    repos.GroundingSourceRepo
	graph      graph.AuthorityGraph
	limits     Limits
	log        *logger.Logger
}

func NewRetriever(curriculum repos.CurriculumRepo, sources repos.GroundingSourceRepo, authorityGraph graph.AuthorityGraph, limits Limits, log *logger.Logger) *Retriever {
	return &Retriever{
		curriculum: curriculum,
		sources:    sources,
		graph:      authorityGraph,
		limits:     limits,
		log:        log.With("service", "GroundingRetriever"),
	}
}

// Retrieve returns the sources for one skill. The only error is context cancellation.
func (r *Retriever) Retrieve(ctx context.Context, skillID string) (Set, error) {
	var set Set
	if strings.TrimSpace(skillID) == "" {
		return set, nil
	}
	dbc := dbctx.Context{Ctx: ctx}

	unitID := ""
	if skill, err := r.curriculum.GetSkillByID(dbc, skillID); err != nil {
		r.log.Warn("skill lookup failed; authorities limited to skill links", "skill_id", skillID, "error", err)
	} else if skill != nil {
		unitID = skill.UnitID
	}

	if rows, err := r.sources.OutlineForSkill(dbc, skillID, r.limits.Outline); err != nil {
		r.log.Warn("outline retrieval degraded", "skill_id", skillID, "error", err)
	} else {
		for _, o := range rows {
			set.Outline = append(set.Outline, Source{
				ID: o.ID, Class: ClassOutline, SkillIDs: []string{skillID}, Title: o.Title, Text: o.Body,
				Label: "Outline: " + o.Title, Confidence: o.Confidence,
			})
		}
	}

	if rows, err := r.sources.ApprovedTranscriptsForSkill(dbc, skillID, r.limits.Transcripts); err != nil {
		r.log.Warn("transcript retrieval degraded", "skill_id", skillID, "error", err)
	} else {
		for _, t := range rows {
			set.Transcripts = append(set.Transcripts, Source{
				ID: t.ID, Class: ClassTranscript, SkillIDs: []string{skillID}, Title: "Lecture " + t.LectureID, Text: t.Text,
				Label: "Lecture " + t.LectureID, Confidence: t.Confidence,
			})
		}
	}

	if rows, err := r.sources.VerifiedAuthoritiesFor(dbc, skillID, unitID, r.limits.Authorities); err != nil {
		r.log.Warn("authority retrieval degraded", "skill_id", skillID, "error", err)
	} else {
		for _, a := range rows {
			set.Authorities = append(set.Authorities, authoritySource(a, skillID, a.Confidence))
		}
	}

	set.Authorities = r.withGraphAuthorities(dbc, skillID, unitID, set.Authorities)

	if err := ctx.Err(); err != nil {
		return Set{}, err
	}
	set.Outline = capped(rank(set.Outline), r.limits.Outline)
	set.Transcripts = capped(rank(set.Transcripts), r.limits.Transcripts)
	set.Authorities = capped(rank(set.Authorities), r.limits.Authorities)
	return set, nil
}

// RetrieveMany retrieves every skill concurrently and merges the results.
func (r *Retriever) RetrieveMany(ctx context.Context, skillIDs []string) (Set, error) {
	results := make([]Set, len(skillIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range skillIDs {
		i, id := i, id
		g.Go(func() error {
			s, err := r.Retrieve(gctx, id)
			if err != nil {
				return err
			}
			results[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Set{}, err
	}
	var merged Set
	for _, s := range results {
		merged = merged.Merge(s)
	}
	return merged, nil
}

func (r *Retriever) withGraphAuthorities(dbc dbctx.Context, skillID, unitID string, have []Source) []Source {
	if r.graph == nil {
		return have
	}
	hits, err := r.graph.AuthoritiesForSkill(dbc.Context(), skillID, unitID, r.limits.Authorities)
	if err != nil {
		r.log.Warn("authority graph unavailable", "skill_id", skillID, "error", err)
		return have
	}
	seen := map[string]bool{}
	for _, s := range have {
		seen[s.ID] = true
	}
	var missing []string
	conf := map[string]float64{}
	for _, h := range hits {
		if seen[h.ID] {
			continue
		}
		missing = append(missing, h.ID)
		conf[h.ID] = h.Confidence
	}
	if len(missing) == 0 {
		return have
	}
	rows, err := r.sources.GetAuthoritiesByIDs(dbc, missing)
	if err != nil {
		r.log.Warn("graph authority hydrate failed", "skill_id", skillID, "error", err)
		return have
	}
	for _, a := range rows {
		// the relational row is the source of truth for verification
		if !a.Verified {
			continue
		}
		have = append(have, authoritySource(a, skillID, conf[a.ID]))
	}
	return have
}

func authoritySource(a *types.Authority, skillID string, confidence float64) Source {
	text := a.Summary
	if text == "" {
		text = a.Title
	}
	return Source{
		ID: a.ID, Class: ClassAuthority, SkillIDs: []string{skillID}, Title: a.Title, Text: text,
		Label: a.Citation, Confidence: confidence,
	}
}

func rank(in []Source) []Source {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Confidence != in[j].Confidence {
			return in[i].Confidence > in[j].Confidence
		}
		return in[i].ID < in[j].ID
	})
	return in
}

func capped(in []Source, n int) []Source {
	if n > 0 && len(in) > n {
		return in[:n]
	}
	return in
}
