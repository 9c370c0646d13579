package curriculum

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/studyforge-backend/internal/data/graph"
	types "github.com/yungbote/studyforge-backend/internal/domain"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/core"
)

// Document is one curriculum import: reference data keyed by stable string ids.
type Document struct {
	Units       []*types.CurriculumUnit    `yaml:"units"`
	Skills      []*types.Skill             `yaml:"skills"`
	Outline     []*types.OutlineTopic      `yaml:"outline"`
	Transcripts []*types.TranscriptExcerpt `yaml:"transcripts"`
	Authorities []*types.Authority         `yaml:"authorities"`
	Links       []*types.AuthorityLink     `yaml:"links"`
	Cites       []graph.CitationEdge       `yaml:"cites"`
}

// Summary counts what an import wrote.
type Summary struct {
	Units       int  `json:"units"`
	Skills      int  `json:"skills"`
	Outline     int  `json:"outline"`
	Transcripts int  `json:"transcripts"`
	Authorities int  `json:"authorities"`
	Links       int  `json:"links"`
	Cites       int  `json:"cites"`
	GraphSynced bool `json:"graph_synced"`
}

// Normalize trims ids, fills defaults and checks every reference. It reports
// all problems at once.
func (d *Document) Normalize() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	units := map[string]bool{}
	for i, u := range d.Units {
		if u == nil {
			bad("units[%d]: empty row", i)
			continue
		}
		u.ID = strings.TrimSpace(u.ID)
		if u.ID == "" {
			bad("units[%d]: missing id", i)
			continue
		}
		if units[u.ID] {
			bad("units[%d]: duplicate id %q", i, u.ID)
		}
		units[u.ID] = true
		if strings.TrimSpace(u.Title) == "" {
			u.Title = u.ID
		}
		if u.ExamWeight < 0 || u.ExamWeight > 1 {
			bad("unit %q: exam_weight must be in [0,1]", u.ID)
		}
	}

	skills := map[string]string{}
	for i, s := range d.Skills {
		if s == nil {
			bad("skills[%d]: empty row", i)
			continue
		}
		s.ID, s.UnitID = strings.TrimSpace(s.ID), strings.TrimSpace(s.UnitID)
		if s.ID == "" {
			bad("skills[%d]: missing id", i)
			continue
		}
		if _, dup := skills[s.ID]; dup {
			bad("skills[%d]: duplicate id %q", i, s.ID)
		}
		skills[s.ID] = s.UnitID
		if !units[s.UnitID] {
			bad("skill %q: unknown unit %q", s.ID, s.UnitID)
		}
		if strings.TrimSpace(s.Name) == "" {
			s.Name = s.ID
		}
		if s.ExamWeight < 0 || s.ExamWeight > 1 {
			bad("skill %q: exam_weight must be in [0,1]", s.ID)
		}
		if s.MinTimedProofs <= 0 {
			s.MinTimedProofs = 2
		}
	}

	for i, o := range d.Outline {
		if o == nil || strings.TrimSpace(o.ID) == "" {
			bad("outline[%d]: missing id", i)
			continue
		}
		unit, ok := skills[o.SkillID]
		if !ok {
			bad("outline %q: unknown skill %q", o.ID, o.SkillID)
		}
		if o.UnitID == "" {
			o.UnitID = unit
		}
		if o.Confidence <= 0 {
			o.Confidence = 1
		}
	}

	for i, t := range d.Transcripts {
		if t == nil || strings.TrimSpace(t.ID) == "" {
			bad("transcripts[%d]: missing id", i)
			continue
		}
		if _, ok := skills[t.SkillID]; !ok {
			bad("transcript %q: unknown skill %q", t.ID, t.SkillID)
		}
		t.ModerationStatus = strings.ToLower(strings.TrimSpace(t.ModerationStatus))
		switch t.ModerationStatus {
		case "":
			t.ModerationStatus = core.ModerationPending
		case core.ModerationPending, core.ModerationApproved, core.ModerationRejected:
		default:
			bad("transcript %q: unknown moderation_status %q", t.ID, t.ModerationStatus)
		}
		if t.Confidence <= 0 {
			t.Confidence = 0.7
		}
	}

	authorities := map[string]bool{}
	for i, a := range d.Authorities {
		if a == nil || strings.TrimSpace(a.ID) == "" {
			bad("authorities[%d]: missing id", i)
			continue
		}
		authorities[a.ID] = true
		a.Kind = strings.ToLower(strings.TrimSpace(a.Kind))
		if a.Kind != core.AuthorityStatute && a.Kind != core.AuthorityCase {
			bad("authority %q: kind must be %s or %s", a.ID, core.AuthorityStatute, core.AuthorityCase)
		}
		if strings.TrimSpace(a.Citation) == "" {
			bad("authority %q: missing citation", a.ID)
		}
		if a.Confidence <= 0 {
			a.Confidence = 0.9
		}
	}

	for i, l := range d.Links {
		if l == nil {
			bad("links[%d]: empty row", i)
			continue
		}
		l.TargetType = strings.ToLower(strings.TrimSpace(l.TargetType))
		if !authorities[l.AuthorityID] {
			bad("links[%d]: unknown authority %q", i, l.AuthorityID)
		}
		switch l.TargetType {
		case core.LinkTargetSkill:
			if _, ok := skills[l.TargetID]; !ok {
				bad("links[%d]: unknown skill %q", i, l.TargetID)
			}
		case core.LinkTargetUnit:
			if !units[l.TargetID] {
				bad("links[%d]: unknown unit %q", i, l.TargetID)
			}
		default:
			bad("links[%d]: target_type must be %s or %s", i, core.LinkTargetSkill, core.LinkTargetUnit)
		}
	}

	for i, c := range d.Cites {
		if !authorities[c.FromID] || !authorities[c.ToID] {
			bad("cites[%d]: unknown authority in %q -> %q", i, c.FromID, c.ToID)
		}
	}
	return errors.Join(errs...)
}

// linksByAuthority groups links so each authority's link set is replaced whole.
func (d *Document) linksByAuthority() map[string][]*types.AuthorityLink {
	out := make(map[string][]*types.AuthorityLink, len(d.Authorities))
	for _, a := range d.Authorities {
		out[a.ID] = nil
	}
	for _, l := range d.Links {
		out[l.AuthorityID] = append(out[l.AuthorityID], l)
	}
	return out
}
