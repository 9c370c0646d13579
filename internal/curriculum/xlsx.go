package curriculum

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/yungbote/studyforge-backend/internal/data/graph"
	types "github.com/yungbote/studyforge-backend/internal/domain"
)

// Workbook sheet names. Each sheet starts with a header row naming its columns.
const (
	SheetUnits       = "units"
	SheetSkills      = "skills"
	SheetOutline     = "outline"
	SheetTranscripts = "transcripts"
	SheetAuthorities = "authorities"
	SheetLinks       = "links"
	SheetCites       = "cites"
)

// ParseXLSX reads a Document from a workbook with one sheet per entity.
// Missing sheets are treated as empty.
func ParseXLSX(r io.Reader) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open curriculum workbook: %w", err)
	}
	defer f.Close()

	sheets := map[string]string{}
	for _, name := range f.GetSheetList() {
		sheets[strings.ToLower(strings.TrimSpace(name))] = name
	}
	rowsOf := func(sheet string) ([]record, error) {
		name, ok := sheets[sheet]
		if !ok {
			return nil, nil
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		return records(rows), nil
	}

	doc := &Document{}
	var errs []error

	rows, err := rowsOf(SheetUnits)
	if err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Units = append(doc.Units, &types.CurriculumUnit{
			ID:         rec.str("id"),
			Title:      rec.str("title"),
			ExamWeight: rec.number("exam_weight", &errs),
			SortIndex:  rec.integer("sort_index", &errs),
		})
	}

	if rows, err = rowsOf(SheetSkills); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Skills = append(doc.Skills, &types.Skill{
			ID:             rec.str("id"),
			UnitID:         rec.str("unit_id"),
			Name:           rec.str("name"),
			ExamWeight:     rec.number("exam_weight", &errs),
			MinRepetitions: rec.integer("min_repetitions", &errs),
			MinTimedProofs: rec.integer("min_timed_proofs", &errs),
		})
	}

	if rows, err = rowsOf(SheetOutline); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Outline = append(doc.Outline, &types.OutlineTopic{
			ID:         rec.str("id"),
			SkillID:    rec.str("skill_id"),
			UnitID:     rec.str("unit_id"),
			Title:      rec.str("title"),
			Body:       rec.str("body"),
			Confidence: rec.number("confidence", &errs),
		})
	}

	if rows, err = rowsOf(SheetTranscripts); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Transcripts = append(doc.Transcripts, &types.TranscriptExcerpt{
			ID:               rec.str("id"),
			SkillID:          rec.str("skill_id"),
			LectureID:        rec.str("lecture_id"),
			Text:             rec.str("text"),
			ModerationStatus: rec.str("moderation_status"),
			Confidence:       rec.number("confidence", &errs),
		})
	}

	if rows, err = rowsOf(SheetAuthorities); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Authorities = append(doc.Authorities, &types.Authority{
			ID:         rec.str("id"),
			Kind:       rec.str("kind"),
			Citation:   rec.str("citation"),
			Title:      rec.str("title"),
			Summary:    rec.str("summary"),
			Verified:   rec.flag("verified", &errs),
			Confidence: rec.number("confidence", &errs),
		})
	}

	if rows, err = rowsOf(SheetLinks); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Links = append(doc.Links, &types.AuthorityLink{
			AuthorityID: rec.str("authority_id"),
			TargetType:  rec.str("target_type"),
			TargetID:    rec.str("target_id"),
		})
	}

	if rows, err = rowsOf(SheetCites); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		doc.Cites = append(doc.Cites, graph.CitationEdge{FromID: rec.str("from"), ToID: rec.str("to")})
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("parse curriculum workbook: %w", err)
	}
	return doc, nil
}

// record is one data row keyed by lowercased header.
type record struct {
	sheetRow int
	cells    map[string]string
}

func records(rows [][]string) []record {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	out := make([]record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		cells := make(map[string]string, len(header))
		empty := true
		for j, v := range row {
			if j >= len(header) || header[j] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				empty = false
			}
			cells[header[j]] = v
		}
		if empty {
			continue
		}
		out = append(out, record{sheetRow: i + 2, cells: cells})
	}
	return out
}

func (r record) str(col string) string { return r.cells[col] }

func (r record) number(col string, errs *[]error) float64 {
	v := r.cells[col]
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("row %d: %s: %q is not a number", r.sheetRow, col, v))
	}
	return f
}

func (r record) integer(col string, errs *[]error) int {
	v := r.cells[col]
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("row %d: %s: %q is not an integer", r.sheetRow, col, v))
	}
	return n
}

func (r record) flag(col string, errs *[]error) bool {
	v := r.cells[col]
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		*errs = append(*errs, fmt.Errorf("row %d: %s: %q is not a boolean", r.sheetRow, col, v))
	}
	return b
}
