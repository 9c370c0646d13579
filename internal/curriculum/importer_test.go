package curriculum

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yungbote/studyforge-backend/internal/data/repos"
	"github.com/yungbote/studyforge-backend/internal/data/repos/testutil"
	"github.com/yungbote/studyforge-backend/internal/domain/learning/core"
	"github.com/yungbote/studyforge-backend/internal/platform/apierr"
	"github.com/yungbote/studyforge-backend/internal/platform/dbctx"
)

const sampleYAML = `
units:
  - id: contract
    title: Contract Law
    exam_weight: 0.6
  - id: tort
    title: Tort
    exam_weight: 0.4
skills:
  - id: offer
    unit_id: contract
    name: Offer and acceptance
    exam_weight: 0.3
  - id: duty
    unit_id: tort
    name: Duty of care
    exam_weight: 0.5
    min_timed_proofs: 3
outline:
  - id: ot-offer
    skill_id: offer
    title: Offer
    body: An offer is a definite promise to be bound.
transcripts:
  - id: tx-offer-1
    skill_id: offer
    lecture_id: lec-1
    text: Invitations to treat are not offers.
    moderation_status: Approved
  - id: tx-offer-2
    skill_id: offer
    text: Unreviewed remark.
authorities:
  - id: carlill
    kind: case
    citation: Carlill v Carbolic Smoke Ball Co [1893] 1 QB 256
    verified: true
  - id: donoghue
    kind: case
    citation: Donoghue v Stevenson [1932] AC 562
    verified: true
links:
  - authority_id: carlill
    target_type: skill
    target_id: offer
  - authority_id: donoghue
    target_type: unit
    target_id: tort
cites:
  - from: donoghue
    to: carlill
`

func newImporter(t *testing.T) (*Importer, repos.Repos) {
	t.Helper()
	db := testutil.Isolated(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	return NewImporter(db, log, r, nil), r
}

func TestImportYAMLIsIdempotent(t *testing.T) {
	im, r := newImporter(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}

	doc, err := ParseYAML(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	sum, err := im.Import(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Units)
	assert.Equal(t, 2, sum.Skills)
	assert.Equal(t, 2, sum.Transcripts)
	assert.Equal(t, 1, sum.Cites)
	assert.False(t, sum.GraphSynced)

	doc, err = ParseYAML(strings.NewReader(sampleYAML))
	require.NoError(t, err)
	_, err = im.Import(ctx, doc)
	require.NoError(t, err)

	skills, err := r.Curriculum.ListSkills(dbc)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	duty, err := r.Curriculum.GetSkillByID(dbc, "duty")
	require.NoError(t, err)
	assert.Equal(t, 3, duty.MinTimedProofs)
	offer, err := r.Curriculum.GetSkillByID(dbc, "offer")
	require.NoError(t, err)
	assert.Equal(t, 2, offer.MinTimedProofs)

	approved, err := r.Sources.ApprovedTranscriptsForSkill(dbc, "offer", 10)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "tx-offer-1", approved[0].ID)

	auths, err := r.Sources.VerifiedAuthoritiesFor(dbc, "duty", "tort", 10)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, "donoghue", auths[0].ID)
}

func TestImportRejectsBrokenReferences(t *testing.T) {
	im, r := newImporter(t)
	doc, err := ParseYAML(strings.NewReader(`
units:
  - id: contract
skills:
  - id: offer
    unit_id: missing
authorities:
  - id: a1
    kind: regulation
    citation: X
links:
  - authority_id: ghost
    target_type: skill
    target_id: offer
`))
	require.NoError(t, err)

	_, err = im.Import(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrInvalidArgument))
	assert.Contains(t, err.Error(), `unknown unit "missing"`)
	assert.Contains(t, err.Error(), "kind must be")
	assert.Contains(t, err.Error(), `unknown authority "ghost"`)

	units, err := r.Curriculum.ListUnits(dbctx.Context{Ctx: context.Background()})
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := ParseYAML(strings.NewReader("units:\n  - id: a\n    weight: 1\n"))
	assert.Error(t, err)
}

func TestImportFileFromWorkbook(t *testing.T) {
	im, r := newImporter(t)
	path := filepath.Join(t.TempDir(), "curriculum.xlsx")
	writeWorkbook(t, path, map[string][][]any{
		SheetUnits: {
			{"id", "title", "exam_weight"},
			{"contract", "Contract Law", 0.6},
		},
		SheetSkills: {
			{"id", "unit_id", "name", "exam_weight"},
			{"offer", "contract", "Offer", 0.3},
			{},
			{"acceptance", "contract", "Acceptance", 0.2},
		},
		SheetAuthorities: {
			{"id", "kind", "citation", "verified"},
			{"carlill", "Case", "Carlill v Carbolic Smoke Ball Co", "TRUE"},
		},
		SheetLinks: {
			{"authority_id", "target_type", "target_id"},
			{"carlill", "skill", "offer"},
		},
	})

	sum, err := im.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skills)
	assert.Equal(t, 1, sum.Links)

	dbc := dbctx.Context{Ctx: context.Background()}
	skill, err := r.Curriculum.GetSkillByID(dbc, "acceptance")
	require.NoError(t, err)
	require.NotNil(t, skill)
	assert.InDelta(t, 0.2, skill.ExamWeight, 1e-9)

	auths, err := r.Sources.VerifiedAuthoritiesFor(dbc, "offer", "contract", 10)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, core.AuthorityCase, auths[0].Kind)
}

func TestImportFileRejectsUnknownExtension(t *testing.T) {
	im, _ := newImporter(t)
	path := filepath.Join(t.TempDir(), "curriculum.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := im.ImportFile(context.Background(), path)
	assert.True(t, errors.Is(err, apierr.ErrInvalidArgument))
}

func writeWorkbook(t *testing.T, path string, sheets map[string][][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			if len(row) == 0 {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
}
