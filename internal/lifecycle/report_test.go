package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
)

func TestReportCreate(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)

	report, err := engine.Create(context.Background(), regular, e.ID, "fabricated", "this price is impossible")
	require.NoError(t, err)
	assert.Equal(t, model.ReportOpen, report.Status)
	assert.Equal(t, regular.ID, report.ReporterID)

	records, err := st.ListAudit(context.Background(), store.AuditFilter{ReportID: report.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, e.ID, records[0].EntryID, "audit row carries the entry back-reference")
}

func TestReportCreate_EntryMissing(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)

	_, err := engine.Create(context.Background(), regular, uuid.New().String(), "spam", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestReportTriageThenResolve(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	report, err := engine.Create(context.Background(), regular, e.ID, "fabricated", "")
	require.NoError(t, err)

	require.NoError(t, engine.Triage(context.Background(), moderator, report.ID, "looking into it"))
	require.NoError(t, engine.Resolve(context.Background(), moderator, report.ID, "entry hidden separately"))

	got, err := st.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportResolved, got.Status)
	assert.Equal(t, "entry hidden separately", got.ResolutionNote)
}

func TestReportTriage_ConflictFromTriaged(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	report, err := engine.Create(context.Background(), regular, e.ID, "fabricated", "")
	require.NoError(t, err)

	require.NoError(t, engine.Triage(context.Background(), moderator, report.ID, ""))
	err = engine.Triage(context.Background(), moderator, report.ID, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), "triage is not idempotent")
}

func TestReportClose_TerminalConflict(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	report, err := engine.Create(context.Background(), regular, e.ID, "spam", "")
	require.NoError(t, err)

	require.NoError(t, engine.Dismiss(context.Background(), moderator, report.ID, "no basis"))

	err = engine.Resolve(context.Background(), moderator, report.ID, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	got, err := st.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportDismissed, got.Status, "terminal state unchanged by the conflict")
}

func TestReportResolve_NeverTouchesEntry(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	report, err := engine.Create(context.Background(), regular, e.ID, "fabricated", "")
	require.NoError(t, err)

	require.NoError(t, engine.Resolve(context.Background(), moderator, report.ID, "handled"))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, got.Visibility)
	assert.Equal(t, model.ModerationApproved, got.ModerationStatus)
}

func TestReportClose_RequiresModerator(t *testing.T) {
	st := newTestStore(t)
	engine := NewReportEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	report, err := engine.Create(context.Background(), regular, e.ID, "spam", "")
	require.NoError(t, err)

	err = engine.Dismiss(context.Background(), regular, report.ID, "")
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthRequired))
}
