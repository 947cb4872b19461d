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

func openDispute(t *testing.T, st store.Store, engine *DisputeEngine, entryID string) *model.Dispute {
	t.Helper()
	d, err := engine.Open(context.Background(), business, entryID, "domain email", "the quoted total is not ours")
	require.NoError(t, err)
	return d
}

func TestDisputeOpen(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)

	d := openDispute(t, st, engine, e.ID)
	assert.Equal(t, model.DisputeStatusPending, d.Status)
	assert.Equal(t, e.ProviderID, d.ProviderID)

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputePending, got.DisputeStatus, "entry moves to pending in the same transaction")
}

func TestDisputeOpen_OnePendingPerEntry(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	openDispute(t, st, engine, e.ID)

	_, err := engine.Open(context.Background(), business, e.ID, "domain email", "second challenge")
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}

func TestDisputeOpen_EntryMissing(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)

	_, err := engine.Open(context.Background(), business, uuid.New().String(), "domain email", "claim")
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestDisputeOpen_RequiresClaim(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)

	_, err := engine.Open(context.Background(), business, e.ID, "domain email", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
}

func TestDisputeResolve_Maintained(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	require.NoError(t, engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomeMaintained, "submitter evidence checks out", ""))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DisputeResolved, got.DisputeStatus)
	assert.Equal(t, model.VisibilityPublic, got.Visibility, "maintained leaves the entry as it was")
	assert.Equal(t, model.ModerationApproved, got.ModerationStatus)
}

func TestDisputeResolve_Removed(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	require.NoError(t, engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomeRemoved, "entry shown to be fabricated", ""))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityHidden, got.Visibility)
	assert.Equal(t, model.DisputeResolved, got.DisputeStatus)
}

func TestDisputeResolve_PartialHidden(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	require.NoError(t, engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomePartialHidden, "some line items disputed successfully", ""))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ModerationFlagged, got.ModerationStatus, "entry reopens for review")
	assert.Equal(t, model.VisibilityPublic, got.Visibility)
}

func TestDisputeResolve_Corrected(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	require.NoError(t, engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomeCorrected, "figures updated from provider records", ""))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierC, got.EvidenceTier, "corrected entries drop to tier C pending re-verification")
}

func TestDisputeResolve_PendingOnly(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	require.NoError(t, engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomeMaintained, "checked", ""))

	err := engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomeRemoved, "changed our mind", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VisibilityPublic, got.Visibility, "resolved disputes are final")
}

func TestDisputeResolve_RequiresPlatformResponse(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	err := engine.Resolve(context.Background(), moderator, d.ID, model.OutcomeMaintained, "", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
}

func TestDisputeResolve_InvalidOutcome(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	err := engine.Resolve(context.Background(), moderator, d.ID, "escalated", "resp", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeValidationFailed))
}

func TestDisputeResolve_RequiresModerator(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	err := engine.Resolve(context.Background(), business, d.ID, model.OutcomeMaintained, "resp", "")
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthRequired))
}

func TestDisputeAudit(t *testing.T) {
	st := newTestStore(t)
	engine := NewDisputeEngine(st, 0)
	e := seedEntry(t, st, model.VisibilityPublic, model.ModerationApproved)
	d := openDispute(t, st, engine, e.ID)

	require.NoError(t, engine.Resolve(context.Background(), moderator, d.ID,
		model.OutcomeRemoved, "verified removal", ""))

	records, err := st.ListAudit(context.Background(), store.AuditFilter{DisputeID: d.ID})
	require.NoError(t, err)
	require.Len(t, records, 2)
	// newest first
	assert.Equal(t, model.AuditDisputeResolved, records[0].Action)
	assert.Equal(t, model.AuditDisputeOpened, records[1].Action)
}
