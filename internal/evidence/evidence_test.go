package evidence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/scorer"
	"github.com/feelens/feelens-core/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var owner = auth.Actor{ID: "u-1", Role: auth.RoleUser}

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return NewService(st, scorer.DefaultConfig(), 0), st
}

func seedEntry(t *testing.T, st store.Store, transparency int) *model.FeeEntry {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	e := &model.FeeEntry{
		ID:                     uuid.New().String(),
		ProviderID:             uuid.New().String(),
		SubmitterID:            owner.ID,
		IndustryKey:            "legal",
		PricingModel:           model.PricingFixed,
		FeeBreakdown:           map[string]any{"final_total_paid": 500.0},
		QuoteTransparencyScore: transparency,
		FinalTotalPaid:         500,
		EvidenceTier:           model.TierC,
		RiskFlags:              []string{model.RiskNoEvidence},
		Visibility:             model.VisibilityHidden,
		ModerationStatus:       model.ModerationUnreviewed,
		DisputeStatus:          model.DisputeNone,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		p := &model.Provider{
			ID: e.ProviderID, Name: "Seed & Co", IndustryKey: "legal",
			Status: model.ProviderApproved, CreatedAt: now,
		}
		if err := tx.InsertProvider(ctx, p); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, e)
	}))
	return e
}

func TestRequestUpload(t *testing.T) {
	svc, st := newTestService(t)

	grant, err := svc.RequestUpload(context.Background(), owner, "application/pdf", 4096)
	require.NoError(t, err)
	assert.NotEmpty(t, grant.EvidenceID)
	assert.Contains(t, grant.ObjectKey, "evidence/u-1/")
	assert.Contains(t, grant.ObjectKey, ".pdf")

	ev, err := st.GetEvidence(context.Background(), grant.EvidenceID)
	require.NoError(t, err)
	assert.Equal(t, model.EvidenceUploading, ev.State)
	assert.Empty(t, ev.EntryID, "not linked until confirmed")
}

func TestRequestUpload_RejectsMime(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RequestUpload(context.Background(), owner, "image/gif", 4096)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidationFailed, ae.Code)
	assert.Contains(t, ae.FieldErrors, "mime_type")
}

func TestRequestUpload_RejectsOversize(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RequestUpload(context.Background(), owner, "image/png", DefaultMaxSizeBytes+1)
	require.Error(t, err)
	ae, _ := apperr.As(err)
	assert.Contains(t, ae.FieldErrors, "size_bytes")

	_, err = svc.RequestUpload(context.Background(), owner, "image/png", 0)
	require.Error(t, err)
}

func TestConfirmUpload_RescoresEntry(t *testing.T) {
	svc, st := newTestService(t)
	e := seedEntry(t, st, 4)

	grant, err := svc.RequestUpload(context.Background(), owner, "image/jpeg", 1024)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmUpload(context.Background(), owner, grant.EvidenceID, e.ID))

	got, err := st.GetEntry(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierA, got.EvidenceTier, "evidence plus transparency 4 reaches tier A")
	assert.NotContains(t, got.RiskFlags, model.RiskNoEvidence, "the no-evidence flag clears on confirmation")

	records, err := st.ListAudit(context.Background(), store.AuditFilter{EntryID: e.ID, Action: model.AuditEntryRescored})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestConfirmUpload_Idempotent(t *testing.T) {
	svc, st := newTestService(t)
	e := seedEntry(t, st, 4)

	grant, err := svc.RequestUpload(context.Background(), owner, "image/jpeg", 1024)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmUpload(context.Background(), owner, grant.EvidenceID, e.ID))
	require.NoError(t, svc.ConfirmUpload(context.Background(), owner, grant.EvidenceID, e.ID))

	records, err := st.ListAudit(context.Background(), store.AuditFilter{EntryID: e.ID, Action: model.AuditEntryRescored})
	require.NoError(t, err)
	assert.Len(t, records, 1, "re-confirming does not rescore again")
}

func TestConfirmUpload_OwnershipEnforced(t *testing.T) {
	svc, st := newTestService(t)
	e := seedEntry(t, st, 3)

	grant, err := svc.RequestUpload(context.Background(), owner, "image/jpeg", 1024)
	require.NoError(t, err)

	stranger := auth.Actor{ID: "u-9", Role: auth.RoleUser}
	err = svc.ConfirmUpload(context.Background(), stranger, grant.EvidenceID, e.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthRequired))
}

func TestConfirmUpload_TierNeverDrops(t *testing.T) {
	svc, st := newTestService(t)
	e := seedEntry(t, st, 0)
	ctx := context.Background()

	// Entry already holds tier B from an earlier assessment.
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.UpdateEntryScoring(ctx, e.ID, model.TierB, e.RiskFlags, time.Now().UTC())
	}))

	grant, err := svc.RequestUpload(ctx, owner, "image/webp", 1024)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmUpload(ctx, owner, grant.EvidenceID, e.ID))

	got, err := st.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TierB, got.EvidenceTier,
		"computed tier B with zero transparency equals, never weakens, the held tier")
}

func TestFail(t *testing.T) {
	svc, st := newTestService(t)

	grant, err := svc.RequestUpload(context.Background(), owner, "application/pdf", 2048)
	require.NoError(t, err)
	require.NoError(t, svc.Fail(context.Background(), owner, grant.EvidenceID))

	ev, err := st.GetEvidence(context.Background(), grant.EvidenceID)
	require.NoError(t, err)
	assert.Equal(t, model.EvidenceFailed, ev.State)

	// Failed is terminal.
	err = svc.ConfirmUpload(context.Background(), owner, grant.EvidenceID, uuid.New().String())
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}
