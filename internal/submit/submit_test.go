package submit

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
	"github.com/feelens/feelens-core/internal/lifecycle"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/ratelimit"
	"github.com/feelens/feelens-core/internal/schema"
	"github.com/feelens/feelens-core/internal/scorer"
	"github.com/feelens/feelens-core/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var submitter = auth.Actor{ID: "u-1", Role: auth.RoleUser}

func newTestService(t *testing.T, rl ratelimit.Config) (*Service, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	reg := schema.NewRegistry(st, 0)
	require.NoError(t, reg.Put(ctx, legalSchema(), true))

	policy := lifecycle.NewIndustryListPolicy([]string{"legal"})
	svc := NewService(st, reg, ratelimit.New(rl), policy, scorer.DefaultConfig())
	return svc, st
}

func legalSchema() *model.IndustrySchema {
	no := false
	min := 0.0
	return &model.IndustrySchema{
		IndustryKey: "legal",
		DisplayName: "Legal services",
		FeeBreakdownSchema: model.ObjectSchema{
			Type:     "object",
			Required: []string{"final_total_paid"},
			Properties: map[string]model.SchemaProperty{
				"final_total_paid":    {Type: "number", Minimum: &min},
				"initial_quote_total": {Type: "number", Minimum: &min},
				"fixed_fee_amount":    {Type: "number", Minimum: &min},
				"hourly_rate":         {Type: "number", Minimum: &min},
				"estimated_hours":     {Type: "number", Minimum: &min},
			},
			AdditionalProperties: &no,
		},
		ContextSchema: model.ObjectSchema{
			Type:       "object",
			Properties: map[string]model.SchemaProperty{"matter_type": {Type: "string"}},
		},
		ValidationRules: model.ValidationRules{
			PricingModelRequiredFields: map[string][]string{
				"fixed":  {"fixed_fee_amount"},
				"hourly": {"hourly_rate", "estimated_hours"},
			},
			MaxPlausibleTotal: 100000,
		},
	}
}

func seedProvider(t *testing.T, st store.Store, status model.ProviderStatus) string {
	t.Helper()
	ctx := context.Background()
	id := uuid.New().String()
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertProvider(ctx, &model.Provider{
			ID: id, Name: "Harvey & Marlowe", IndustryKey: "legal",
			Status: status, CreatedAt: time.Now().UTC(),
		})
	}))
	return id
}

func fixedFeeRequest(providerID string, finalPaid float64) Request {
	return Request{
		ProviderID:   providerID,
		IndustryKey:  "legal",
		PricingModel: "fixed",
		FeeBreakdown: map[string]any{
			"fixed_fee_amount": finalPaid,
			"final_total_paid": finalPaid,
		},
		QuoteTransparencyScore: 4,
	}
}

func TestSubmit(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())
	providerID := seedProvider(t, st, model.ProviderApproved)

	resp, err := svc.Submit(context.Background(), submitter, fixedFeeRequest(providerID, 1200))
	require.NoError(t, err)
	assert.Equal(t, string(model.VisibilityPublic), resp.Visibility,
		"clean tier B entry in an auto-publish industry goes straight out")
	assert.Equal(t, string(model.TierB), resp.EvidenceTier)
	assert.Equal(t, []string{model.RiskNoEvidence}, resp.RiskFlags)
	assert.False(t, resp.RequiresModeration)

	got, err := st.GetEntry(context.Background(), resp.EntryID)
	require.NoError(t, err)
	assert.Equal(t, providerID, got.ProviderID)
	assert.Equal(t, submitter.ID, got.SubmitterID)
	assert.Equal(t, 1200.0, got.FinalTotalPaid)
	assert.Equal(t, model.DisputeNone, got.DisputeStatus)

	records, err := st.ListAudit(context.Background(), store.AuditFilter{EntryID: resp.EntryID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.AuditEntryCreated, records[0].Action)
}

func TestSubmit_SchemaValidationKeyedByField(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())
	providerID := seedProvider(t, st, model.ProviderApproved)

	req := fixedFeeRequest(providerID, 1200)
	delete(req.FeeBreakdown, "fixed_fee_amount")

	_, err := svc.Submit(context.Background(), submitter, req)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidationFailed, ae.Code)
	assert.Contains(t, ae.FieldErrors, "fee_breakdown.fixed_fee_amount")
}

func TestSubmit_ProviderGates(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())

	_, err := svc.Submit(context.Background(), submitter, fixedFeeRequest(uuid.New().String(), 500))
	assert.True(t, apperr.IsCode(err, apperr.CodeProviderNotFound))

	pendingID := seedProvider(t, st, model.ProviderPending)
	_, err = svc.Submit(context.Background(), submitter, fixedFeeRequest(pendingID, 500))
	assert.True(t, apperr.IsCode(err, apperr.CodeProviderNotApproved))
}

func TestSubmit_SchemaNotFound(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())
	providerID := seedProvider(t, st, model.ProviderApproved)

	req := fixedFeeRequest(providerID, 500)
	req.IndustryKey = "plumbing"
	_, err := svc.Submit(context.Background(), submitter, req)
	assert.True(t, apperr.IsCode(err, apperr.CodeSchemaNotFound))
}

func TestSubmit_DailyCapCreatesNoEntry(t *testing.T) {
	cfg := ratelimit.DefaultConfig()
	cfg.DailyCap = 1
	svc, st := newTestService(t, cfg)
	providerID := seedProvider(t, st, model.ProviderApproved)

	_, err := svc.Submit(context.Background(), submitter, fixedFeeRequest(providerID, 100))
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), submitter, fixedFeeRequest(providerID, 200))
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeRateLimitDaily, ae.Code)
	assert.Greater(t, ae.RetryAfter, time.Duration(0))

	times, err := st.SubmissionTimesSince(context.Background(), submitter.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, times, 1, "the rejected submission must not be persisted")
}

func TestSubmit_DuplicateSuspectFlagged(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())
	providerID := seedProvider(t, st, model.ProviderApproved)

	_, err := svc.Submit(context.Background(), submitter, fixedFeeRequest(providerID, 750))
	require.NoError(t, err)

	resp, err := svc.Submit(context.Background(), submitter, fixedFeeRequest(providerID, 750))
	require.NoError(t, err)
	assert.Contains(t, resp.RiskFlags, model.RiskDuplicateSuspect,
		"same submitter, provider and total inside the window")
	assert.Equal(t, string(model.VisibilityFlagged), resp.Visibility)
	assert.True(t, resp.RequiresModeration)
}

func TestSubmit_QuotePaidMismatchFlagged(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())
	providerID := seedProvider(t, st, model.ProviderApproved)

	req := fixedFeeRequest(providerID, 2000)
	req.FeeBreakdown["initial_quote_total"] = 1000.0

	resp, err := svc.Submit(context.Background(), submitter, req)
	require.NoError(t, err)
	assert.Contains(t, resp.RiskFlags, model.RiskQuotePaidMismatch)
	assert.Equal(t, string(model.VisibilityFlagged), resp.Visibility)

	got, err := st.GetEntry(context.Background(), resp.EntryID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.DeltaPct)
}

func TestSubmit_OutlierTotalUsesSchemaCeiling(t *testing.T) {
	svc, st := newTestService(t, ratelimit.DefaultConfig())
	providerID := seedProvider(t, st, model.ProviderApproved)

	resp, err := svc.Submit(context.Background(), submitter, fixedFeeRequest(providerID, 250000))
	require.NoError(t, err)
	assert.Contains(t, resp.RiskFlags, model.RiskOutlierTotal)
}

func TestSubmit_ShapeErrors(t *testing.T) {
	svc, _ := newTestService(t, ratelimit.DefaultConfig())

	_, err := svc.Submit(context.Background(), submitter, Request{
		IndustryKey:  "legal",
		PricingModel: "barter",
		FeeBreakdown: map[string]any{},
	})
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Contains(t, ae.FieldErrors, "provider_id")
	assert.Contains(t, ae.FieldErrors, "pricing_model")
}

func TestSubmit_RequiresAuth(t *testing.T) {
	svc, _ := newTestService(t, ratelimit.DefaultConfig())

	_, err := svc.Submit(context.Background(), auth.Actor{}, fixedFeeRequest("p-1", 100))
	assert.True(t, apperr.IsCode(err, apperr.CodeAuthRequired))
}
