package schema

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestRegistry(t *testing.T) (*Registry, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return NewRegistry(st, time.Minute), st
}

func tradesSchema() *model.IndustrySchema {
	min := 0.0
	return &model.IndustrySchema{
		IndustryKey: "trades",
		DisplayName: "Trades",
		FeeBreakdownSchema: model.ObjectSchema{
			Type: "object",
			Properties: map[string]model.SchemaProperty{
				"final_total_paid": {Type: "number", Minimum: &min},
				"callout_fee":      {Type: "number", Minimum: &min},
			},
		},
		ContextSchema: model.ObjectSchema{
			Type:       "object",
			Properties: map[string]model.SchemaProperty{"job_type": {Type: "string"}},
		},
	}
}

func TestPut_AssignsSequentialVersions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first := tradesSchema()
	require.NoError(t, reg.Put(ctx, first, true))
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.IsActive)

	second := tradesSchema()
	require.NoError(t, reg.Put(ctx, second, false))
	assert.Equal(t, 2, second.Version)
	assert.False(t, second.IsActive)

	active, err := reg.Active(ctx, "trades")
	require.NoError(t, err)
	assert.Equal(t, 1, active.Version, "inactive rows never shadow the active version")
}

func TestPut_RejectsBrokenSchema(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	s := tradesSchema()
	s.FeeBreakdownSchema.Properties["callout_fee"] = model.SchemaProperty{Type: "not-a-type"}
	require.Error(t, reg.Put(ctx, s, true))

	rows, err := st.ListSchemas(ctx, "trades")
	require.NoError(t, err)
	assert.Empty(t, rows, "a schema that fails to compile never lands in the registry")
}

func TestActivate_SwitchesActiveVersion(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Put(ctx, tradesSchema(), true))
	require.NoError(t, reg.Put(ctx, tradesSchema(), false))

	require.NoError(t, reg.Activate(ctx, "trades", 2))

	active, err := reg.Active(ctx, "trades")
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)

	err = reg.Activate(ctx, "trades", 9)
	assert.True(t, apperr.IsCode(err, apperr.CodeSchemaNotFound))
}

func TestActive_CachedCopyRevalidatedByVersion(t *testing.T) {
	reg, st := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Put(ctx, tradesSchema(), true))
	require.NoError(t, reg.Put(ctx, tradesSchema(), false))

	warm, err := reg.Active(ctx, "trades")
	require.NoError(t, err)
	require.Equal(t, 1, warm.Version)

	// Activation through the store directly, bypassing the registry's own
	// invalidation, the way a second process would.
	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.ActivateSchema(ctx, "trades", 2)
	}))

	fresh, err := reg.Active(ctx, "trades")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Version, "a cached copy must never outlive its active version")
}

func TestActive_MissingIndustry(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Active(context.Background(), "falconry")
	assert.True(t, apperr.IsCode(err, apperr.CodeSchemaNotFound))
}

func TestActive_InactiveOnly(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, reg.Put(ctx, tradesSchema(), false))

	_, err := reg.Active(ctx, "trades")
	assert.True(t, apperr.IsCode(err, apperr.CodeSchemaInactive))
}
