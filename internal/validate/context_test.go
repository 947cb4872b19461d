package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Valid(t *testing.T) {
	cs := legalSchema(t)
	fe := Context(cs, map[string]any{
		"matter_type": "conveyancing",
		"complexity":  3,
	})
	assert.Nil(t, fe)
}

func TestContext_MissingRequired(t *testing.T) {
	cs := legalSchema(t)
	fe := Context(cs, map[string]any{"complexity": 2})
	require.NotNil(t, fe)
	assert.Equal(t, "required", fe["matter_type"])
}

func TestContext_NullRequired(t *testing.T) {
	cs := legalSchema(t)
	fe := Context(cs, map[string]any{"matter_type": nil})
	require.NotNil(t, fe)
	assert.Equal(t, "required", fe["matter_type"])
}

func TestContext_EnumViolation(t *testing.T) {
	cs := legalSchema(t)
	fe := Context(cs, map[string]any{"matter_type": "divorce"})
	require.NotNil(t, fe)
	assert.Contains(t, fe, "matter_type")
}

func TestContext_BoundsViolation(t *testing.T) {
	cs := legalSchema(t)
	fe := Context(cs, map[string]any{
		"matter_type": "litigation",
		"complexity":  9,
	})
	require.NotNil(t, fe)
	assert.Contains(t, fe, "complexity")
}

func TestContext_AdditionalPropertiesPermissive(t *testing.T) {
	cs := legalSchema(t)
	fe := Context(cs, map[string]any{
		"matter_type": "probate",
		"region":      "north-west",
	})
	assert.Nil(t, fe)
}

func TestFieldErrors_MergePrefix(t *testing.T) {
	outer := FieldErrors{}
	outer.Merge("fee_breakdown", FieldErrors{"hourly_rate": "required"})
	outer.Merge("context", FieldErrors{"matter_type": "required"})
	assert.Equal(t, "required", outer["fee_breakdown.hourly_rate"])
	assert.Equal(t, "required", outer["context.matter_type"])
}

func TestFieldErrors_FirstWins(t *testing.T) {
	fe := FieldErrors{}
	fe.Add("total", "first")
	fe.Add("total", "second")
	assert.Equal(t, "first", fe["total"])
}
