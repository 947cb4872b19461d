package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDeltaPct(t *testing.T) {
	assert.InDelta(t, 50.0, ComputeDeltaPct(1000, 1500), 1e-9)
	assert.InDelta(t, -25.0, ComputeDeltaPct(1000, 750), 1e-9)
	assert.Zero(t, ComputeDeltaPct(0, 1500))
	assert.Zero(t, ComputeDeltaPct(1000, 0))
	assert.Zero(t, ComputeDeltaPct(-10, 100))
}

func TestValidPricingModel(t *testing.T) {
	for _, m := range []PricingModel{
		PricingHourly, PricingFixed, PricingCapped, PricingRetainer,
		PricingContingencyPct, PricingUplift, PricingBlended, PricingOther,
	} {
		assert.True(t, ValidPricingModel(m), string(m))
	}
	assert.False(t, ValidPricingModel("subscription"))
	assert.False(t, ValidPricingModel(""))
}

func TestHasRiskFlag(t *testing.T) {
	e := FeeEntry{RiskFlags: []string{RiskNoEvidence, RiskOutlierTotal}}
	assert.True(t, e.HasRiskFlag(RiskNoEvidence))
	assert.False(t, e.HasRiskFlag(RiskDuplicateSuspect))
}

func TestReportStatusTerminal(t *testing.T) {
	assert.False(t, ReportOpen.Terminal())
	assert.False(t, ReportTriaged.Terminal())
	assert.True(t, ReportResolved.Terminal())
	assert.True(t, ReportDismissed.Terminal())
}

func TestRequiredFieldsFor(t *testing.T) {
	s := IndustrySchema{
		FeeBreakdownSchema: ObjectSchema{
			Required: []string{"final_total_paid", "pricing_model"},
		},
		ValidationRules: ValidationRules{
			PricingModelRequiredFields: map[string][]string{
				"hourly": {"hourly_rate", "estimated_hours", "final_total_paid"},
			},
		},
	}

	got := s.RequiredFieldsFor(PricingHourly)
	assert.Equal(t, []string{"final_total_paid", "pricing_model", "hourly_rate", "estimated_hours"}, got,
		"per-model fields merge after unconditional ones, deduplicated")

	got = s.RequiredFieldsFor(PricingOther)
	assert.Equal(t, []string{"final_total_paid", "pricing_model"}, got)
}
