package model

import (
	"time"
)

// PricingModel is the billing structure used for a submission. It determines
// which fee-breakdown fields are mandatory.
type PricingModel string

const (
	PricingHourly         PricingModel = "hourly"
	PricingFixed          PricingModel = "fixed"
	PricingCapped         PricingModel = "capped"
	PricingRetainer       PricingModel = "retainer"
	PricingContingencyPct PricingModel = "contingency_pct"
	PricingUplift         PricingModel = "uplift"
	PricingBlended        PricingModel = "blended"
	PricingOther          PricingModel = "other"
)

// ValidPricingModel reports whether m is one of the closed set of models.
func ValidPricingModel(m PricingModel) bool {
	switch m {
	case PricingHourly, PricingFixed, PricingCapped, PricingRetainer,
		PricingContingencyPct, PricingUplift, PricingBlended, PricingOther:
		return true
	}
	return false
}

// Visibility controls whether an entry is shown publicly, suppressed, or held.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityHidden  Visibility = "hidden"
	VisibilityFlagged Visibility = "flagged"
)

// ModerationStatus is the review-workflow state of an entry.
type ModerationStatus string

const (
	ModerationUnreviewed ModerationStatus = "unreviewed"
	ModerationFlagged    ModerationStatus = "flagged"
	ModerationApproved   ModerationStatus = "approved"
	ModerationRejected   ModerationStatus = "rejected"
)

// DisputeStanding tracks whether the listed business has an open challenge
// against the entry.
type DisputeStanding string

const (
	DisputeNone     DisputeStanding = "none"
	DisputePending  DisputeStanding = "pending"
	DisputeResolved DisputeStanding = "resolved"
)

// EvidenceTier is the coarse trust rating on how well-substantiated an
// entry's figures are. A is strongest.
type EvidenceTier string

const (
	TierA EvidenceTier = "A"
	TierB EvidenceTier = "B"
	TierC EvidenceTier = "C"
)

// Risk flags are independent boolean signals suggesting a submission may be
// unreliable. They are unioned, never mutually suppressing.
const (
	RiskNoEvidence        = "no_evidence"
	RiskQuotePaidMismatch = "quote_paid_mismatch"
	RiskDuplicateSuspect  = "duplicate_suspect"
	RiskOutlierTotal      = "outlier_total"
)

// FeeEntry is a single user-submitted record of what they paid a provider.
type FeeEntry struct {
	ID           string       `json:"id"`
	ProviderID   string       `json:"provider_id"`
	SubmitterID  string       `json:"submitter_id"`
	IndustryKey  string       `json:"industry_key"`
	ServiceKey   string       `json:"service_key,omitempty"`
	PricingModel PricingModel `json:"pricing_model"`

	FeeBreakdown map[string]any `json:"fee_breakdown"`
	Context      map[string]any `json:"context,omitempty"`
	HiddenItems  []string       `json:"hidden_items,omitempty"`

	QuoteTransparencyScore int `json:"quote_transparency_score,omitempty"` // 1..5, 0 = not answered

	InitialQuoteTotal float64 `json:"initial_quote_total,omitempty"`
	FinalTotalPaid    float64 `json:"final_total_paid,omitempty"`
	DeltaPct          float64 `json:"delta_pct,omitempty"`

	EvidenceTier EvidenceTier `json:"evidence_tier"`
	RiskFlags    []string     `json:"risk_flags,omitempty"`

	Visibility       Visibility       `json:"visibility"`
	ModerationStatus ModerationStatus `json:"moderation_status"`
	DisputeStatus    DisputeStanding  `json:"dispute_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRiskFlag reports whether the entry carries the named flag.
func (e *FeeEntry) HasRiskFlag(flag string) bool {
	for _, f := range e.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}

// ComputeDeltaPct returns the percentage difference between the final total
// paid and the initial quote. Zero when either figure is missing.
func ComputeDeltaPct(initialQuote, finalPaid float64) float64 {
	if initialQuote <= 0 || finalPaid <= 0 {
		return 0
	}
	return (finalPaid - initialQuote) / initialQuote * 100
}
