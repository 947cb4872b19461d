// Package scorer derives risk flags and an evidence tier from submission
// content and confirmed evidence.
package scorer

import (
	"math"

	"github.com/feelens/feelens-core/internal/model"
)

// Config holds the scoring thresholds.
type Config struct {
	// QuotePaidMismatchPct flags entries whose final paid total deviates
	// from the initial quote by more than this percentage.
	QuotePaidMismatchPct float64
	// MaxPlausibleTotal flags totals above this amount as outliers. Zero
	// disables the check; schemas can override it per industry.
	MaxPlausibleTotal float64
}

// DefaultConfig returns the platform-wide thresholds.
func DefaultConfig() Config {
	return Config{QuotePaidMismatchPct: 50}
}

// Input carries everything scoring depends on. Scoring is pure: the same
// input always produces the same result.
type Input struct {
	ConfirmedEvidence  int
	TransparencyScore  int // 1..5, 0 when the submitter did not answer
	InitialQuoteTotal  float64
	FinalTotalPaid     float64
	DuplicateSuspect   bool
	MaxPlausibleTotal  float64 // per-industry override, 0 = use config
	MismatchPctOverride float64 // per-industry override, 0 = use config
}

// Result is the derived trust assessment.
type Result struct {
	EvidenceTier model.EvidenceTier
	RiskFlags    []string
}

// Score derives the evidence tier and risk flags. The tier is monotonic:
// more evidence or higher transparency never lowers it. Flags are
// independent signals, unioned.
func Score(cfg Config, in Input) Result {
	res := Result{EvidenceTier: tier(in)}

	if in.ConfirmedEvidence == 0 {
		res.RiskFlags = append(res.RiskFlags, model.RiskNoEvidence)
	}

	mismatchPct := cfg.QuotePaidMismatchPct
	if in.MismatchPctOverride > 0 {
		mismatchPct = in.MismatchPctOverride
	}
	if mismatchPct > 0 && in.InitialQuoteTotal > 0 && in.FinalTotalPaid > 0 {
		delta := model.ComputeDeltaPct(in.InitialQuoteTotal, in.FinalTotalPaid)
		if math.Abs(delta) > mismatchPct {
			res.RiskFlags = append(res.RiskFlags, model.RiskQuotePaidMismatch)
		}
	}

	if in.DuplicateSuspect {
		res.RiskFlags = append(res.RiskFlags, model.RiskDuplicateSuspect)
	}

	maxTotal := cfg.MaxPlausibleTotal
	if in.MaxPlausibleTotal > 0 {
		maxTotal = in.MaxPlausibleTotal
	}
	if maxTotal > 0 && in.FinalTotalPaid > maxTotal {
		res.RiskFlags = append(res.RiskFlags, model.RiskOutlierTotal)
	}

	return res
}

// tier applies the evidence-tier policy:
// A needs confirmed evidence and transparency >= 4, B needs either confirmed
// evidence or transparency >= 3, C otherwise.
func tier(in Input) model.EvidenceTier {
	switch {
	case in.ConfirmedEvidence >= 1 && in.TransparencyScore >= 4:
		return model.TierA
	case in.ConfirmedEvidence >= 1 || in.TransparencyScore >= 3:
		return model.TierB
	default:
		return model.TierC
	}
}
