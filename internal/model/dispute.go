package model

import "time"

// DisputeStatus is the workflow state of a business dispute.
// pending → resolved, terminal.
type DisputeStatus string

const (
	DisputeStatusPending  DisputeStatus = "pending"
	DisputeStatusResolved DisputeStatus = "resolved"
)

// DisputeOutcome is the platform's verdict on a resolved dispute.
type DisputeOutcome string

const (
	OutcomeMaintained    DisputeOutcome = "maintained"
	OutcomeCorrected     DisputeOutcome = "corrected"
	OutcomeRemoved       DisputeOutcome = "removed"
	OutcomePartialHidden DisputeOutcome = "partial_hidden"
)

// ValidDisputeOutcome reports whether o is a known outcome.
func ValidDisputeOutcome(o DisputeOutcome) bool {
	switch o {
	case OutcomeMaintained, OutcomeCorrected, OutcomeRemoved, OutcomePartialHidden:
		return true
	}
	return false
}

// Dispute is a formal challenge by a listed business against an entry's
// accuracy. While it is pending the referenced entry's dispute_status is
// kept at pending in lockstep.
type Dispute struct {
	ID                 string         `json:"id"`
	EntryID            string         `json:"entry_id"`
	ProviderID         string         `json:"provider_id"`
	VerificationMethod string         `json:"provider_verification_method"`
	ProviderClaim      string         `json:"provider_claim"`
	Status             DisputeStatus  `json:"status"`
	Outcome            DisputeOutcome `json:"outcome,omitempty"`
	PlatformResponse   string         `json:"platform_response,omitempty"`
	ResolutionNote     string         `json:"resolution_note,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
}
