package model

import "time"

// Audit action names. One row is appended per mutating call.
const (
	AuditEntryCreated    = "entry.created"
	AuditEntryApproved   = "entry.approved"
	AuditEntryRejected   = "entry.rejected"
	AuditEntryHidden     = "entry.hidden"
	AuditEntryRescored   = "entry.rescored"
	AuditReportCreated   = "report.created"
	AuditReportTriaged   = "report.triaged"
	AuditReportResolved  = "report.resolved"
	AuditReportDismissed = "report.dismissed"
	AuditDisputeOpened   = "dispute.opened"
	AuditDisputeResolved = "dispute.resolved"
)

// AuditRecord is one append-only row of the audit trail. Rows are written in
// the same transaction as the mutation they describe and are never updated
// or deleted.
type AuditRecord struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	EntryID   string    `json:"entry_id,omitempty"`
	ReportID  string    `json:"report_id,omitempty"`
	DisputeID string    `json:"dispute_id,omitempty"`
	OldState  string    `json:"old_state,omitempty"`
	NewState  string    `json:"new_state,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
