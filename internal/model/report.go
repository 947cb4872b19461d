package model

import "time"

// ReportStatus is the workflow state of a community report.
// open → {triaged, resolved, dismissed}; triaged → {resolved, dismissed};
// resolved and dismissed are terminal.
type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportTriaged   ReportStatus = "triaged"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Terminal reports whether no further transitions are legal from s.
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

// EntryReport is a complaint by any user about an entry. Its lifecycle is
// tracked independently of the entry's own state.
type EntryReport struct {
	ID             string       `json:"id"`
	EntryID        string       `json:"entry_id"`
	ReporterID     string       `json:"reporter_id"`
	ReasonCode     string       `json:"reason_code"`
	Note           string       `json:"note,omitempty"`
	Status         ReportStatus `json:"status"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}
