// Package store defines the persistence interface for the platform core and
// its postgres and sqlite implementations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/feelens/feelens-core/internal/model"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrSchemaInactive is returned when a schema row matches the industry
	// key but no version is active. Distinguished from ErrNotFound so
	// callers can give different guidance.
	ErrSchemaInactive = eris.New("store: schema inactive")
	// ErrDuplicate is returned when a uniqueness constraint is violated.
	ErrDuplicate = eris.New("store: duplicate")
)

// AuditFilter narrows audit trail reads.
type AuditFilter struct {
	EntryID   string
	ReportID  string
	DisputeID string
	Action    string
	Limit     int
}

// Reader holds the read-side operations. Available both on the Store itself
// and inside a transaction, so engines read current state and write a
// function of it under one isolation boundary.
type Reader interface {
	GetActiveSchema(ctx context.Context, industryKey string) (*model.IndustrySchema, error)
	ActiveSchemaVersion(ctx context.Context, industryKey string) (int, error)
	ListSchemas(ctx context.Context, industryKey string) ([]model.IndustrySchema, error)

	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	GetEntry(ctx context.Context, id string) (*model.FeeEntry, error)
	GetReport(ctx context.Context, id string) (*model.EntryReport, error)
	GetDispute(ctx context.Context, id string) (*model.Dispute, error)
	GetPendingDisputeByEntry(ctx context.Context, entryID string) (*model.Dispute, error)
	GetEvidence(ctx context.Context, id string) (*model.Evidence, error)
	ListConfirmedEvidence(ctx context.Context, entryID string) ([]model.Evidence, error)
	ListEntryIDs(ctx context.Context) ([]string, error)

	// SubmissionTimesSince returns creation times of the submitter's entries
	// newer than since, oldest first.
	SubmissionTimesSince(ctx context.Context, submitterID string, since time.Time) ([]time.Time, error)
	// ProviderSubmissionTimesSince is the per-(submitter, provider) variant.
	ProviderSubmissionTimesSince(ctx context.Context, submitterID, providerID string, since time.Time) ([]time.Time, error)
	// CountSimilarEntries counts prior entries by the same submitter against
	// the same provider with the same final total, for duplicate detection.
	CountSimilarEntries(ctx context.Context, submitterID, providerID string, finalTotal float64, since time.Time) (int, error)

	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditRecord, error)
}

// Tx holds the write-side operations. Only reachable through WithTx, so
// every mutation commits atomically with the reads that justified it.
type Tx interface {
	Reader

	InsertSchema(ctx context.Context, s *model.IndustrySchema) error
	ActivateSchema(ctx context.Context, industryKey string, version int) error

	InsertProvider(ctx context.Context, p *model.Provider) error
	UpdateProviderStatus(ctx context.Context, id string, status model.ProviderStatus) error

	InsertEntry(ctx context.Context, e *model.FeeEntry) error
	UpdateEntryModeration(ctx context.Context, id string, visibility model.Visibility, status model.ModerationStatus, at time.Time) error
	UpdateEntryVisibility(ctx context.Context, id string, visibility model.Visibility, at time.Time) error
	UpdateEntryDisputeStatus(ctx context.Context, id string, status model.DisputeStanding, at time.Time) error
	UpdateEntryScoring(ctx context.Context, id string, tier model.EvidenceTier, riskFlags []string, at time.Time) error

	InsertReport(ctx context.Context, r *model.EntryReport) error
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, resolutionNote string, at time.Time) error

	InsertDispute(ctx context.Context, d *model.Dispute) error
	ResolveDispute(ctx context.Context, id string, outcome model.DisputeOutcome, platformResponse, note string, at time.Time) error

	InsertEvidence(ctx context.Context, ev *model.Evidence) error
	UpdateEvidenceState(ctx context.Context, id string, state model.EvidenceState, entryID string, at time.Time) error

	AppendAudit(ctx context.Context, rec *model.AuditRecord) error
}

// Store is the persistence interface. All state-mutating operations run
// inside WithTx under serializable-or-equivalent isolation.
type Store interface {
	Reader

	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
