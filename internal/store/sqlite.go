package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/feelens/feelens-core/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development and tests; sqlite's single-writer model gives the required
// serializable-equivalent isolation.
type SQLiteStore struct {
	sqliteReader
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection avoids SQLITE_BUSY between the pool's connections.
	sdb.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{sqliteReader: sqliteReader{q: sdb}, db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS industry_schemas (
	id                   TEXT PRIMARY KEY,
	industry_key         TEXT NOT NULL,
	display_name         TEXT NOT NULL DEFAULT '',
	version              INTEGER NOT NULL,
	fee_breakdown_schema TEXT NOT NULL,
	context_schema       TEXT NOT NULL,
	validation_rules     TEXT NOT NULL,
	is_active            INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL,
	UNIQUE (industry_key, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_industry_schemas_active
	ON industry_schemas(industry_key) WHERE is_active;

CREATE TABLE IF NOT EXISTS providers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	industry_key TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS fee_entries (
	id                       TEXT PRIMARY KEY,
	provider_id              TEXT NOT NULL REFERENCES providers(id),
	submitter_id             TEXT NOT NULL,
	industry_key             TEXT NOT NULL,
	service_key              TEXT NOT NULL DEFAULT '',
	pricing_model            TEXT NOT NULL,
	fee_breakdown            TEXT NOT NULL,
	context                  TEXT NOT NULL DEFAULT '{}',
	hidden_items             TEXT NOT NULL DEFAULT '[]',
	quote_transparency_score INTEGER NOT NULL DEFAULT 0,
	initial_quote_total      REAL NOT NULL DEFAULT 0,
	final_total_paid         REAL NOT NULL DEFAULT 0,
	delta_pct                REAL NOT NULL DEFAULT 0,
	evidence_tier            TEXT NOT NULL DEFAULT 'C',
	risk_flags               TEXT NOT NULL DEFAULT '[]',
	visibility               TEXT NOT NULL DEFAULT 'hidden',
	moderation_status        TEXT NOT NULL DEFAULT 'unreviewed',
	dispute_status           TEXT NOT NULL DEFAULT 'none',
	created_at               DATETIME NOT NULL,
	updated_at               DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fee_entries_submitter_created
	ON fee_entries(submitter_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fee_entries_provider_created
	ON fee_entries(provider_id, created_at DESC);

CREATE TABLE IF NOT EXISTS entry_reports (
	id              TEXT PRIMARY KEY,
	entry_id        TEXT NOT NULL REFERENCES fee_entries(id),
	reporter_id     TEXT NOT NULL,
	reason_code     TEXT NOT NULL,
	note            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'open',
	resolution_note TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entry_reports_entry ON entry_reports(entry_id);

CREATE TABLE IF NOT EXISTS disputes (
	id                  TEXT PRIMARY KEY,
	entry_id            TEXT NOT NULL REFERENCES fee_entries(id),
	provider_id         TEXT NOT NULL,
	verification_method TEXT NOT NULL,
	provider_claim      TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'pending',
	outcome             TEXT NOT NULL DEFAULT '',
	platform_response   TEXT NOT NULL DEFAULT '',
	resolution_note     TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	resolved_at         DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_pending_entry
	ON disputes(entry_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS evidence (
	id         TEXT PRIMARY KEY,
	entry_id   TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL,
	object_key TEXT NOT NULL,
	mime_type  TEXT NOT NULL,
	size_bytes INTEGER NOT NULL,
	state      TEXT NOT NULL DEFAULT 'idle',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_entry_state ON evidence(entry_id, state);

CREATE TABLE IF NOT EXISTS audit_log (
	id         TEXT PRIMARY KEY,
	actor_id   TEXT NOT NULL,
	actor_role TEXT NOT NULL,
	action     TEXT NOT NULL,
	entry_id   TEXT NOT NULL DEFAULT '',
	report_id  TEXT NOT NULL DEFAULT '',
	dispute_id TEXT NOT NULL DEFAULT '',
	old_state  TEXT NOT NULL DEFAULT '',
	new_state  TEXT NOT NULL DEFAULT '',
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entry ON audit_log(entry_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

// WithTx runs fn inside a transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	stx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer stx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTx{sqliteReader: sqliteReader{q: stx}, tx: stx}); err != nil {
		return err
	}
	if err := stx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

// sqliteQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteReader struct {
	q sqliteQuerier
}

type sqliteTx struct {
	sqliteReader
	tx *sql.Tx
}

// rowScanner abstracts over *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteWrapErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return eris.Wrap(err, msg)
}

func rowsAffectedOrNotFound(res sql.Result, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, msg)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Schemas ---

func scanSQLiteSchema(row rowScanner) (*model.IndustrySchema, error) {
	var s model.IndustrySchema
	var feeJSON, ctxJSON, rulesJSON string
	if err := row.Scan(&s.ID, &s.IndustryKey, &s.DisplayName, &s.Version,
		&feeJSON, &ctxJSON, &rulesJSON, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(feeJSON), &s.FeeBreakdownSchema); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fee breakdown schema")
	}
	if err := json.Unmarshal([]byte(ctxJSON), &s.ContextSchema); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal context schema")
	}
	if err := json.Unmarshal([]byte(rulesJSON), &s.ValidationRules); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal validation rules")
	}
	return &s, nil
}

func (r sqliteReader) GetActiveSchema(ctx context.Context, industryKey string) (*model.IndustrySchema, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+selectSchemaCols+` FROM industry_schemas
		 WHERE industry_key = ? AND is_active LIMIT 1`, industryKey)
	s, err := scanSQLiteSchema(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, sqliteWrapErr(err, "sqlite: get active schema")
	}

	var n int
	if err := r.q.QueryRowContext(ctx,
		`SELECT count(*) FROM industry_schemas WHERE industry_key = ?`, industryKey,
	).Scan(&n); err != nil {
		return nil, sqliteWrapErr(err, "sqlite: count schemas")
	}
	if n > 0 {
		return nil, ErrSchemaInactive
	}
	return nil, ErrNotFound
}

func (r sqliteReader) ActiveSchemaVersion(ctx context.Context, industryKey string) (int, error) {
	var v int
	err := r.q.QueryRowContext(ctx,
		`SELECT version FROM industry_schemas WHERE industry_key = ? AND is_active LIMIT 1`,
		industryKey,
	).Scan(&v)
	if err != nil {
		return 0, sqliteWrapErr(err, "sqlite: active schema version")
	}
	return v, nil
}

func (r sqliteReader) ListSchemas(ctx context.Context, industryKey string) ([]model.IndustrySchema, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+selectSchemaCols+` FROM industry_schemas
		 WHERE (? = '' OR industry_key = ?)
		 ORDER BY industry_key, version`, industryKey, industryKey)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list schemas")
	}
	defer rows.Close()

	var out []model.IndustrySchema
	for rows.Next() {
		s, err := scanSQLiteSchema(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan schema")
		}
		out = append(out, *s)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list schemas rows")
}

func (t *sqliteTx) InsertSchema(ctx context.Context, s *model.IndustrySchema) error {
	feeJSON, err := json.Marshal(s.FeeBreakdownSchema)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fee breakdown schema")
	}
	ctxJSON, err := json.Marshal(s.ContextSchema)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal context schema")
	}
	rulesJSON, err := json.Marshal(s.ValidationRules)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal validation rules")
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO industry_schemas
		 (id, industry_key, display_name, version, fee_breakdown_schema,
		  context_schema, validation_rules, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.IndustryKey, s.DisplayName, s.Version,
		string(feeJSON), string(ctxJSON), string(rulesJSON), s.IsActive, s.CreatedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: insert schema")
	}
	return nil
}

func (t *sqliteTx) ActivateSchema(ctx context.Context, industryKey string, version int) error {
	if _, err := t.tx.ExecContext(ctx,
		`UPDATE industry_schemas SET is_active = 0
		 WHERE industry_key = ? AND is_active`, industryKey); err != nil {
		return sqliteWrapErr(err, "sqlite: deactivate schemas")
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE industry_schemas SET is_active = 1
		 WHERE industry_key = ? AND version = ?`, industryKey, version)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: activate schema")
	}
	return rowsAffectedOrNotFound(res, "sqlite: activate schema")
}

// --- Providers ---

func (r sqliteReader) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	var p model.Provider
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, industry_key, status, created_at FROM providers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.IndustryKey, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, sqliteWrapErr(err, "sqlite: get provider")
	}
	return &p, nil
}

func (t *sqliteTx) InsertProvider(ctx context.Context, p *model.Provider) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO providers (id, name, industry_key, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.IndustryKey, p.Status, p.CreatedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: insert provider")
	}
	return nil
}

func (t *sqliteTx) UpdateProviderStatus(ctx context.Context, id string, status model.ProviderStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE providers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update provider status")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update provider status")
}

// --- Entries ---

func scanSQLiteEntry(row rowScanner) (*model.FeeEntry, error) {
	var e model.FeeEntry
	var feeJSON, ctxJSON, hiddenJSON, flagsJSON string
	if err := row.Scan(&e.ID, &e.ProviderID, &e.SubmitterID, &e.IndustryKey,
		&e.ServiceKey, &e.PricingModel, &feeJSON, &ctxJSON, &hiddenJSON,
		&e.QuoteTransparencyScore, &e.InitialQuoteTotal, &e.FinalTotalPaid,
		&e.DeltaPct, &e.EvidenceTier, &flagsJSON, &e.Visibility,
		&e.ModerationStatus, &e.DisputeStatus, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(feeJSON), &e.FeeBreakdown); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal fee breakdown")
	}
	if err := json.Unmarshal([]byte(ctxJSON), &e.Context); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal context")
	}
	if err := json.Unmarshal([]byte(hiddenJSON), &e.HiddenItems); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal hidden items")
	}
	if err := json.Unmarshal([]byte(flagsJSON), &e.RiskFlags); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal risk flags")
	}
	return &e, nil
}

func (r sqliteReader) GetEntry(ctx context.Context, id string) (*model.FeeEntry, error) {
	e, err := scanSQLiteEntry(r.q.QueryRowContext(ctx,
		`SELECT `+selectEntryCols+` FROM fee_entries WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteWrapErr(err, "sqlite: get entry")
	}
	return e, nil
}

func (r sqliteReader) ListEntryIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM fee_entries ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entry ids")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entry id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list entry ids rows")
}

func (t *sqliteTx) InsertEntry(ctx context.Context, e *model.FeeEntry) error {
	feeJSON, ctxJSON, hiddenJSON, flagsJSON, err := marshalEntryJSON(e)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO fee_entries (`+selectEntryCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProviderID, e.SubmitterID, e.IndustryKey, e.ServiceKey,
		e.PricingModel, string(feeJSON), string(ctxJSON), string(hiddenJSON),
		e.QuoteTransparencyScore, e.InitialQuoteTotal, e.FinalTotalPaid,
		e.DeltaPct, e.EvidenceTier, string(flagsJSON), e.Visibility,
		e.ModerationStatus, e.DisputeStatus, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: insert entry")
	}
	return nil
}

func (t *sqliteTx) UpdateEntryModeration(ctx context.Context, id string, visibility model.Visibility, status model.ModerationStatus, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE fee_entries SET visibility = ?, moderation_status = ?, updated_at = ? WHERE id = ?`,
		visibility, status, at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update entry moderation")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update entry moderation")
}

func (t *sqliteTx) UpdateEntryVisibility(ctx context.Context, id string, visibility model.Visibility, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE fee_entries SET visibility = ?, updated_at = ? WHERE id = ?`,
		visibility, at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update entry visibility")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update entry visibility")
}

func (t *sqliteTx) UpdateEntryDisputeStatus(ctx context.Context, id string, status model.DisputeStanding, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE fee_entries SET dispute_status = ?, updated_at = ? WHERE id = ?`,
		status, at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update entry dispute status")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update entry dispute status")
}

func (t *sqliteTx) UpdateEntryScoring(ctx context.Context, id string, tier model.EvidenceTier, riskFlags []string, at time.Time) error {
	flagsJSON, err := json.Marshal(orEmptySlice(riskFlags))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal risk flags")
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE fee_entries SET evidence_tier = ?, risk_flags = ?, updated_at = ? WHERE id = ?`,
		tier, string(flagsJSON), at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update entry scoring")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update entry scoring")
}

// --- Rate-limit reads ---

func (r sqliteReader) SubmissionTimesSince(ctx context.Context, submitterID string, since time.Time) ([]time.Time, error) {
	return r.submissionTimes(ctx,
		`SELECT created_at FROM fee_entries
		 WHERE submitter_id = ? AND created_at > ? ORDER BY created_at`,
		submitterID, since)
}

func (r sqliteReader) ProviderSubmissionTimesSince(ctx context.Context, submitterID, providerID string, since time.Time) ([]time.Time, error) {
	return r.submissionTimes(ctx,
		`SELECT created_at FROM fee_entries
		 WHERE submitter_id = ? AND provider_id = ? AND created_at > ? ORDER BY created_at`,
		submitterID, providerID, since)
}

func (r sqliteReader) submissionTimes(ctx context.Context, query string, args ...any) ([]time.Time, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: submission times")
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan submission time")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: submission times rows")
}

func (r sqliteReader) CountSimilarEntries(ctx context.Context, submitterID, providerID string, finalTotal float64, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT count(*) FROM fee_entries
		 WHERE submitter_id = ? AND provider_id = ?
		   AND final_total_paid = ? AND created_at > ?`,
		submitterID, providerID, finalTotal, since,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: count similar entries")
	}
	return n, nil
}

// --- Reports ---

func (r sqliteReader) GetReport(ctx context.Context, id string) (*model.EntryReport, error) {
	var rep model.EntryReport
	err := r.q.QueryRowContext(ctx,
		`SELECT `+selectReportCols+` FROM entry_reports WHERE id = ?`, id,
	).Scan(&rep.ID, &rep.EntryID, &rep.ReporterID, &rep.ReasonCode, &rep.Note,
		&rep.Status, &rep.ResolutionNote, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, sqliteWrapErr(err, "sqlite: get report")
	}
	return &rep, nil
}

func (t *sqliteTx) InsertReport(ctx context.Context, rep *model.EntryReport) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO entry_reports (`+selectReportCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.EntryID, rep.ReporterID, rep.ReasonCode, rep.Note,
		rep.Status, rep.ResolutionNote, rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: insert report")
	}
	return nil
}

func (t *sqliteTx) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, resolutionNote string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE entry_reports SET status = ?, resolution_note = ?, updated_at = ? WHERE id = ?`,
		status, resolutionNote, at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update report status")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update report status")
}

// --- Disputes ---

func scanSQLiteDispute(row rowScanner) (*model.Dispute, error) {
	var d model.Dispute
	if err := row.Scan(&d.ID, &d.EntryID, &d.ProviderID, &d.VerificationMethod,
		&d.ProviderClaim, &d.Status, &d.Outcome, &d.PlatformResponse,
		&d.ResolutionNote, &d.CreatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r sqliteReader) GetDispute(ctx context.Context, id string) (*model.Dispute, error) {
	d, err := scanSQLiteDispute(r.q.QueryRowContext(ctx,
		`SELECT `+selectDisputeCols+` FROM disputes WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteWrapErr(err, "sqlite: get dispute")
	}
	return d, nil
}

func (r sqliteReader) GetPendingDisputeByEntry(ctx context.Context, entryID string) (*model.Dispute, error) {
	d, err := scanSQLiteDispute(r.q.QueryRowContext(ctx,
		`SELECT `+selectDisputeCols+` FROM disputes
		 WHERE entry_id = ? AND status = 'pending' LIMIT 1`, entryID))
	if err != nil {
		return nil, sqliteWrapErr(err, "sqlite: get pending dispute")
	}
	return d, nil
}

func (t *sqliteTx) InsertDispute(ctx context.Context, d *model.Dispute) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO disputes (`+selectDisputeCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.EntryID, d.ProviderID, d.VerificationMethod, d.ProviderClaim,
		d.Status, d.Outcome, d.PlatformResponse, d.ResolutionNote,
		d.CreatedAt, d.ResolvedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: insert dispute")
	}
	return nil
}

func (t *sqliteTx) ResolveDispute(ctx context.Context, id string, outcome model.DisputeOutcome, platformResponse, note string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE disputes SET status = 'resolved', outcome = ?,
		   platform_response = ?, resolution_note = ?, resolved_at = ?
		 WHERE id = ?`,
		outcome, platformResponse, note, at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: resolve dispute")
	}
	return rowsAffectedOrNotFound(res, "sqlite: resolve dispute")
}

// --- Evidence ---

func scanSQLiteEvidence(row rowScanner) (*model.Evidence, error) {
	var ev model.Evidence
	if err := row.Scan(&ev.ID, &ev.EntryID, &ev.OwnerID, &ev.ObjectKey,
		&ev.MimeType, &ev.SizeBytes, &ev.State, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r sqliteReader) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	ev, err := scanSQLiteEvidence(r.q.QueryRowContext(ctx,
		`SELECT `+selectEvidenceCols+` FROM evidence WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteWrapErr(err, "sqlite: get evidence")
	}
	return ev, nil
}

func (r sqliteReader) ListConfirmedEvidence(ctx context.Context, entryID string) ([]model.Evidence, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+selectEvidenceCols+` FROM evidence
		 WHERE entry_id = ? AND state = 'confirmed' ORDER BY created_at`, entryID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list confirmed evidence")
	}
	defer rows.Close()
	var out []model.Evidence
	for rows.Next() {
		ev, err := scanSQLiteEvidence(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evidence")
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list confirmed evidence rows")
}

func (t *sqliteTx) InsertEvidence(ctx context.Context, ev *model.Evidence) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO evidence (`+selectEvidenceCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EntryID, ev.OwnerID, ev.ObjectKey, ev.MimeType,
		ev.SizeBytes, ev.State, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: insert evidence")
	}
	return nil
}

func (t *sqliteTx) UpdateEvidenceState(ctx context.Context, id string, state model.EvidenceState, entryID string, at time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE evidence SET state = ?,
		   entry_id = CASE WHEN ? <> '' THEN ? ELSE entry_id END,
		   updated_at = ?
		 WHERE id = ?`,
		state, entryID, entryID, at, id)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: update evidence state")
	}
	return rowsAffectedOrNotFound(res, "sqlite: update evidence state")
}

// --- Audit ---

func (t *sqliteTx) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, actor_role, action, entry_id,
		   report_id, dispute_id, old_state, new_state, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ActorID, rec.ActorRole, rec.Action, rec.EntryID,
		rec.ReportID, rec.DisputeID, rec.OldState, rec.NewState, rec.Reason,
		rec.CreatedAt)
	if err != nil {
		return sqliteWrapErr(err, "sqlite: append audit")
	}
	return nil
}

func (r sqliteReader) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, actor_id, actor_role, action, entry_id, report_id,
		        dispute_id, old_state, new_state, reason, created_at
		 FROM audit_log
		 WHERE (? = '' OR entry_id = ?)
		   AND (? = '' OR report_id = ?)
		   AND (? = '' OR dispute_id = ?)
		   AND (? = '' OR action = ?)
		 ORDER BY created_at DESC LIMIT ?`,
		filter.EntryID, filter.EntryID, filter.ReportID, filter.ReportID,
		filter.DisputeID, filter.DisputeID, filter.Action, filter.Action, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()
	var out []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorRole, &rec.Action,
			&rec.EntryID, &rec.ReportID, &rec.DisputeID, &rec.OldState,
			&rec.NewState, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit rows")
}
