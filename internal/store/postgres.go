package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/feelens/feelens-core/internal/db"
	"github.com/feelens/feelens-core/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pgReader
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return NewPostgresWithPool(pool, pool.Close), nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pgReader: pgReader{q: pool}, pool: pool, closeFn: closeFn}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS industry_schemas (
	id                   TEXT PRIMARY KEY,
	industry_key         TEXT NOT NULL,
	display_name         TEXT NOT NULL DEFAULT '',
	version              INTEGER NOT NULL,
	fee_breakdown_schema JSONB NOT NULL,
	context_schema       JSONB NOT NULL,
	validation_rules     JSONB NOT NULL,
	is_active            BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (industry_key, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_industry_schemas_active
	ON industry_schemas(industry_key) WHERE is_active;

CREATE TABLE IF NOT EXISTS providers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	industry_key TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS fee_entries (
	id                       TEXT PRIMARY KEY,
	provider_id              TEXT NOT NULL REFERENCES providers(id),
	submitter_id             TEXT NOT NULL,
	industry_key             TEXT NOT NULL,
	service_key              TEXT NOT NULL DEFAULT '',
	pricing_model            TEXT NOT NULL,
	fee_breakdown            JSONB NOT NULL,
	context                  JSONB NOT NULL DEFAULT '{}',
	hidden_items             JSONB NOT NULL DEFAULT '[]',
	quote_transparency_score INTEGER NOT NULL DEFAULT 0,
	initial_quote_total      DOUBLE PRECISION NOT NULL DEFAULT 0,
	final_total_paid         DOUBLE PRECISION NOT NULL DEFAULT 0,
	delta_pct                DOUBLE PRECISION NOT NULL DEFAULT 0,
	evidence_tier            TEXT NOT NULL DEFAULT 'C',
	risk_flags               JSONB NOT NULL DEFAULT '[]',
	visibility               TEXT NOT NULL DEFAULT 'hidden',
	moderation_status        TEXT NOT NULL DEFAULT 'unreviewed',
	dispute_status           TEXT NOT NULL DEFAULT 'none',
	created_at               TIMESTAMPTZ NOT NULL,
	updated_at               TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fee_entries_submitter_created
	ON fee_entries(submitter_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fee_entries_provider_created
	ON fee_entries(provider_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_fee_entries_visibility ON fee_entries(visibility);

CREATE TABLE IF NOT EXISTS entry_reports (
	id              TEXT PRIMARY KEY,
	entry_id        TEXT NOT NULL REFERENCES fee_entries(id),
	reporter_id     TEXT NOT NULL,
	reason_code     TEXT NOT NULL,
	note            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'open',
	resolution_note TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entry_reports_entry ON entry_reports(entry_id);
CREATE INDEX IF NOT EXISTS idx_entry_reports_status ON entry_reports(status);

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
	created_at          TIMESTAMPTZ NOT NULL,
	resolved_at         TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_pending_entry
	ON disputes(entry_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS evidence (
	id         TEXT PRIMARY KEY,
	entry_id   TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL,
	object_key TEXT NOT NULL,
	mime_type  TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	state      TEXT NOT NULL DEFAULT 'idle',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
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
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entry ON audit_log(entry_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_created ON audit_log(created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// WithTx runs fn inside a serializable transaction. Concurrent admin actions
// on the same rows linearize: the second writer observes the first's
// committed state or aborts.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgTx{pgReader: pgReader{q: pgtx}, tx: pgtx}); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

// pgQuerier is satisfied by both db.Pool and pgx.Tx, so reads run identically
// inside and outside transactions.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgReader struct {
	q pgQuerier
}

type pgTx struct {
	pgReader
	tx pgx.Tx
}

func pgWrapErr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return eris.Wrap(err, msg)
}

// --- Schemas ---

const selectSchemaCols = `id, industry_key, display_name, version,
	fee_breakdown_schema, context_schema, validation_rules, is_active, created_at`

func scanSchema(row pgx.Row) (*model.IndustrySchema, error) {
	var s model.IndustrySchema
	var feeJSON, ctxJSON, rulesJSON []byte
	if err := row.Scan(&s.ID, &s.IndustryKey, &s.DisplayName, &s.Version,
		&feeJSON, &ctxJSON, &rulesJSON, &s.IsActive, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(feeJSON, &s.FeeBreakdownSchema); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fee breakdown schema")
	}
	if err := json.Unmarshal(ctxJSON, &s.ContextSchema); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal context schema")
	}
	if err := json.Unmarshal(rulesJSON, &s.ValidationRules); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal validation rules")
	}
	return &s, nil
}

func (r pgReader) GetActiveSchema(ctx context.Context, industryKey string) (*model.IndustrySchema, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+selectSchemaCols+` FROM industry_schemas
		 WHERE industry_key = $1 AND is_active LIMIT 1`, industryKey)
	s, err := scanSchema(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, pgWrapErr(err, "postgres: get active schema")
	}

	// No active row. An inactive match gets a distinct error.
	var n int
	if err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM industry_schemas WHERE industry_key = $1`, industryKey,
	).Scan(&n); err != nil {
		return nil, pgWrapErr(err, "postgres: count schemas")
	}
	if n > 0 {
		return nil, ErrSchemaInactive
	}
	return nil, ErrNotFound
}

func (r pgReader) ActiveSchemaVersion(ctx context.Context, industryKey string) (int, error) {
	var v int
	err := r.q.QueryRow(ctx,
		`SELECT version FROM industry_schemas WHERE industry_key = $1 AND is_active LIMIT 1`,
		industryKey,
	).Scan(&v)
	if err != nil {
		return 0, pgWrapErr(err, "postgres: active schema version")
	}
	return v, nil
}

func (r pgReader) ListSchemas(ctx context.Context, industryKey string) ([]model.IndustrySchema, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+selectSchemaCols+` FROM industry_schemas
		 WHERE ($1 = '' OR industry_key = $1)
		 ORDER BY industry_key, version`, industryKey)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list schemas")
	}
	defer rows.Close()

	var out []model.IndustrySchema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan schema")
		}
		out = append(out, *s)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list schemas rows")
}

func (t *pgTx) InsertSchema(ctx context.Context, s *model.IndustrySchema) error {
	feeJSON, err := json.Marshal(s.FeeBreakdownSchema)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal fee breakdown schema")
	}
	ctxJSON, err := json.Marshal(s.ContextSchema)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal context schema")
	}
	rulesJSON, err := json.Marshal(s.ValidationRules)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal validation rules")
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO industry_schemas
		 (id, industry_key, display_name, version, fee_breakdown_schema,
		  context_schema, validation_rules, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.IndustryKey, s.DisplayName, s.Version,
		feeJSON, ctxJSON, rulesJSON, s.IsActive, s.CreatedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: insert schema")
	}
	return nil
}

func (t *pgTx) ActivateSchema(ctx context.Context, industryKey string, version int) error {
	if _, err := t.tx.Exec(ctx,
		`UPDATE industry_schemas SET is_active = false
		 WHERE industry_key = $1 AND is_active`, industryKey); err != nil {
		return pgWrapErr(err, "postgres: deactivate schemas")
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE industry_schemas SET is_active = true
		 WHERE industry_key = $1 AND version = $2`, industryKey, version)
	if err != nil {
		return pgWrapErr(err, "postgres: activate schema")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Providers ---

func (r pgReader) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	var p model.Provider
	err := r.q.QueryRow(ctx,
		`SELECT id, name, industry_key, status, created_at FROM providers WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.IndustryKey, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, pgWrapErr(err, "postgres: get provider")
	}
	return &p, nil
}

func (t *pgTx) InsertProvider(ctx context.Context, p *model.Provider) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO providers (id, name, industry_key, status, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.IndustryKey, p.Status, p.CreatedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: insert provider")
	}
	return nil
}

func (t *pgTx) UpdateProviderStatus(ctx context.Context, id string, status model.ProviderStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE providers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update provider status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Entries ---

const selectEntryCols = `id, provider_id, submitter_id, industry_key, service_key,
	pricing_model, fee_breakdown, context, hidden_items, quote_transparency_score,
	initial_quote_total, final_total_paid, delta_pct, evidence_tier, risk_flags,
	visibility, moderation_status, dispute_status, created_at, updated_at`

func scanEntry(row pgx.Row) (*model.FeeEntry, error) {
	var e model.FeeEntry
	var feeJSON, ctxJSON, hiddenJSON, flagsJSON []byte
	if err := row.Scan(&e.ID, &e.ProviderID, &e.SubmitterID, &e.IndustryKey,
		&e.ServiceKey, &e.PricingModel, &feeJSON, &ctxJSON, &hiddenJSON,
		&e.QuoteTransparencyScore, &e.InitialQuoteTotal, &e.FinalTotalPaid,
		&e.DeltaPct, &e.EvidenceTier, &flagsJSON, &e.Visibility,
		&e.ModerationStatus, &e.DisputeStatus, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(feeJSON, &e.FeeBreakdown); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal fee breakdown")
	}
	if err := json.Unmarshal(ctxJSON, &e.Context); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal context")
	}
	if err := json.Unmarshal(hiddenJSON, &e.HiddenItems); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal hidden items")
	}
	if err := json.Unmarshal(flagsJSON, &e.RiskFlags); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal risk flags")
	}
	return &e, nil
}

func (r pgReader) GetEntry(ctx context.Context, id string) (*model.FeeEntry, error) {
	e, err := scanEntry(r.q.QueryRow(ctx,
		`SELECT `+selectEntryCols+` FROM fee_entries WHERE id = $1`, id))
	if err != nil {
		return nil, pgWrapErr(err, "postgres: get entry")
	}
	return e, nil
}

func (r pgReader) ListEntryIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT id FROM fee_entries ORDER BY created_at`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entry ids")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entry id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "postgres: list entry ids rows")
}

func marshalEntryJSON(e *model.FeeEntry) (fee, ctxJSON, hidden, flags []byte, err error) {
	if fee, err = json.Marshal(orEmptyMap(e.FeeBreakdown)); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal fee breakdown")
	}
	if ctxJSON, err = json.Marshal(orEmptyMap(e.Context)); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal context")
	}
	if hidden, err = json.Marshal(orEmptySlice(e.HiddenItems)); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal hidden items")
	}
	if flags, err = json.Marshal(orEmptySlice(e.RiskFlags)); err != nil {
		return nil, nil, nil, nil, eris.Wrap(err, "postgres: marshal risk flags")
	}
	return fee, ctxJSON, hidden, flags, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (t *pgTx) InsertEntry(ctx context.Context, e *model.FeeEntry) error {
	feeJSON, ctxJSON, hiddenJSON, flagsJSON, err := marshalEntryJSON(e)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO fee_entries (`+selectEntryCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		e.ID, e.ProviderID, e.SubmitterID, e.IndustryKey, e.ServiceKey,
		e.PricingModel, feeJSON, ctxJSON, hiddenJSON, e.QuoteTransparencyScore,
		e.InitialQuoteTotal, e.FinalTotalPaid, e.DeltaPct, e.EvidenceTier,
		flagsJSON, e.Visibility, e.ModerationStatus, e.DisputeStatus,
		e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: insert entry")
	}
	return nil
}

func (t *pgTx) UpdateEntryModeration(ctx context.Context, id string, visibility model.Visibility, status model.ModerationStatus, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE fee_entries SET visibility = $1, moderation_status = $2, updated_at = $3 WHERE id = $4`,
		visibility, status, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update entry moderation")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) UpdateEntryVisibility(ctx context.Context, id string, visibility model.Visibility, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE fee_entries SET visibility = $1, updated_at = $2 WHERE id = $3`,
		visibility, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update entry visibility")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) UpdateEntryDisputeStatus(ctx context.Context, id string, status model.DisputeStanding, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE fee_entries SET dispute_status = $1, updated_at = $2 WHERE id = $3`,
		status, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update entry dispute status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) UpdateEntryScoring(ctx context.Context, id string, tier model.EvidenceTier, riskFlags []string, at time.Time) error {
	flagsJSON, err := json.Marshal(orEmptySlice(riskFlags))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal risk flags")
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE fee_entries SET evidence_tier = $1, risk_flags = $2, updated_at = $3 WHERE id = $4`,
		tier, flagsJSON, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update entry scoring")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Rate-limit reads ---

func (r pgReader) SubmissionTimesSince(ctx context.Context, submitterID string, since time.Time) ([]time.Time, error) {
	return r.submissionTimes(ctx,
		`SELECT created_at FROM fee_entries
		 WHERE submitter_id = $1 AND created_at > $2 ORDER BY created_at`,
		submitterID, since)
}

func (r pgReader) ProviderSubmissionTimesSince(ctx context.Context, submitterID, providerID string, since time.Time) ([]time.Time, error) {
	return r.submissionTimes(ctx,
		`SELECT created_at FROM fee_entries
		 WHERE submitter_id = $1 AND provider_id = $2 AND created_at > $3 ORDER BY created_at`,
		submitterID, providerID, since)
}

func (r pgReader) submissionTimes(ctx context.Context, sql string, args ...any) ([]time.Time, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: submission times")
	}
	defer rows.Close()
	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "postgres: scan submission time")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: submission times rows")
}

func (r pgReader) CountSimilarEntries(ctx context.Context, submitterID, providerID string, finalTotal float64, since time.Time) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT count(*) FROM fee_entries
		 WHERE submitter_id = $1 AND provider_id = $2
		   AND final_total_paid = $3 AND created_at > $4`,
		submitterID, providerID, finalTotal, since,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: count similar entries")
	}
	return n, nil
}

// --- Reports ---

const selectReportCols = `id, entry_id, reporter_id, reason_code, note, status,
	resolution_note, created_at, updated_at`

func (r pgReader) GetReport(ctx context.Context, id string) (*model.EntryReport, error) {
	var rep model.EntryReport
	err := r.q.QueryRow(ctx,
		`SELECT `+selectReportCols+` FROM entry_reports WHERE id = $1`, id,
	).Scan(&rep.ID, &rep.EntryID, &rep.ReporterID, &rep.ReasonCode, &rep.Note,
		&rep.Status, &rep.ResolutionNote, &rep.CreatedAt, &rep.UpdatedAt)
	if err != nil {
		return nil, pgWrapErr(err, "postgres: get report")
	}
	return &rep, nil
}

func (t *pgTx) InsertReport(ctx context.Context, rep *model.EntryReport) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO entry_reports (`+selectReportCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rep.ID, rep.EntryID, rep.ReporterID, rep.ReasonCode, rep.Note,
		rep.Status, rep.ResolutionNote, rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: insert report")
	}
	return nil
}

func (t *pgTx) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus, resolutionNote string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE entry_reports SET status = $1, resolution_note = $2, updated_at = $3 WHERE id = $4`,
		status, resolutionNote, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update report status")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Disputes ---

const selectDisputeCols = `id, entry_id, provider_id, verification_method,
	provider_claim, status, outcome, platform_response, resolution_note,
	created_at, resolved_at`

func scanDispute(row pgx.Row) (*model.Dispute, error) {
	var d model.Dispute
	if err := row.Scan(&d.ID, &d.EntryID, &d.ProviderID, &d.VerificationMethod,
		&d.ProviderClaim, &d.Status, &d.Outcome, &d.PlatformResponse,
		&d.ResolutionNote, &d.CreatedAt, &d.ResolvedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r pgReader) GetDispute(ctx context.Context, id string) (*model.Dispute, error) {
	d, err := scanDispute(r.q.QueryRow(ctx,
		`SELECT `+selectDisputeCols+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		return nil, pgWrapErr(err, "postgres: get dispute")
	}
	return d, nil
}

func (r pgReader) GetPendingDisputeByEntry(ctx context.Context, entryID string) (*model.Dispute, error) {
	d, err := scanDispute(r.q.QueryRow(ctx,
		`SELECT `+selectDisputeCols+` FROM disputes
		 WHERE entry_id = $1 AND status = 'pending' LIMIT 1`, entryID))
	if err != nil {
		return nil, pgWrapErr(err, "postgres: get pending dispute")
	}
	return d, nil
}

func (t *pgTx) InsertDispute(ctx context.Context, d *model.Dispute) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO disputes (`+selectDisputeCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.EntryID, d.ProviderID, d.VerificationMethod, d.ProviderClaim,
		d.Status, d.Outcome, d.PlatformResponse, d.ResolutionNote,
		d.CreatedAt, d.ResolvedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: insert dispute")
	}
	return nil
}

func (t *pgTx) ResolveDispute(ctx context.Context, id string, outcome model.DisputeOutcome, platformResponse, note string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE disputes SET status = 'resolved', outcome = $1,
		   platform_response = $2, resolution_note = $3, resolved_at = $4
		 WHERE id = $5`,
		outcome, platformResponse, note, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: resolve dispute")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Evidence ---

const selectEvidenceCols = `id, entry_id, owner_id, object_key, mime_type,
	size_bytes, state, created_at, updated_at`

func scanEvidence(row pgx.Row) (*model.Evidence, error) {
	var ev model.Evidence
	if err := row.Scan(&ev.ID, &ev.EntryID, &ev.OwnerID, &ev.ObjectKey,
		&ev.MimeType, &ev.SizeBytes, &ev.State, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r pgReader) GetEvidence(ctx context.Context, id string) (*model.Evidence, error) {
	ev, err := scanEvidence(r.q.QueryRow(ctx,
		`SELECT `+selectEvidenceCols+` FROM evidence WHERE id = $1`, id))
	if err != nil {
		return nil, pgWrapErr(err, "postgres: get evidence")
	}
	return ev, nil
}

func (r pgReader) ListConfirmedEvidence(ctx context.Context, entryID string) ([]model.Evidence, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+selectEvidenceCols+` FROM evidence
		 WHERE entry_id = $1 AND state = 'confirmed' ORDER BY created_at`, entryID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list confirmed evidence")
	}
	defer rows.Close()
	var out []model.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan evidence")
		}
		out = append(out, *ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list confirmed evidence rows")
}

func (t *pgTx) InsertEvidence(ctx context.Context, ev *model.Evidence) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO evidence (`+selectEvidenceCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ev.ID, ev.EntryID, ev.OwnerID, ev.ObjectKey, ev.MimeType,
		ev.SizeBytes, ev.State, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: insert evidence")
	}
	return nil
}

func (t *pgTx) UpdateEvidenceState(ctx context.Context, id string, state model.EvidenceState, entryID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE evidence SET state = $1,
		   entry_id = CASE WHEN $2 <> '' THEN $2 ELSE entry_id END,
		   updated_at = $3
		 WHERE id = $4`,
		state, entryID, at, id)
	if err != nil {
		return pgWrapErr(err, "postgres: update evidence state")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Audit ---

func (t *pgTx) AppendAudit(ctx context.Context, rec *model.AuditRecord) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO audit_log (id, actor_id, actor_role, action, entry_id,
		   report_id, dispute_id, old_state, new_state, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.ActorID, rec.ActorRole, rec.Action, rec.EntryID,
		rec.ReportID, rec.DisputeID, rec.OldState, rec.NewState, rec.Reason,
		rec.CreatedAt)
	if err != nil {
		return pgWrapErr(err, "postgres: append audit")
	}
	return nil
}

func (r pgReader) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx,
		`SELECT id, actor_id, actor_role, action, entry_id, report_id,
		        dispute_id, old_state, new_state, reason, created_at
		 FROM audit_log
		 WHERE ($1 = '' OR entry_id = $1)
		   AND ($2 = '' OR report_id = $2)
		   AND ($3 = '' OR dispute_id = $3)
		   AND ($4 = '' OR action = $4)
		 ORDER BY created_at DESC LIMIT $5`,
		filter.EntryID, filter.ReportID, filter.DisputeID, filter.Action, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()
	var out []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.ActorRole, &rec.Action,
			&rec.EntryID, &rec.ReportID, &rec.DisputeID, &rec.OldState,
			&rec.NewState, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit rows")
}
