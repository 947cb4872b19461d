package schema

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
)

// Registry serves the active schema per industry key with an in-process TTL
// cache. The cache is an optimization, not a correctness dependency: cached
// copies are revalidated by version before use, so a submission can never be
// validated against a stale shape.
type Registry struct {
	store store.Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]*cacheEntry
}

type cacheEntry struct {
	compiled  *Compiled
	fetchedAt time.Time
}

// NewRegistry creates a Registry over the given store.
func NewRegistry(st store.Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{store: st, ttl: ttl, cache: make(map[string]*cacheEntry)}
}

// Active returns the compiled active schema for the industry key.
func (r *Registry) Active(ctx context.Context, industryKey string) (*Compiled, error) {
	r.mu.Lock()
	ent, ok := r.cache[industryKey]
	r.mu.Unlock()

	if ok && time.Since(ent.fetchedAt) < r.ttl {
		version, err := r.store.ActiveSchemaVersion(ctx, industryKey)
		if err == nil && version == ent.compiled.Version {
			return ent.compiled, nil
		}
		// Version moved or the row went away: drop the copy and refetch.
		r.Invalidate(industryKey)
	}

	return r.fetch(ctx, industryKey)
}

func (r *Registry) fetch(ctx context.Context, industryKey string) (*Compiled, error) {
	s, err := r.store.GetActiveSchema(ctx, industryKey)
	if err != nil {
		return nil, mapSchemaErr(err, industryKey)
	}
	compiled, err := Compile(s)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[industryKey] = &cacheEntry{compiled: compiled, fetchedAt: time.Now()}
	r.mu.Unlock()

	return compiled, nil
}

// Invalidate drops the cached copy for the industry key.
func (r *Registry) Invalidate(industryKey string) {
	r.mu.Lock()
	delete(r.cache, industryKey)
	r.mu.Unlock()
}

func mapSchemaErr(err error, industryKey string) error {
	switch {
	case eris.Is(err, store.ErrNotFound):
		return apperr.Newf(apperr.CodeSchemaNotFound, "industry schema not found: %s", industryKey)
	case eris.Is(err, store.ErrSchemaInactive):
		return apperr.Newf(apperr.CodeSchemaInactive, "industry schema inactive: %s", industryKey)
	default:
		return eris.Wrap(err, "schema: lookup")
	}
}

// Put inserts the next version of an industry schema. The new row starts
// inactive unless activate is set, in which case it atomically replaces the
// current active version.
func (r *Registry) Put(ctx context.Context, s *model.IndustrySchema, activate bool) error {
	// Compile up front so a broken schema never lands in the registry.
	if _, err := Compile(s); err != nil {
		return err
	}

	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.ListSchemas(ctx, s.IndustryKey)
		if err != nil {
			return err
		}
		next := 1
		for _, row := range existing {
			if row.Version >= next {
				next = row.Version + 1
			}
		}
		s.ID = uuid.New().String()
		s.Version = next
		s.IsActive = false
		s.CreatedAt = time.Now().UTC()
		if err := tx.InsertSchema(ctx, s); err != nil {
			return err
		}
		if activate {
			if err := tx.ActivateSchema(ctx, s.IndustryKey, s.Version); err != nil {
				return err
			}
			s.IsActive = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.Invalidate(s.IndustryKey)
	zap.L().Info("schema registered",
		zap.String("industry_key", s.IndustryKey),
		zap.Int("version", s.Version),
		zap.Bool("active", s.IsActive),
	)
	return nil
}

// Activate switches the active version for an industry key.
func (r *Registry) Activate(ctx context.Context, industryKey string, version int) error {
	err := r.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.ActivateSchema(ctx, industryKey, version)
	})
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			return apperr.Newf(apperr.CodeSchemaNotFound, "schema version not found: %s v%d", industryKey, version)
		}
		return err
	}
	r.Invalidate(industryKey)
	return nil
}

// List returns all schema versions, optionally filtered by industry key.
func (r *Registry) List(ctx context.Context, industryKey string) ([]model.IndustrySchema, error) {
	return r.store.ListSchemas(ctx, industryKey)
}
