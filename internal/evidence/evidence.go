// Package evidence manages the upload lifecycle of documents backing fee
// entries. Bytes move out-of-band; this package owns the metadata rows and
// the synchronous rescore that follows a confirmed upload.
package evidence

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/scorer"
	"github.com/feelens/feelens-core/internal/store"
)

// DefaultMaxSizeBytes caps evidence uploads at 10 MiB.
const DefaultMaxSizeBytes = 10 << 20

var mimeExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// UploadGrant tells the client where to put the bytes.
type UploadGrant struct {
	EvidenceID string `json:"evidence_id"`
	ObjectKey  string `json:"object_key"`
	MaxBytes   int64  `json:"max_bytes"`
}

// Service owns evidence rows and the entry rescore triggered by confirmation.
type Service struct {
	store    store.Store
	scoreCfg scorer.Config
	maxBytes int64
	now      func() time.Time
}

// NewService creates a Service. maxBytes <= 0 falls back to
// DefaultMaxSizeBytes.
func NewService(st store.Store, scoreCfg scorer.Config, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxSizeBytes
	}
	return &Service{store: st, scoreCfg: scoreCfg, maxBytes: maxBytes, now: time.Now}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// RequestUpload validates the declared mime type and size, reserves an object
// key and returns a grant. The row starts in the uploading state; nothing
// counts toward scoring until ConfirmUpload.
func (s *Service) RequestUpload(ctx context.Context, actor auth.Actor, mimeType string, sizeBytes int64) (*UploadGrant, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.CodeAuthRequired, "authentication required")
	}
	fieldErrs := map[string]string{}
	if !model.AllowedEvidenceMimeTypes[mimeType] {
		fieldErrs["mime_type"] = fmt.Sprintf("unsupported type %q, allowed: image/jpeg, image/png, image/webp, application/pdf", mimeType)
	}
	if sizeBytes <= 0 {
		fieldErrs["size_bytes"] = "must be positive"
	} else if sizeBytes > s.maxBytes {
		fieldErrs["size_bytes"] = fmt.Sprintf("exceeds limit of %d bytes", s.maxBytes)
	}
	if len(fieldErrs) > 0 {
		return nil, apperr.Validation(fieldErrs)
	}

	id := uuid.New().String()
	now := s.now().UTC()
	ev := &model.Evidence{
		ID:        id,
		OwnerID:   actor.ID,
		ObjectKey: path.Join("evidence", actor.ID, id+mimeExtensions[mimeType]),
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
		State:     model.EvidenceUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertEvidence(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	return &UploadGrant{EvidenceID: ev.ID, ObjectKey: ev.ObjectKey, MaxBytes: s.maxBytes}, nil
}

// ConfirmUpload marks the evidence confirmed, links it to the entry, and
// rescores that entry in the same transaction. The tier never drops from a
// confirmation: more evidence only strengthens standing.
func (s *Service) ConfirmUpload(ctx context.Context, actor auth.Actor, evidenceID, entryID string) error {
	if actor.ID == "" {
		return apperr.New(apperr.CodeAuthRequired, "authentication required")
	}
	if entryID == "" {
		return apperr.Validation(map[string]string{"entry_id": "must not be empty"})
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		ev, err := tx.GetEvidence(ctx, evidenceID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "evidence not found: %s", evidenceID)
			}
			return err
		}
		if ev.OwnerID != actor.ID && !actor.CanModerate() {
			return apperr.New(apperr.CodeAuthRequired, "evidence belongs to another account")
		}
		if ev.State == model.EvidenceConfirmed {
			return nil
		}
		if ev.State != model.EvidenceUploading {
			return apperr.Conflict("evidence is %s, expected uploading", ev.State)
		}

		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "entry not found: %s", entryID)
			}
			return err
		}
		if entry.SubmitterID != actor.ID && !actor.CanModerate() {
			return apperr.New(apperr.CodeAuthRequired, "entry belongs to another account")
		}

		now := s.now().UTC()
		if err := tx.UpdateEvidenceState(ctx, evidenceID, model.EvidenceConfirmed, entryID, now); err != nil {
			return err
		}
		return s.rescore(ctx, tx, actor, entry, now)
	})
	if err != nil {
		return err
	}

	zap.L().Info("evidence confirmed",
		zap.String("evidence_id", evidenceID),
		zap.String("entry_id", entryID),
	)
	return nil
}

// Fail marks an upload failed. Terminal; the client requests a fresh grant to
// retry.
func (s *Service) Fail(ctx context.Context, actor auth.Actor, evidenceID string) error {
	if actor.ID == "" {
		return apperr.New(apperr.CodeAuthRequired, "authentication required")
	}
	return s.store.WithTx(ctx, func(tx store.Tx) error {
		ev, err := tx.GetEvidence(ctx, evidenceID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "evidence not found: %s", evidenceID)
			}
			return err
		}
		if ev.OwnerID != actor.ID && !actor.CanModerate() {
			return apperr.New(apperr.CodeAuthRequired, "evidence belongs to another account")
		}
		if ev.State == model.EvidenceFailed {
			return nil
		}
		if ev.State != model.EvidenceUploading {
			return apperr.Conflict("evidence is %s, expected uploading", ev.State)
		}
		return tx.UpdateEvidenceState(ctx, evidenceID, model.EvidenceFailed, ev.EntryID, s.now().UTC())
	})
}

// rescore recomputes the entry's tier and flags from its current confirmed
// evidence. Runs inside the caller's transaction so the confirmation and the
// rescore commit together.
func (s *Service) rescore(ctx context.Context, tx store.Tx, actor auth.Actor, entry *model.FeeEntry, now time.Time) error {
	confirmed, err := tx.ListConfirmedEvidence(ctx, entry.ID)
	if err != nil {
		return err
	}

	res := scorer.Score(s.scoreCfg, scorer.Input{
		ConfirmedEvidence: len(confirmed),
		TransparencyScore: entry.QuoteTransparencyScore,
		InitialQuoteTotal: entry.InitialQuoteTotal,
		FinalTotalPaid:    entry.FinalTotalPaid,
		DuplicateSuspect:  entry.HasRiskFlag(model.RiskDuplicateSuspect),
	})
	if entry.HasRiskFlag(model.RiskOutlierTotal) {
		res.RiskFlags = append(res.RiskFlags, model.RiskOutlierTotal)
	}

	newTier := strongerTier(entry.EvidenceTier, res.EvidenceTier)
	if newTier == entry.EvidenceTier && sameFlags(entry.RiskFlags, res.RiskFlags) {
		return nil
	}

	if err := tx.UpdateEntryScoring(ctx, entry.ID, newTier, res.RiskFlags, now); err != nil {
		return err
	}
	return tx.AppendAudit(ctx, &model.AuditRecord{
		ID:        uuid.New().String(),
		ActorID:   actor.ID,
		ActorRole: string(actor.Role),
		Action:    model.AuditEntryRescored,
		EntryID:   entry.ID,
		OldState:  fmt.Sprintf("tier=%s flags=%v", entry.EvidenceTier, entry.RiskFlags),
		NewState:  fmt.Sprintf("tier=%s flags=%v", newTier, res.RiskFlags),
		CreatedAt: now,
	})
}

var tierRank = map[model.EvidenceTier]int{model.TierC: 0, model.TierB: 1, model.TierA: 2}

func strongerTier(a, b model.EvidenceTier) model.EvidenceTier {
	if tierRank[b] > tierRank[a] {
		return b
	}
	return a
}

func sameFlags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, f := range a {
		seen[f] = true
	}
	for _, f := range b {
		if !seen[f] {
			return false
		}
	}
	return true
}
