package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
)

// DisputeEngine owns business-raised disputes and their cascading effects on
// entries. While a dispute is pending the entry's dispute_status is kept at
// pending in the same transaction, never eventually.
type DisputeEngine struct {
	store   store.Store
	maxNote int
	now     func() time.Time
}

// NewDisputeEngine creates a DisputeEngine.
func NewDisputeEngine(st store.Store, maxNote int) *DisputeEngine {
	if maxNote <= 0 {
		maxNote = defaultMaxNoteLength
	}
	return &DisputeEngine{store: st, maxNote: maxNote, now: time.Now}
}

// SetClock overrides the engine's clock. Tests only.
func (e *DisputeEngine) SetClock(now func() time.Time) { e.now = now }

// Open raises a dispute on behalf of the listed business. One pending
// dispute per entry.
func (e *DisputeEngine) Open(ctx context.Context, actor auth.Actor, entryID, verificationMethod, claim string) (*model.Dispute, error) {
	if err := requireText("provider_verification_method", verificationMethod, 200); err != nil {
		return nil, err
	}
	if err := requireText("provider_claim", claim, e.maxNote); err != nil {
		return nil, err
	}

	var dispute *model.Dispute
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "entry not found: %s", entryID)
			}
			return err
		}
		if _, err := tx.GetPendingDisputeByEntry(ctx, entryID); err == nil {
			return apperr.Conflict("entry already has a pending dispute")
		} else if !eris.Is(err, store.ErrNotFound) {
			return err
		}

		now := e.now().UTC()
		dispute = &model.Dispute{
			ID:                 uuid.New().String(),
			EntryID:            entryID,
			ProviderID:         entry.ProviderID,
			VerificationMethod: verificationMethod,
			ProviderClaim:      claim,
			Status:             model.DisputeStatusPending,
			CreatedAt:          now,
		}
		if err := tx.InsertDispute(ctx, dispute); err != nil {
			if eris.Is(err, store.ErrDuplicate) {
				return apperr.Conflict("entry already has a pending dispute")
			}
			return err
		}
		if err := tx.UpdateEntryDisputeStatus(ctx, entryID, model.DisputePending, now); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    model.AuditDisputeOpened,
			EntryID:   entryID,
			DisputeID: dispute.ID,
			NewState:  string(model.DisputeStatusPending),
			Reason:    verificationMethod,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// Resolve closes a pending dispute with an outcome and cascades the effects
// onto the entry in the same transaction:
//
//	maintained     entry unchanged
//	corrected      evidence tier reset to C pending re-verification
//	removed        entry visibility forced to hidden
//	partial_hidden entry moderation status forced to flagged, reopening review
//
// The entry's dispute_status moves to resolved unconditionally.
func (e *DisputeEngine) Resolve(ctx context.Context, actor auth.Actor, disputeID string, outcome model.DisputeOutcome, platformResponse, note string) error {
	if err := requireModerator(actor); err != nil {
		return err
	}
	if !model.ValidDisputeOutcome(outcome) {
		return apperr.Validation(map[string]string{"outcome": "must be maintained, corrected, removed, or partial_hidden"})
	}
	if err := requireText("platform_response", platformResponse, e.maxNote); err != nil {
		return err
	}
	if err := optionalText("resolution_note", note, e.maxNote); err != nil {
		return err
	}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		dispute, err := tx.GetDispute(ctx, disputeID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "dispute not found: %s", disputeID)
			}
			return err
		}
		if dispute.Status != model.DisputeStatusPending {
			return apperr.Conflict("dispute is already %s", dispute.Status)
		}

		entry, err := tx.GetEntry(ctx, dispute.EntryID)
		if err != nil {
			return err
		}
		oldState := entryState(entry)
		now := e.now().UTC()

		if err := tx.ResolveDispute(ctx, disputeID, outcome, platformResponse, note, now); err != nil {
			return err
		}
		if err := tx.UpdateEntryDisputeStatus(ctx, entry.ID, model.DisputeResolved, now); err != nil {
			return err
		}
		entry.DisputeStatus = model.DisputeResolved

		switch outcome {
		case model.OutcomeRemoved:
			if err := tx.UpdateEntryVisibility(ctx, entry.ID, model.VisibilityHidden, now); err != nil {
				return err
			}
			entry.Visibility = model.VisibilityHidden
		case model.OutcomePartialHidden:
			if err := tx.UpdateEntryModeration(ctx, entry.ID, entry.Visibility, model.ModerationFlagged, now); err != nil {
				return err
			}
			entry.ModerationStatus = model.ModerationFlagged
		case model.OutcomeCorrected:
			if err := tx.UpdateEntryScoring(ctx, entry.ID, model.TierC, entry.RiskFlags, now); err != nil {
				return err
			}
			entry.EvidenceTier = model.TierC
		case model.OutcomeMaintained:
			// entry untouched beyond dispute_status
		}

		return tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    model.AuditDisputeResolved,
			EntryID:   entry.ID,
			DisputeID: disputeID,
			OldState:  oldState,
			NewState:  entryState(entry) + " outcome=" + string(outcome),
			Reason:    platformResponse,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	zap.L().Info("dispute resolved",
		zap.String("dispute_id", disputeID),
		zap.String("outcome", string(outcome)),
		zap.String("actor_id", actor.ID),
	)
	return nil
}
