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

// PublishPolicy decides whether a clean submission in an industry may go
// public without review. The concrete per-industry policy is pluggable.
type PublishPolicy interface {
	AutoPublish(industryKey string) bool
}

// IndustryListPolicy allows auto-publish for an explicit list of industries.
type IndustryListPolicy struct {
	allowed map[string]bool
}

// NewIndustryListPolicy builds a policy from the allowed industry keys.
func NewIndustryListPolicy(industryKeys []string) *IndustryListPolicy {
	allowed := make(map[string]bool, len(industryKeys))
	for _, k := range industryKeys {
		allowed[k] = true
	}
	return &IndustryListPolicy{allowed: allowed}
}

// AutoPublish implements PublishPolicy.
func (p *IndustryListPolicy) AutoPublish(industryKey string) bool {
	return p.allowed[industryKey]
}

// InitialState decides where a new entry starts. Risky submissions are
// flagged for review, tier C submissions are held hidden, and clean ones go
// public only where the industry's policy allows it. The no-evidence flag
// does not count as risky here: a fresh submission never has confirmed
// evidence, and the tier already prices that in.
func InitialState(policy PublishPolicy, tier model.EvidenceTier, riskFlags []string, industryKey string) (model.Visibility, model.ModerationStatus) {
	risky := false
	for _, f := range riskFlags {
		if f != model.RiskNoEvidence {
			risky = true
			break
		}
	}
	switch {
	case risky:
		return model.VisibilityFlagged, model.ModerationUnreviewed
	case tier == model.TierC:
		return model.VisibilityHidden, model.ModerationUnreviewed
	case policy != nil && policy.AutoPublish(industryKey):
		return model.VisibilityPublic, model.ModerationUnreviewed
	default:
		return model.VisibilityHidden, model.ModerationUnreviewed
	}
}

// EntryEngine owns an entry's visibility and moderation-status transitions.
type EntryEngine struct {
	store     store.Store
	maxReason int
	now       func() time.Time
}

// NewEntryEngine creates an EntryEngine.
func NewEntryEngine(st store.Store, maxReason int) *EntryEngine {
	if maxReason <= 0 {
		maxReason = defaultMaxNoteLength
	}
	return &EntryEngine{store: st, maxReason: maxReason, now: time.Now}
}

// SetClock overrides the engine's clock. Tests only.
func (e *EntryEngine) SetClock(now func() time.Time) { e.now = now }

// Approve publishes an entry: moderation_status -> approved, visibility ->
// public. Legal from unreviewed or flagged. Re-approving an approved entry
// is a no-op success with no duplicate audit row.
func (e *EntryEngine) Approve(ctx context.Context, actor auth.Actor, entryID, reason string) error {
	return e.transition(ctx, actor, entryID, reason, "approve")
}

// Reject takes an entry down with a final verdict: moderation_status ->
// rejected, visibility -> hidden. Legal from unreviewed or flagged.
func (e *EntryEngine) Reject(ctx context.Context, actor auth.Actor, entryID, reason string) error {
	return e.transition(ctx, actor, entryID, reason, "reject")
}

// Hide is a provisional takedown: visibility -> hidden only, from any state.
// The moderation status keeps its value so review can still conclude.
func (e *EntryEngine) Hide(ctx context.Context, actor auth.Actor, entryID, reason string) error {
	return e.transition(ctx, actor, entryID, reason, "hide")
}

func (e *EntryEngine) transition(ctx context.Context, actor auth.Actor, entryID, reason, action string) error {
	if err := requireModerator(actor); err != nil {
		return err
	}
	if err := requireText("reason", reason, e.maxReason); err != nil {
		return err
	}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "entry not found: %s", entryID)
			}
			return err
		}

		oldState := entryState(entry)
		now := e.now().UTC()

		var auditAction string
		switch action {
		case "approve":
			if entry.ModerationStatus == model.ModerationApproved && entry.Visibility == model.VisibilityPublic {
				return nil // idempotent re-approve
			}
			if entry.ModerationStatus != model.ModerationUnreviewed && entry.ModerationStatus != model.ModerationFlagged {
				return apperr.Conflict("cannot approve entry in moderation status %s", entry.ModerationStatus)
			}
			entry.ModerationStatus = model.ModerationApproved
			entry.Visibility = model.VisibilityPublic
			auditAction = model.AuditEntryApproved

		case "reject":
			if entry.ModerationStatus == model.ModerationRejected && entry.Visibility == model.VisibilityHidden {
				return nil
			}
			if entry.ModerationStatus != model.ModerationUnreviewed && entry.ModerationStatus != model.ModerationFlagged {
				return apperr.Conflict("cannot reject entry in moderation status %s", entry.ModerationStatus)
			}
			entry.ModerationStatus = model.ModerationRejected
			entry.Visibility = model.VisibilityHidden
			auditAction = model.AuditEntryRejected

		case "hide":
			if entry.Visibility == model.VisibilityHidden {
				return nil
			}
			entry.Visibility = model.VisibilityHidden
			auditAction = model.AuditEntryHidden
		}

		if err := tx.UpdateEntryModeration(ctx, entry.ID, entry.Visibility, entry.ModerationStatus, now); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    auditAction,
			EntryID:   entry.ID,
			OldState:  oldState,
			NewState:  entryState(entry),
			Reason:    reason,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	zap.L().Info("entry moderated",
		zap.String("entry_id", entryID),
		zap.String("action", action),
		zap.String("actor_id", actor.ID),
	)
	return nil
}
