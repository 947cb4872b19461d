// Package submit orchestrates the fee-entry submission flow: provider gate,
// rate limiting, schema validation, scoring, and the atomic insert.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/lifecycle"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/ratelimit"
	"github.com/feelens/feelens-core/internal/schema"
	"github.com/feelens/feelens-core/internal/scorer"
	"github.com/feelens/feelens-core/internal/store"
	"github.com/feelens/feelens-core/internal/validate"
)

// duplicateWindow bounds how far back the duplicate check looks.
const duplicateWindow = 30 * 24 * time.Hour

// Request is one fee-entry submission.
type Request struct {
	ProviderID             string         `json:"provider_id"`
	IndustryKey            string         `json:"industry_key"`
	ServiceKey             string         `json:"service_key,omitempty"`
	PricingModel           string         `json:"pricing_model"`
	FeeBreakdown           map[string]any `json:"fee_breakdown"`
	Context                map[string]any `json:"context,omitempty"`
	HiddenItems            []string       `json:"hidden_items,omitempty"`
	QuoteTransparencyScore int            `json:"quote_transparency_score,omitempty"`
}

// Response reports the accepted entry and its initial standing.
type Response struct {
	EntryID            string   `json:"entry_id"`
	Visibility         string   `json:"visibility"`
	ModerationStatus   string   `json:"moderation_status"`
	EvidenceTier       string   `json:"evidence_tier"`
	RiskFlags          []string `json:"risk_flags"`
	RequiresModeration bool     `json:"requires_moderation"`
}

// Service runs the submission flow.
type Service struct {
	store    store.Store
	registry *schema.Registry
	limiter  *ratelimit.Limiter
	policy   lifecycle.PublishPolicy
	scoreCfg scorer.Config
	now      func() time.Time
}

// NewService wires the submission collaborators.
func NewService(st store.Store, reg *schema.Registry, lim *ratelimit.Limiter, policy lifecycle.PublishPolicy, scoreCfg scorer.Config) *Service {
	return &Service{
		store:    st,
		registry: reg,
		limiter:  lim,
		policy:   policy,
		scoreCfg: scoreCfg,
		now:      time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Submit validates and persists one fee entry. The rate-limit check and the
// insert share a transaction so concurrent submissions cannot both slip under
// the cap.
func (s *Service) Submit(ctx context.Context, actor auth.Actor, req Request) (*Response, error) {
	if actor.ID == "" {
		return nil, apperr.New(apperr.CodeAuthRequired, "authentication required")
	}
	if err := checkShape(req); err != nil {
		return nil, err
	}

	cs, err := s.registry.Active(ctx, req.IndustryKey)
	if err != nil {
		return nil, err
	}

	fieldErrs := validate.FieldErrors{}
	fieldErrs.Merge("fee_breakdown", validate.FeeBreakdown(cs, model.PricingModel(req.PricingModel), req.FeeBreakdown))
	fieldErrs.Merge("context", validate.Context(cs, req.Context))
	if len(fieldErrs) > 0 {
		return nil, apperr.Validation(fieldErrs)
	}

	// Submitter-stated totals are advisory; itemized sums win.
	if total, ok := validate.RecomputeDisbursementsTotal(req.FeeBreakdown); ok {
		req.FeeBreakdown["disbursements_total"] = total
	}
	initialQuote := numberField(req.FeeBreakdown, "initial_quote_total")
	finalPaid := numberField(req.FeeBreakdown, "final_total_paid")

	var resp *Response
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		provider, err := tx.GetProvider(ctx, req.ProviderID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeProviderNotFound, "provider not found: %s", req.ProviderID)
			}
			return err
		}
		if provider.Status != model.ProviderApproved {
			return apperr.Newf(apperr.CodeProviderNotApproved, "provider %s is %s", provider.ID, provider.Status)
		}

		if err := s.limiter.CheckAndReserve(ctx, tx, actor.ID, req.ProviderID); err != nil {
			return err
		}

		now := s.now().UTC()
		duplicate := false
		if finalPaid > 0 {
			n, err := tx.CountSimilarEntries(ctx, actor.ID, req.ProviderID, finalPaid, now.Add(-duplicateWindow))
			if err != nil {
				return err
			}
			duplicate = n > 0
		}

		scored := scorer.Score(s.scoreCfg, scorer.Input{
			ConfirmedEvidence:   0,
			TransparencyScore:   req.QuoteTransparencyScore,
			InitialQuoteTotal:   initialQuote,
			FinalTotalPaid:      finalPaid,
			DuplicateSuspect:    duplicate,
			MaxPlausibleTotal:   cs.ValidationRules.MaxPlausibleTotal,
			MismatchPctOverride: cs.ValidationRules.QuotePaidMismatchPct,
		})

		visibility, moderation := lifecycle.InitialState(s.policy, scored.EvidenceTier, scored.RiskFlags, req.IndustryKey)

		entry := &model.FeeEntry{
			ID:                     uuid.New().String(),
			ProviderID:             req.ProviderID,
			SubmitterID:            actor.ID,
			IndustryKey:            req.IndustryKey,
			ServiceKey:             req.ServiceKey,
			PricingModel:           model.PricingModel(req.PricingModel),
			FeeBreakdown:           req.FeeBreakdown,
			Context:                req.Context,
			HiddenItems:            req.HiddenItems,
			QuoteTransparencyScore: req.QuoteTransparencyScore,
			InitialQuoteTotal:      initialQuote,
			FinalTotalPaid:         finalPaid,
			DeltaPct:               model.ComputeDeltaPct(initialQuote, finalPaid),
			EvidenceTier:           scored.EvidenceTier,
			RiskFlags:              scored.RiskFlags,
			Visibility:             visibility,
			ModerationStatus:       moderation,
			DisputeStatus:          model.DisputeNone,
			CreatedAt:              now,
			UpdatedAt:              now,
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    model.AuditEntryCreated,
			EntryID:   entry.ID,
			NewState:  string(visibility) + "/" + string(moderation),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		resp = &Response{
			EntryID:            entry.ID,
			Visibility:         string(visibility),
			ModerationStatus:   string(moderation),
			EvidenceTier:       string(scored.EvidenceTier),
			RiskFlags:          scored.RiskFlags,
			RequiresModeration: visibility != model.VisibilityPublic,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("entry submitted",
		zap.String("entry_id", resp.EntryID),
		zap.String("provider_id", req.ProviderID),
		zap.String("industry_key", req.IndustryKey),
		zap.String("evidence_tier", resp.EvidenceTier),
		zap.Strings("risk_flags", resp.RiskFlags),
	)
	return resp, nil
}

// checkShape rejects requests that are malformed before any schema lookup.
func checkShape(req Request) error {
	errs := map[string]string{}
	if req.ProviderID == "" {
		errs["provider_id"] = "must not be empty"
	}
	if req.IndustryKey == "" {
		errs["industry_key"] = "must not be empty"
	}
	if !model.ValidPricingModel(model.PricingModel(req.PricingModel)) {
		errs["pricing_model"] = "unknown pricing model"
	}
	if req.FeeBreakdown == nil {
		errs["fee_breakdown"] = "must not be empty"
	}
	if req.QuoteTransparencyScore < 0 || req.QuoteTransparencyScore > 5 {
		errs["quote_transparency_score"] = "must be between 1 and 5"
	}
	for i, item := range req.HiddenItems {
		if item == "" {
			errs[fmt.Sprintf("hidden_items[%d]", i)] = "must not be empty"
		}
	}
	if len(errs) > 0 {
		return apperr.Validation(errs)
	}
	return nil
}

func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
