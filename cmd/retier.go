package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/scorer"
	"github.com/feelens/feelens-core/internal/store"
)

var retierConcurrency int

var retierCmd = &cobra.Command{
	Use:   "retier",
	Short: "Recompute evidence tiers and risk flags for all entries",
	Long:  "Re-runs the scorer over every entry from its current confirmed evidence. Used after threshold changes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tool"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		ids, err := st.ListEntryIDs(cmd.Context())
		if err != nil {
			return err
		}

		scoreCfg := initScorerConfig()
		var changed atomic.Int64

		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(retierConcurrency)
		for _, id := range ids {
			g.Go(func() error {
				updated, err := retierEntry(ctx, st, scoreCfg, id)
				if err != nil {
					return err
				}
				if updated {
					changed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("retier complete",
			zap.Int("entries", len(ids)),
			zap.Int64("changed", changed.Load()),
		)
		return nil
	},
}

func retierEntry(ctx context.Context, st store.Store, scoreCfg scorer.Config, entryID string) (bool, error) {
	var updated bool
	err := st.WithTx(ctx, func(tx store.Tx) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		confirmed, err := tx.ListConfirmedEvidence(ctx, entryID)
		if err != nil {
			return err
		}

		res := scorer.Score(scoreCfg, scorer.Input{
			ConfirmedEvidence: len(confirmed),
			TransparencyScore: entry.QuoteTransparencyScore,
			InitialQuoteTotal: entry.InitialQuoteTotal,
			FinalTotalPaid:    entry.FinalTotalPaid,
			DuplicateSuspect:  entry.HasRiskFlag(model.RiskDuplicateSuspect),
		})
		if entry.HasRiskFlag(model.RiskOutlierTotal) {
			res.RiskFlags = append(res.RiskFlags, model.RiskOutlierTotal)
		}

		if res.EvidenceTier == entry.EvidenceTier && equalFlagSets(entry.RiskFlags, res.RiskFlags) {
			return nil
		}
		now := time.Now().UTC()
		if err := tx.UpdateEntryScoring(ctx, entryID, res.EvidenceTier, res.RiskFlags, now); err != nil {
			return err
		}
		updated = true
		return tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   "system",
			ActorRole: "system",
			Action:    model.AuditEntryRescored,
			EntryID:   entryID,
			OldState:  fmt.Sprintf("tier=%s flags=%v", entry.EvidenceTier, entry.RiskFlags),
			NewState:  fmt.Sprintf("tier=%s flags=%v", res.EvidenceTier, res.RiskFlags),
			Reason:    "bulk retier",
			CreatedAt: now,
		})
	})
	return updated, err
}

func equalFlagSets(a, b []string) bool {
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

func init() {
	retierCmd.Flags().IntVar(&retierConcurrency, "concurrency", 4, "parallel workers")
	rootCmd.AddCommand(retierCmd)
}
