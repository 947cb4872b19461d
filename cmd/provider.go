package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
)

var providerIndustry string

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Manage listed providers",
}

var providerAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a provider in pending state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tool"); err != nil {
			return err
		}
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		p := &model.Provider{
			ID:          uuid.New().String(),
			Name:        args[0],
			IndustryKey: providerIndustry,
			Status:      model.ProviderPending,
			CreatedAt:   time.Now().UTC(),
		}
		err = st.WithTx(cmd.Context(), func(tx store.Tx) error {
			return tx.InsertProvider(cmd.Context(), p)
		})
		if err != nil {
			return err
		}
		zap.L().Info("provider added", zap.String("id", p.ID), zap.String("name", p.Name))
		return nil
	},
}

func newProviderStatusCmd(use, short string, status model.ProviderStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <provider_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate("tool"); err != nil {
				return err
			}
			st, err := initStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			err = st.WithTx(cmd.Context(), func(tx store.Tx) error {
				return tx.UpdateProviderStatus(cmd.Context(), args[0], status)
			})
			if err != nil {
				return err
			}
			zap.L().Info("provider status updated",
				zap.String("id", args[0]),
				zap.String("status", string(status)),
			)
			return nil
		},
	}
}

func init() {
	providerAddCmd.Flags().StringVar(&providerIndustry, "industry", "", "industry key for the provider")
	providerCmd.AddCommand(
		providerAddCmd,
		newProviderStatusCmd("approve", "Approve a pending provider", model.ProviderApproved),
		newProviderStatusCmd("reject", "Reject a pending provider", model.ProviderRejected),
	)
	rootCmd.AddCommand(providerCmd)
}
