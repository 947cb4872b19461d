package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/model"
)

var schemaActivate bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage industry fee schemas",
}

var schemaLoadCmd = &cobra.Command{
	Use:   "load <file.json>",
	Short: "Load a schema definition as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tool"); err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read schema file")
		}
		var s model.IndustrySchema
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "parse schema file")
		}
		if s.IndustryKey == "" {
			return eris.New("schema file missing industry_key")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		registry := initRegistry(st)
		if err := registry.Put(cmd.Context(), &s, schemaActivate); err != nil {
			return err
		}
		zap.L().Info("schema loaded",
			zap.String("industry_key", s.IndustryKey),
			zap.Int("version", s.Version),
			zap.Bool("activated", schemaActivate),
		)
		return nil
	},
}

var schemaActivateCmd = &cobra.Command{
	Use:   "activate <industry_key> <version>",
	Short: "Make a stored schema version the active one",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("tool"); err != nil {
			return err
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return eris.Wrap(err, "parse version")
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		if err := initRegistry(st).Activate(cmd.Context(), args[0], version); err != nil {
			return err
		}
		zap.L().Info("schema activated", zap.String("industry_key", args[0]), zap.Int("version", version))
		return nil
	},
}

var schemaListCmd = &cobra.Command{
	Use:   "list <industry_key>",
	Short: "List stored schema versions for an industry",
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

		schemas, err := initRegistry(st).List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, s := range schemas {
			active := " "
			if s.IsActive {
				active = "*"
			}
			fmt.Printf("%s v%d %s %s\n", active, s.Version, s.IndustryKey, s.CreatedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	schemaLoadCmd.Flags().BoolVar(&schemaActivate, "activate", false, "activate this version immediately")
	schemaCmd.AddCommand(schemaLoadCmd, schemaActivateCmd, schemaListCmd)
	rootCmd.AddCommand(schemaCmd)
}
