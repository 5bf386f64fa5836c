package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/pailas/app"
	"github.com/kilianp07/pailas/core/model"
	"github.com/kilianp07/pailas/core/store"
	"github.com/kilianp07/pailas/pkg/export"
)

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Rebuild the occupancy ledger from every order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			res, err := svc.Engine.Resync(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Import reference data and orders from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := app.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		ds, err := app.ImportSeed(ctx, st, args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d vessels, %d compatibility rows, %d orders, %d occupancy rows\n",
			len(ds.Vessels), len(ds.Compatibility), len(ds.Orders), len(ds.Occupancy))
		return err
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Store.AutoMigrate = false
		ctx := cmd.Context()
		st, err := app.OpenStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()
		m, ok := st.(store.Migrator)
		if !ok {
			return fmt.Errorf("driver %s has no schema", cfg.Store.Driver)
		}
		if err := m.Migrate(ctx); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s schema up to date\n", cfg.Store.Driver)
		return err
	},
}

var (
	ledgerFormat string
	ledgerVessel string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Print the occupancy ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			var (
				recs []model.OccupancyRecord
				err  error
			)
			if ledgerVessel != "" {
				recs, err = svc.Store.OccupancyForVessel(ctx, ledgerVessel)
			} else {
				recs, err = svc.Store.Occupancy(ctx)
			}
			if err != nil {
				return err
			}
			return export.Write(cmd.OutOrStdout(), ledgerFormat, recs)
		})
	},
}

func init() {
	ledgerCmd.Flags().StringVar(&ledgerFormat, "format", export.FormatCSV, "output format: csv or json")
	ledgerCmd.Flags().StringVar(&ledgerVessel, "vessel", "", "only this vessel")
	rootCmd.AddCommand(resyncCmd, seedCmd, migrateCmd, ledgerCmd)
}
