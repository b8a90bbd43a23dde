package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/examprep/backend/internal/config"
	"github.com/examprep/backend/internal/database"
	"github.com/examprep/backend/internal/engagement"
	"github.com/examprep/backend/internal/events"
)

var errNeedsPostgres = errors.New("this command requires STORE_DRIVER=postgres")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.DriverPostgres {
			return errNeedsPostgres
		}

		db, err := database.Connect(cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		if down, _ := cmd.Flags().GetBool("down"); down {
			if err := database.Rollback(db); err != nil {
				return err
			}
			logger.Info("reverted latest migration")
			return nil
		}
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-assignments",
	Short: "Delete expired, incomplete weekly assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.DriverPostgres {
			return errNeedsPostgres
		}
		s, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		svc := engagement.NewService(s, events.Log{}, logger, cfg.AssignmentTTL)
		n, err := svc.SweepExpiredAssignments(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired assignments\n", n)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import-tests <file.yaml>",
	Short: "Upsert test definitions from a YAML catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()

		catalog, err := database.ParseCatalog(f)
		if err != nil {
			return err
		}
		if cfg.StoreDriver != config.DriverPostgres {
			fmt.Fprintf(cmd.OutOrStdout(), "catalog valid: %d tests (not imported, store is %s)\n", len(catalog.Tests), cfg.StoreDriver)
			return nil
		}

		s, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := database.ImportCatalog(cmd.Context(), s, catalog); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d tests\n", len(catalog.Tests))
		return nil
	},
}

func init() {
	migrateCmd.Flags().Bool("down", false, "Revert the most recent migration instead")
}
