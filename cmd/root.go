package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tgcasino/config"
	"tgcasino/database"
)

// NewRootCommand builds the casino CLI. Without a subcommand it serves HTTP.
func NewRootCommand() *cobra.Command {
	var migrateFirst bool

	root := &cobra.Command{
		Use:          "tgcasino",
		Short:        "Casino game engine for the Telegram mini-app",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(config.Get())
			// Clients expect amounts as JSON numbers
			decimal.MarshalJSONWithoutQuotes = true
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), config.Get(), false)
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the game API and run the reservation reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), config.Get(), migrateFirst)
		},
	}
	serve.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")

	reconcile := &cobra.Command{
		Use:   "reconcile",
		Short: "Refund stale slot reservations once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), config.Get())
			if err != nil {
				return err
			}
			defer a.close()

			refunded, err := a.slots.ReconcileStaleReservations(cmd.Context())
			log.WithField("refunded", refunded).Info("Reconciliation finished")
			return err
		},
	}

	root.AddCommand(serve, newMigrateCommand(), reconcile)
	return root
}

func newMigrateCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	databaseURL := func() string {
		cfg := config.Get()
		return database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)
	}

	migrate.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return database.MigrateUp(databaseURL())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := "1"
				if len(args) == 1 {
					steps = args[0]
				}
				return database.MigrateDown(databaseURL(), steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := database.MigrateStatus(databaseURL()); err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				return nil
			},
		},
	)
	return migrate
}
