package cmd

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tgcasino/config"
	"tgcasino/database"
	"tgcasino/events"
	"tgcasino/metrics"
	"tgcasino/provider"
	"tgcasino/repository"
	"tgcasino/rng"
	"tgcasino/server"
	"tgcasino/service"
)

type app struct {
	cfg   *config.Config
	db    *database.DB
	dice  service.DiceService
	mines service.MinesService
	slots service.SlotService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	eventBus := events.NewBus()
	metrics.Subscribe(eventBus)

	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	random := rng.New()

	return &app{
		cfg:   cfg,
		db:    db,
		dice:  service.NewDiceService(uowFactory, random, cfg.DiceHouseEdgePercent),
		mines: service.NewMinesService(uowFactory, random, cfg.MinesHouseEdge),
		slots: service.NewSlotService(uowFactory, provider.NewClient(cfg), random, cfg),
	}, nil
}

func (a *app) close() {
	log.Info("Closing database connection...")
	a.db.Close()
}

// Run serves the API and sweeps stale reservations until ctx is cancelled
func Run(ctx context.Context, cfg *config.Config, migrateFirst bool) error {
	log.WithField("environment", cfg.Environment).Info("Starting casino engine")

	if migrateFirst {
		if err := database.MigrateUp(database.ConstructDatabaseURL(cfg.DatabaseURL, cfg.DatabaseName)); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	banks, err := repository.NewBankRepository(a.db).List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load banks: %w", err)
	}
	for _, bank := range banks {
		metrics.SetBankCapital(bank.Name, bank.Capital)
	}

	srv := server.New(cfg, server.NewHandler(a.dice, a.mines, a.slots), a.db)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		return runReconciler(gctx, a.slots, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("casino engine stopped: %w", err)
	}
	log.Info("Shutdown completed")
	return nil
}
