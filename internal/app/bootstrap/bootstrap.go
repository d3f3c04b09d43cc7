package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	electionservice "simgov/contexts/org-governance/election-service"
	electionpostgres "simgov/contexts/org-governance/election-service/adapters/postgres"
	proposalservice "simgov/contexts/org-governance/proposal-service"
	proposalpostgres "simgov/contexts/org-governance/proposal-service/adapters/postgres"
	"simgov/internal/platform/config"
	"simgov/internal/platform/db"
	"simgov/internal/platform/httpserver"
	"simgov/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	elections    electionservice.Module
	proposals    proposalservice.Module
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	elections, proposals := buildModules(cfg, pg, nil, logger)
	server := httpserver.New(elections, proposals, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	elections, proposals := buildModules(cfg, pg, kafka, logger)
	return &WorkerApp{
		postgres:     pg,
		elections:    elections,
		proposals:    proposals,
		pollInterval: cfg.SchedulerTick,
		logger:       logger,
	}, nil
}

func buildModules(
	cfg config.Config,
	pg *db.Postgres,
	publisher *messaging.Kafka,
	logger *slog.Logger,
) (electionservice.Module, proposalservice.Module) {
	electionRepo := electionpostgres.NewRepository(pg.DB, logger)
	electionDeps := electionservice.Dependencies{
		Elections:      electionRepo,
		Petitions:      electionRepo,
		Directory:      electionRepo,
		Idempotency:    electionRepo,
		Outbox:         electionRepo,
		OutboxRepo:     electionRepo,
		Clock:          electionpostgres.SystemClock{},
		IDGen:          electionpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		OutboxBatch:    cfg.OutboxBatch,
		Logger:         logger,
	}

	proposalRepo := proposalpostgres.NewRepository(pg.DB, logger)
	proposalDeps := proposalservice.Dependencies{
		Proposals:      proposalRepo,
		Directory:      proposalRepo,
		Idempotency:    proposalRepo,
		Outbox:         proposalRepo,
		OutboxRepo:     proposalRepo,
		Clock:          proposalpostgres.SystemClock{},
		IDGen:          proposalpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		OutboxBatch:    cfg.OutboxBatch,
		Logger:         logger,
	}

	if publisher != nil {
		electionDeps.Publisher = publisher
		proposalDeps.Publisher = publisher
	}
	return electionservice.NewModule(electionDeps), proposalservice.NewModule(proposalDeps)
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		// A failed sweep is retried on the next tick; the worker never exits
		// on a transient listing or relay error.
		w.runSweep(ctx, "election_phase_sweep", w.elections.PhaseScheduler.RunOnce)
		w.runSweep(ctx, "proposal_phase_sweep", w.proposals.PhaseScheduler.RunOnce)
		w.runSweep(ctx, "election_outbox_relay", w.elections.OutboxRelay.RunOnce)
		w.runSweep(ctx, "proposal_outbox_relay", w.proposals.OutboxRelay.RunOnce)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) runSweep(ctx context.Context, name string, run func(context.Context) error) {
	if err := run(ctx); err != nil {
		w.logger.Error("worker sweep failed",
			"event", "bootstrap_worker_sweep_failed",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"sweep", name,
			"error", err.Error(),
		)
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
