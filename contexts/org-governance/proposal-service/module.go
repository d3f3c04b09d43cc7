package proposalservice

import (
	"log/slog"
	"time"

	httpadapter "simgov/contexts/org-governance/proposal-service/adapters/http"
	"simgov/contexts/org-governance/proposal-service/adapters/memory"
	"simgov/contexts/org-governance/proposal-service/application/commands"
	"simgov/contexts/org-governance/proposal-service/application/queries"
	"simgov/contexts/org-governance/proposal-service/application/workers"
	"simgov/contexts/org-governance/proposal-service/domain/entities"
	"simgov/contexts/org-governance/proposal-service/ports"
)

type Module struct {
	Handler        httpadapter.Handler
	PhaseScheduler workers.PhaseScheduler
	OutboxRelay    workers.OutboxRelay
	Store          *memory.Store
}

type Dependencies struct {
	Proposals      ports.ProposalRepository
	Directory      ports.MemberDirectory
	Idempotency    ports.IdempotencyStore
	Outbox         ports.OutboxWriter
	OutboxRepo     ports.OutboxRepository
	Publisher      ports.EventPublisher
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	OutboxBatch    int
	Logger         *slog.Logger
}

func NewModule(deps Dependencies) Module {
	proposalUseCase := commands.ProposalUseCase{
		Proposals:      deps.Proposals,
		Directory:      deps.Directory,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	queryUseCase := queries.ProposalQueryUseCase{
		Proposals: deps.Proposals,
	}
	return Module{
		Handler: httpadapter.Handler{
			Proposals: proposalUseCase,
			Queries:   queryUseCase,
			Logger:    deps.Logger,
		},
		PhaseScheduler: workers.PhaseScheduler{
			Proposals: deps.Proposals,
			Directory: deps.Directory,
			Outbox:    deps.Outbox,
			Clock:     deps.Clock,
			IDGen:     deps.IDGen,
			Logger:    deps.Logger,
		},
		OutboxRelay: workers.OutboxRelay{
			Outbox:    deps.OutboxRepo,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			BatchSize: deps.OutboxBatch,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(seed []entities.Proposal, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Proposals:      store,
		Directory:      store,
		Idempotency:    store,
		Outbox:         store,
		OutboxRepo:     store,
		Clock:          store,
		IDGen:          store,
		IdempotencyTTL: 24 * time.Hour,
		Logger:         logger,
	})
	module.Store = store
	return module
}
