package electionservice

import (
	"log/slog"
	"time"

	httpadapter "simgov/contexts/org-governance/election-service/adapters/http"
	"simgov/contexts/org-governance/election-service/adapters/memory"
	"simgov/contexts/org-governance/election-service/application/commands"
	"simgov/contexts/org-governance/election-service/application/queries"
	"simgov/contexts/org-governance/election-service/application/workers"
	"simgov/contexts/org-governance/election-service/domain/entities"
	"simgov/contexts/org-governance/election-service/ports"
)

type Module struct {
	Handler        httpadapter.Handler
	PhaseScheduler workers.PhaseScheduler
	OutboxRelay    workers.OutboxRelay
	Store          *memory.Store
}

type Dependencies struct {
	Elections      ports.ElectionRepository
	Petitions      ports.PetitionRepository
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
	electionUseCase := commands.ElectionUseCase{
		Elections:      deps.Elections,
		Directory:      deps.Directory,
		Idempotency:    deps.Idempotency,
		Outbox:         deps.Outbox,
		Clock:          deps.Clock,
		IDGen:          deps.IDGen,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
	}
	petitionUseCase := commands.PetitionUseCase{
		Petitions: deps.Petitions,
		Elections: deps.Elections,
		Directory: deps.Directory,
		Outbox:    deps.Outbox,
		Clock:     deps.Clock,
		IDGen:     deps.IDGen,
		Logger:    deps.Logger,
	}
	queryUseCase := queries.ElectionQueryUseCase{
		Elections: deps.Elections,
		Petitions: deps.Petitions,
		Clock:     deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Elections: electionUseCase,
			Petitions: petitionUseCase,
			Queries:   queryUseCase,
			Logger:    deps.Logger,
		},
		PhaseScheduler: workers.PhaseScheduler{
			Elections: deps.Elections,
			Petitions: deps.Petitions,
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

func NewInMemoryModule(seed []entities.Election, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Elections:      store,
		Petitions:      store,
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
