package contracts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/internal/reports"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// System defines the public contract for contract intelligence operations.
type System interface {
	Handler() *Handler

	// Start hydrates the corpus, builds the index, and schedules index
	// verification on the lifecycle. Hydration waits for the startup hooks
	// registered before Start, such as the database ping.
	Start(lc *lifecycle.Coordinator) error

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters corpus.Filter,
	) (*pagination.PageResult[corpus.Contract], error)

	Find(ctx context.Context, id uuid.UUID) (*corpus.Details, error)
	Ingest(ctx context.Context, cmd IngestCommand) (*corpus.Details, error)
	Reingest(ctx context.Context, id uuid.UUID, cmd IngestCommand) (*corpus.Details, error)
	Reprocess(ctx context.Context, id uuid.UUID) (*corpus.Details, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Document(ctx context.Context, id uuid.UUID) (*Document, error)

	Ask(ctx context.Context, cmd AskCommand) (*QueryResult, error)
	Reports(ctx context.Context) (*reports.Report, error)

	// Subscribe streams ingestion stage events until the returned cancel
	// func is called.
	Subscribe() (<-chan Event, func())

	RebuildIndex(ctx context.Context) (*index.Stats, error)
}
