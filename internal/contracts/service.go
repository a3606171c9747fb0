package contracts

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/JaimeStill/covenant/internal/answer"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/internal/parse"
	"github.com/JaimeStill/covenant/internal/reports"
	"github.com/JaimeStill/covenant/internal/retrieve"
	"github.com/JaimeStill/covenant/internal/segment"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
	"github.com/JaimeStill/covenant/pkg/pagination"
	"github.com/JaimeStill/covenant/pkg/query"
	"github.com/JaimeStill/covenant/pkg/storage"
)

// Warnings recorded on contracts whose ingestion succeeded with caveats.
const (
	WarnNoClauses      = "no extractable clauses found"
	WarnExpiryInferred = "no expiry date or term found; default term applied"
)

// Deps holds the pipeline stages and stores a System runs over.
type Deps struct {
	Store     *corpus.Store
	Index     *index.Manager
	Parser    *parse.Parser
	Segmenter *segment.Segmenter
	Extractor *extract.Extractor
	Retriever *retrieve.Retriever
	Answerer  *answer.Answerer
	Storage   storage.System
	Logger    *slog.Logger
}

// Config tunes a System. Zero values take their defaults.
type Config struct {
	// RenewalWindow is the number of days before expiry a contract is due for renewal.
	RenewalWindow int
	// Horizon is the number of days reports look ahead for expirations.
	Horizon int
	// DefaultTerm applies to contracts stating neither expiry nor term.
	DefaultTerm time.Duration
	// AskTimeout bounds retrieval plus answering.
	AskTimeout time.Duration
	// RebuildOnCommit schedules a background index rebuild after each commit.
	RebuildOnCommit bool
	// VerifySchedule is a cron spec for index verification; empty disables it.
	VerifySchedule string
	Pagination     pagination.Config
	MaxUploadSize  int64
	Now            func() time.Time
}

func (c *Config) defaults() {
	if c.RenewalWindow <= 0 {
		c.RenewalWindow = extract.DefaultRenewalWindow
	}
	if c.Horizon <= 0 {
		c.Horizon = reports.DefaultHorizon
	}
	if c.AskTimeout <= 0 {
		c.AskTimeout = answer.DefaultTimeout
	}
	if c.Pagination.DefaultPageSize <= 0 {
		c.Pagination.DefaultPageSize = pagination.DefaultSize
	}
	if c.Pagination.MaxPageSize <= 0 {
		c.Pagination.MaxPageSize = pagination.MaxSize
	}
	if c.MaxUploadSize <= 0 {
		c.MaxUploadSize = parse.DefaultMaxSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type service struct {
	store     *corpus.Store
	index     *index.Manager
	parser    *parse.Parser
	segmenter *segment.Segmenter
	extractor *extract.Extractor
	retriever *retrieve.Retriever
	answerer  *answer.Answerer
	raw       *rawStore
	events    *broker
	locks     *keyedMutex
	cfg       Config
	logger    *slog.Logger
}

// New creates a contracts System over deps.
func New(deps Deps, cfg Config) System {
	cfg.defaults()
	logger := deps.Logger.With("system", "contracts")
	return &service{
		store:     deps.Store,
		index:     deps.Index,
		parser:    deps.Parser,
		segmenter: deps.Segmenter,
		extractor: deps.Extractor,
		retriever: deps.Retriever,
		answerer:  deps.Answerer,
		raw:       &rawStore{storage: deps.Storage, logger: logger},
		events:    newBroker(logger),
		locks:     newKeyedMutex(),
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger, s.cfg.Pagination, s.cfg.MaxUploadSize)
}

func (s *service) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting contracts system")

	var scheduler *cron.Cron
	if s.cfg.VerifySchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(s.cfg.VerifySchedule, func() {
			if err := s.index.VerifyAndRepair(lc.Context()); err != nil {
				s.logger.Error("index verification failed", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule index verification: %w", err)
		}
	}

	dependencies := lc.Checkpoint()

	lc.OnStartup(func() {
		dependencies()

		ctx := lc.Context()
		if err := s.store.Load(ctx); err != nil {
			s.logger.Error("corpus load failed", "error", err)
			return
		}
		if _, err := s.index.Rebuild(ctx); err != nil {
			s.logger.Error("initial index build failed", "error", err)
			return
		}
		if scheduler != nil {
			scheduler.Start()
			s.logger.Info("index verification scheduled", "schedule", s.cfg.VerifySchedule)
		}
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		s.index.Close()
		s.events.close()
		s.logger.Info("contracts system stopped")
	})

	return nil
}

func (s *service) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters corpus.Filter,
) (*pagination.PageResult[corpus.Contract], error) {
	page.Normalize(s.cfg.Pagination)

	if filters.Search == nil && page.Search != nil {
		filters.Search = page.Search
	}

	all := s.store.Snapshot().List(filters)
	if len(page.Sort) > 0 {
		sortContracts(all, page.Sort)
	}

	result := pagination.Slice(all, page)
	return &result, nil
}

func (s *service) Find(ctx context.Context, id uuid.UUID) (*corpus.Details, error) {
	return s.store.Get(id)
}

func (s *service) Ingest(ctx context.Context, cmd IngestCommand) (*corpus.Details, error) {
	id := uuid.New()

	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.process(ctx, id, cmd, nil)
}

func (s *service) Reingest(ctx context.Context, id uuid.UUID, cmd IngestCommand) (*corpus.Details, error) {
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, ok := s.store.Snapshot().Contract(id)
	if !ok {
		return nil, corpus.ErrNotFound
	}
	return s.process(ctx, id, cmd, &prev)
}

func (s *service) Reprocess(ctx context.Context, id uuid.UUID) (*corpus.Details, error) {
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	prev, ok := s.store.Snapshot().Contract(id)
	if !ok {
		return nil, corpus.ErrNotFound
	}

	data, err := s.raw.fetch(ctx, prev.Locator)
	if err != nil {
		return nil, err
	}

	cmd := IngestCommand{
		Data:        data,
		Filename:    prev.Filename,
		ContentType: prev.ContentType,
	}
	return s.process(ctx, id, cmd, &prev)
}

// process runs the ingestion pipeline for id. The caller holds the
// contract lock. Nothing becomes visible unless every stage succeeds.
func (s *service) process(ctx context.Context, id uuid.UUID, cmd IngestCommand, prev *corpus.Contract) (details *corpus.Details, err error) {
	start := time.Now()
	emit := func(stage Stage, count int) {
		s.events.publish(Event{
			ContractID: id,
			Filename:   cmd.Filename,
			Stage:      stage,
			Count:      count,
			Time:       s.cfg.Now().UTC(),
		})
	}

	defer func() {
		if err == nil {
			return
		}
		s.events.publish(Event{
			ContractID: id,
			Filename:   cmd.Filename,
			Stage:      StageFailed,
			Kind:       Kind(err),
			Error:      err.Error(),
			Time:       s.cfg.Now().UTC(),
		})
		s.logger.Warn("ingestion failed", "id", id, "filename", cmd.Filename, "kind", Kind(err), "error", err)
	}()

	if len(cmd.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", segment.ErrEmptyDocument, cmd.Filename)
	}

	doc, err := s.parser.Parse(ctx, cmd.Filename, cmd.ContentType, cmd.Data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cmd.Filename, err)
	}

	spans, err := s.segmenter.Segment(ctx, doc.Text, doc.Pages)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", cmd.Filename, err)
	}

	chunks := make([]corpus.Chunk, len(spans))
	for i, sp := range spans {
		chunks[i] = corpus.Chunk{
			ID:         corpus.ChunkID(id, sp.Position, sp.Text),
			ContractID: id,
			Page:       sp.Page,
			Position:   sp.Position,
			Text:       sp.Text,
		}
	}
	emit(StageSegmented, len(chunks))

	var warnings []string
	res, err := s.extractor.Extract(ctx, id, chunks)
	switch {
	case errors.Is(err, extract.ErrNoExtractableContent):
		warnings = append(warnings, WarnNoClauses)
	case err != nil:
		return nil, fmt.Errorf("extract %s: %w", cmd.Filename, err)
	}
	emit(StageExtracted, len(res.Clauses))

	uploadedAt := s.cfg.Now().UTC()
	if prev != nil {
		uploadedAt = prev.UploadedAt
	}

	meta := extract.DeriveMetadata(doc.Text, cmd.Filename, uploadedAt, extract.MetadataOptions{
		DefaultTerm: s.cfg.DefaultTerm,
	})
	if meta.ExpiryInferred {
		warnings = append(warnings, WarnExpiryInferred)
	}

	seg, err := s.index.Segment(ctx, id, chunks)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", cmd.Filename, err)
	}
	emit(StageIndexed, seg.Len())

	sum := digest(cmd.Data)
	locator, err := s.raw.store(ctx, id, sum, cmd.Filename, doc.ContentType, cmd.Data)
	if err != nil {
		return nil, err
	}

	compensate := func() {
		if prev == nil || prev.Locator != locator {
			s.raw.remove(context.WithoutCancel(ctx), locator)
		}
	}

	if err := ctx.Err(); err != nil {
		compensate()
		return nil, err
	}

	rec := corpus.Record{
		Contract: corpus.Contract{
			ID:          id,
			Name:        meta.Name,
			Parties:     meta.Parties,
			ExpiryDate:  meta.ExpiryDate,
			UploadedAt:  uploadedAt,
			Status:      extract.Status(meta.ExpiryDate, s.cfg.Now(), s.cfg.RenewalWindow),
			Risk:        extract.RiskScore(res.Insights),
			Filename:    cmd.Filename,
			ContentType: doc.ContentType,
			SizeBytes:   int64(len(cmd.Data)),
			PageCount:   doc.PageCount(),
			Locator:     locator,
			Digest:      sum,
			Warnings:    warnings,
		},
		Chunks:   chunks,
		Clauses:  res.Clauses,
		Insights: res.Insights,
	}

	snap, err := s.store.Commit(ctx, rec)
	if err != nil {
		compensate()
		return nil, fmt.Errorf("commit %s: %w", cmd.Filename, err)
	}

	s.index.Apply(seg)
	if s.cfg.RebuildOnCommit {
		s.index.Schedule()
	}

	if prev != nil && prev.Locator != locator {
		s.raw.remove(context.WithoutCancel(ctx), prev.Locator)
	}

	emit(StageCommitted, len(chunks))
	s.logger.Info(
		"contract ingested",
		"id", id,
		"filename", cmd.Filename,
		"chunks", len(chunks),
		"clauses", len(res.Clauses),
		"insights", len(res.Insights),
		"status", rec.Contract.Status,
		"risk", rec.Contract.Risk,
		"duration", time.Since(start),
	)

	return snap.Details(id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	unlock, err := s.locks.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	prev, ok := s.store.Snapshot().Contract(id)
	if !ok {
		return corpus.ErrNotFound
	}

	if _, err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.index.Remove(id)
	s.raw.remove(context.WithoutCancel(ctx), prev.Locator)

	s.logger.Info("contract deleted", "id", id, "filename", prev.Filename)
	return nil
}

func (s *service) Document(ctx context.Context, id uuid.UUID) (*Document, error) {
	c, ok := s.store.Snapshot().Contract(id)
	if !ok {
		return nil, corpus.ErrNotFound
	}

	data, err := s.raw.fetch(ctx, c.Locator)
	if err != nil {
		return nil, err
	}

	return &Document{
		Filename:    c.Filename,
		ContentType: c.ContentType,
		Data:        data,
	}, nil
}

func (s *service) Ask(ctx context.Context, cmd AskCommand) (*QueryResult, error) {
	snap := s.store.Snapshot()
	for _, id := range cmd.ContractIDs {
		if !snap.Has(id) {
			return nil, fmt.Errorf("%w: contract %s", corpus.ErrNotFound, id)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.AskTimeout)
	defer cancel()

	evidence, err := s.retriever.Retrieve(ctx, cmd.Query, cmd.TopK, index.NewScope(cmd.ContractIDs...))
	if err != nil {
		return nil, s.deadline(ctx, err)
	}

	text, err := s.answerer.Answer(ctx, cmd.Query, evidence)
	if err != nil {
		return nil, s.deadline(ctx, err)
	}

	if evidence == nil {
		evidence = []corpus.Evidence{}
	}
	return &QueryResult{Answer: text, Chunks: evidence}, nil
}

// deadline reports an expired ask budget as ErrTimeout.
func (s *service) deadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}

func (s *service) Reports(ctx context.Context) (*reports.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := reports.Build(s.store.Snapshot().Contracts(), s.cfg.Now().UTC(), s.cfg.Horizon)
	return &r, nil
}

func (s *service) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe()
}

func (s *service) RebuildIndex(ctx context.Context) (*index.Stats, error) {
	if _, err := s.index.Rebuild(ctx); err != nil {
		return nil, err
	}
	stats := s.index.Stats()
	return &stats, nil
}

// sortContracts orders contracts by the requested fields. Unknown fields
// are ignored; ties keep the default listing order.
func sortContracts(cs []corpus.Contract, fields []query.SortField) {
	slices.SortStableFunc(cs, func(a, b corpus.Contract) int {
		for _, f := range fields {
			var c int
			switch strings.ToLower(f.Field) {
			case "name":
				c = cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
			case "expiry_date", "expirydate":
				c = a.ExpiryDate.Compare(b.ExpiryDate)
			case "uploaded_on", "uploaded_at", "uploadedat":
				c = a.UploadedAt.Compare(b.UploadedAt)
			case "status":
				c = cmp.Compare(slices.Index(corpus.Statuses(), a.Status), slices.Index(corpus.Statuses(), b.Status))
			case "risk_score", "risk":
				c = cmp.Compare(slices.Index(corpus.Risks(), a.Risk), slices.Index(corpus.Risks(), b.Risk))
			}
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}
