package api

import (
	"context"
	"fmt"

	"github.com/JaimeStill/covenant/internal/answer"
	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/extract"
	"github.com/JaimeStill/covenant/internal/index"
	"github.com/JaimeStill/covenant/internal/parse"
	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/internal/retrieve"
	"github.com/JaimeStill/covenant/internal/segment"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Contracts contracts.System
	Prompts   prompts.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(ctx context.Context, runtime *Runtime, cfg *config.Config) (*Domain, error) {
	store := corpus.NewStore(runtime.Backend(), runtime.Logger)

	idx := index.NewManager(
		func() index.Source { return store.Snapshot() },
		index.Config{
			Embedder:  runtime.Embedder,
			Weight:    cfg.Index.VectorWeight,
			Workers:   cfg.Index.Workers,
			BatchSize: cfg.Index.BatchSize,
		},
		runtime.Logger,
	)

	parser, err := parse.New(ctx, cfg.Pipeline.MaxFileSizeBytes(), runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("parser init failed: %w", err)
	}

	promptsSystem := prompts.New(
		runtime.PromptBackend(),
		prompts.Config{
			Defaults: map[prompts.Stage]string{
				prompts.StageClassify: cfg.Generation.ClassifyInstructions,
				prompts.StageAnswer:   cfg.Generation.AnswerInstructions,
			},
			Pagination: runtime.Pagination,
		},
		runtime.Logger,
	)

	classifier, err := newClassifier(runtime, cfg, promptsSystem)
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(runtime, cfg, promptsSystem)
	if err != nil {
		return nil, err
	}

	contractsSystem := contracts.New(
		contracts.Deps{
			Store:  store,
			Index:  idx,
			Parser: parser,
			Segmenter: segment.New(segment.Options{
				Target:    cfg.Pipeline.ChunkTarget,
				Min:       cfg.Pipeline.ChunkMin,
				Max:       cfg.Pipeline.ChunkMax,
				Tolerance: cfg.Pipeline.ChunkTolerance,
			}),
			Extractor: extract.New(classifier, extract.Config{
				Threshold: cfg.Pipeline.Threshold,
				Workers:   cfg.Pipeline.Workers,
			}, runtime.Logger),
			Retriever: retrieve.New(idx, store, retrieve.Config{
				TopK:    cfg.Retrieval.TopK,
				Floor:   cfg.Retrieval.Floor,
				Overlap: cfg.Retrieval.Overlap,
				Boost:   cfg.Retrieval.ClauseBoost,
			}, runtime.Logger),
			Answerer: answer.New(generator, cfg.Retrieval.TimeoutDuration(), runtime.Logger),
			Storage:  runtime.Storage,
			Logger:   runtime.Logger,
		},
		contracts.Config{
			RenewalWindow:   cfg.Corpus.RenewalWindowDays,
			Horizon:         cfg.Corpus.HorizonDays,
			DefaultTerm:     cfg.Corpus.DefaultTermDuration(),
			AskTimeout:      cfg.Retrieval.TimeoutDuration(),
			RebuildOnCommit: cfg.Pipeline.RebuildOnCommit,
			VerifySchedule:  cfg.Index.Schedule(),
			Pagination:      runtime.Pagination,
			MaxUploadSize:   runtime.MaxUploadSize,
		},
	)

	return &Domain{
		Contracts: contractsSystem,
		Prompts:   promptsSystem,
	}, nil
}

// Start registers domain systems with the lifecycle coordinator.
func (d *Domain) Start(lc *lifecycle.Coordinator) error {
	if err := d.Prompts.Start(lc); err != nil {
		return fmt.Errorf("prompts start failed: %w", err)
	}
	if err := d.Contracts.Start(lc); err != nil {
		return fmt.Errorf("contracts start failed: %w", err)
	}
	return nil
}

func newClassifier(runtime *Runtime, cfg *config.Config, src prompts.Source) (extract.Classifier, error) {
	if cfg.Pipeline.Classifier != config.ClassifierModel {
		return extract.NewRuleClassifier(), nil
	}
	if runtime.Chat == nil {
		return nil, fmt.Errorf("model classifier requires a generation provider")
	}
	c, err := extract.NewModelClassifier(runtime.Chat, src, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}
	return c, nil
}

func newGenerator(runtime *Runtime, cfg *config.Config, src prompts.Source) (answer.Generator, error) {
	if runtime.Chat == nil {
		return answer.NewExtractive(cfg.Retrieval.Passages), nil
	}
	g, err := answer.NewChatGenerator(runtime.Chat, src)
	if err != nil {
		return nil, fmt.Errorf("generator init failed: %w", err)
	}
	return g, nil
}
