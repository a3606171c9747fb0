package api

import (
	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/internal/corpus"
	"github.com/JaimeStill/covenant/internal/infrastructure"
	"github.com/JaimeStill/covenant/internal/prompts"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

// Runtime is the infrastructure view handed to the API's domain systems:
// the shared systems with a module-scoped logger plus request limits.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	MaxUploadSize int64
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Pagination:     cfg.API.Pagination,
		MaxUploadSize:  cfg.API.MaxUploadSizeBytes(),
	}
}

// Backend selects the corpus persistence: PostgreSQL when a database is
// configured, in-process memory otherwise.
func (r *Runtime) Backend() corpus.Backend {
	if r.Database == nil {
		return corpus.NewMemoryBackend()
	}
	return corpus.NewPostgresBackend(r.Database.Connection(), r.Logger)
}

// PromptBackend selects prompt override persistence the same way Backend
// does for the corpus.
func (r *Runtime) PromptBackend() prompts.Backend {
	if r.Database == nil {
		return prompts.NewMemoryBackend()
	}
	return prompts.NewPostgresBackend(r.Database.Connection(), r.Logger)
}
