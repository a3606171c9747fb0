package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/pkg/openapi"
	"github.com/JaimeStill/covenant/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) error {
	patterns := routes.Register(
		mux,
		domain.Contracts.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
	)

	spec := NewSpec(
		cfg.API.OpenAPI.Title,
		cfg.API.OpenAPI.Description,
		cfg.Version,
		cfg.API.BasePath,
	)

	for _, p := range patterns {
		method, path, _ := strings.Cut(p, " ")
		if !spec.Describes(method, path) {
			return fmt.Errorf("route %s is not described in the openapi spec", p)
		}
	}

	specBytes, err := openapi.MarshalJSON(spec)
	if err != nil {
		return fmt.Errorf("openapi spec marshal failed: %w", err)
	}

	mux.HandleFunc("GET "+cfg.API.OpenAPI.Path, openapi.ServeSpec(specBytes))
	return nil
}
