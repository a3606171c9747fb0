package main

import (
	"context"
	"time"

	"github.com/JaimeStill/covenant/internal/config"
	"github.com/JaimeStill/covenant/internal/infrastructure"
	"github.com/JaimeStill/covenant/pkg/lifecycle"
)

// Server owns the process: infrastructure, mounted modules, and the
// listener.
type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(ctx, infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	modules.Mount(router)

	infra.Logger.Info("server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"modules", router.Prefixes(),
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

// Start registers every subsystem with the lifecycle in dependency order:
// infrastructure, then the domain, then the listener.
func (s *Server) Start() error {
	began := time.Now()
	s.infra.Logger.Info("starting service")

	lc := s.infra.Lifecycle
	for _, start := range []func(*lifecycle.Coordinator) error{
		func(*lifecycle.Coordinator) error { return s.infra.Start() },
		s.modules.Domain.Start,
		s.http.Start,
	} {
		if err := start(lc); err != nil {
			return err
		}
	}

	go func() {
		lc.WaitForStartup()
		s.infra.Logger.Info("all subsystems ready", "startup", time.Since(began))
	}()
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
