package agentconfig

import (
	"context"
	"fmt"
	"log/slog"

	"AgentChat/internal/backend"
)

// API is the subset of the backend client the configuration screens use
type API interface {
	SaveConfig(ctx context.Context, cfg backend.TeamConfig) (backend.MessageResponse, error)
	SaveSupervisorProfile(ctx context.Context, p backend.SupervisorProfileRequest) (backend.MessageResponse, error)
	RunSavedConfig(ctx context.Context) (backend.RunResponse, error)
	RunSupervisorProfile(ctx context.Context) (backend.RunResponse, error)
	RunCombinedConfig(ctx context.Context) (backend.RunResponse, error)
	ExampleSpec(ctx context.Context) (backend.TeamConfig, error)
	RunAgent(ctx context.Context, tasks []backend.RunTask) (backend.RunAgentResponse, error)
}

// Starter starts an interactive team conversation
type Starter interface {
	Start(ctx context.Context, cfg backend.TeamConfig) error
}

// Service sends validated configurations to the backend. Local validation
// always runs first; an invalid configuration never reaches the network.
type Service struct {
	api    API
	logger *slog.Logger
}

// NewService creates a service over api
func NewService(api API, logger *slog.Logger) (*Service, error) {
	if api == nil {
		return nil, fmt.Errorf("api cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Service{api: api, logger: logger}, nil
}

// Save stores the team configuration on the backend
func (s *Service) Save(ctx context.Context, b *Builder) (string, error) {
	cfg, err := b.TeamConfig()
	if err != nil {
		return "", err
	}
	resp, err := s.api.SaveConfig(ctx, cfg)
	if err != nil {
		return "", fmt.Errorf("failed to save configuration: %w", err)
	}
	s.logger.Info("saved configuration", "assistants", len(cfg.Assistants))
	return resp.Message, nil
}

// Launch starts an interactive team chat with the current configuration
func (s *Service) Launch(ctx context.Context, b *Builder, starter Starter) error {
	cfg, err := b.TeamConfig()
	if err != nil {
		return err
	}
	if err := starter.Start(ctx, cfg); err != nil {
		return fmt.Errorf("failed to launch team: %w", err)
	}
	s.logger.Info("launched team", "assistants", len(cfg.Assistants), "max_turns", cfg.MaxTurns)
	return nil
}

// SaveSupervisor stores the supervisor profile together with the prompt
func (s *Service) SaveSupervisor(ctx context.Context, p SupervisorProfile, prompt string) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	resp, err := s.api.SaveSupervisorProfile(ctx, p.Request(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to save supervisor profile: %w", err)
	}
	s.logger.Info("saved supervisor profile", "name", p.Name, "persona", p.Persona)
	return resp.Message, nil
}

// RunSaved runs the configuration last saved on the backend
func (s *Service) RunSaved(ctx context.Context) (backend.RunResponse, error) {
	return s.run(ctx, "saved", s.api.RunSavedConfig)
}

// RunSupervisorProfile runs the saved supervisor profile
func (s *Service) RunSupervisorProfile(ctx context.Context) (backend.RunResponse, error) {
	return s.run(ctx, "supervisor", s.api.RunSupervisorProfile)
}

// RunCombined runs the saved supervisor with the saved assistants
func (s *Service) RunCombined(ctx context.Context) (backend.RunResponse, error) {
	return s.run(ctx, "combined", s.api.RunCombinedConfig)
}

func (s *Service) run(ctx context.Context, kind string, fn func(context.Context) (backend.RunResponse, error)) (backend.RunResponse, error) {
	resp, err := fn(ctx)
	if err != nil {
		return backend.RunResponse{}, fmt.Errorf("failed to run %s config: %w", kind, err)
	}
	s.logger.Info("ran config", "kind", kind, "messages", len(resp.ChatHistory))
	return resp, nil
}

// RunAgent executes the quick-run task panel
func (s *Service) RunAgent(ctx context.Context, p *TaskPanel) (backend.RunAgentResponse, error) {
	tasks, err := p.Resolve()
	if err != nil {
		return nil, err
	}
	resp, err := s.api.RunAgent(ctx, tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to run agent: %w", err)
	}
	s.logger.Info("ran agent", "tasks", len(tasks))
	return resp, nil
}

// LoadExample replaces the builder contents with the backend's example
func (s *Service) LoadExample(ctx context.Context, b *Builder) error {
	cfg, err := s.api.ExampleSpec(ctx)
	if err != nil {
		return fmt.Errorf("failed to load example configuration: %w", err)
	}
	if err := b.Replace(cfg); err != nil {
		return err
	}
	s.logger.Info("loaded example configuration", "assistants", len(cfg.Assistants))
	return nil
}
