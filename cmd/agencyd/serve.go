package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/cortexstack/agency/agent"
	"github.com/cortexstack/agency/config"
	"github.com/cortexstack/agency/engine"
	"github.com/cortexstack/agency/logging"
	"github.com/cortexstack/agency/model"
	"github.com/cortexstack/agency/model/anthropic"
	"github.com/cortexstack/agency/model/openai"
	"github.com/cortexstack/agency/server"
	"github.com/cortexstack/agency/snapshot"
	"github.com/cortexstack/agency/tool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agency HTTP server",
	Long: `Start the agency daemon.

Loads configuration, builds the model backend and tool registry, and serves
the HTTP API until SIGINT or SIGTERM. On shutdown a running agency is stopped,
which freezes every agent and persists a snapshot for later resumption.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "path to config file (default: search agency.yaml)")
	serveCmd.Flags().String("snapshot", "", "snapshot name to resume the agency from on startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg := config.Default()
	if found, err := config.FindConfig(configPath); err == nil {
		cfg, err = config.Load(found)
		if err != nil {
			return fmt.Errorf("failed to load config %s: %w", found, err)
		}
	} else if configPath != "" {
		// An explicit --config that does not exist is an error; silent
		// fallback to defaults is only for the search-path case.
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(level, cfg.LogFormat, os.Stdout)

	backend, err := buildBackend(cfg.Model)
	if err != nil {
		return err
	}
	logger.Info("model backend configured", "provider", cfg.Model.Provider, "model", backend.Info().Name)

	registry := tool.NewRegistry()
	if cfg.Shell.Enabled {
		registry.Register(tool.NewShellTool(shellConfig(cfg.Shell)))
		logger.Info("shell tool enabled", "working_dir", cfg.Shell.WorkingDir)
	}

	store, closeStore, err := buildSnapshotStore(cfg.Snapshots)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("snapshot store configured", "backend", cfg.Snapshots.Backend)

	roster := make([]engine.AgentSpec, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		roster = append(roster, engine.AgentSpec{Name: a.Name, Instruction: a.Instruction})
	}

	supervisor := engine.New(backend, store, func(o *engine.Options) {
		if len(roster) > 0 {
			o.Agents = roster
		}
		o.Registry = registry
		o.Logger = logger
		o.Runtime = []func(o *agent.RuntimeOptions){func(o *agent.RuntimeOptions) {
			o.MaxSteps = cfg.Turn.MaxSteps
			o.MaxAttempts = cfg.Turn.MaxAttempts
			o.BaseDelay = cfg.Turn.BaseDelay()
			o.ToolTimeout = cfg.Turn.ToolTimeout()
			o.Logger = logger
		}}
	})

	snapshotName, err := cmd.Flags().GetString("snapshot")
	if err != nil {
		return err
	}
	if snapshotName != "" {
		if err := supervisor.Start(cmd.Context(), snapshotName); err != nil {
			return fmt.Errorf("failed to resume from snapshot %s: %w", snapshotName, err)
		}
		logger.Info("agency resumed", "snapshot", snapshotName)
	}

	srv := server.New(cfg.Listen.Addr(), supervisor, func(o *server.Options) {
		o.Logger = logger
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if supervisor.Running() {
		name, err := supervisor.Stop(shutdownCtx)
		if err != nil {
			logger.Error("failed to stop agency", "error", err)
		} else {
			logger.Info("agency stopped", "snapshot", name)
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// buildBackend constructs the model backend selected by the config.
func buildBackend(cfg config.ModelConfig) (model.Backend, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.APIKey = cfg.APIKey
		}), nil

	case "openai":
		var clientOpts []openaiopt.RequestOption
		if cfg.APIKey != "" {
			clientOpts = append(clientOpts, openaiopt.WithAPIKey(cfg.APIKey))
		}
		client := openaisdk.NewClient(clientOpts...)
		return openai.NewFromClient(&client, func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
		}), nil

	case "mock":
		return model.NewMockBackend(cfg.Name), nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %s (supported: anthropic, openai, mock)", cfg.Provider)
	}
}

// buildSnapshotStore constructs the snapshot store selected by the config.
// The returned func releases backend resources on shutdown.
func buildSnapshotStore(cfg config.SnapshotConfig) (snapshot.Store, func(), error) {
	switch cfg.Backend {
	case "file":
		store, err := snapshot.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case "sqlite":
		store, err := snapshot.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported snapshot backend: %s (supported: file, sqlite)", cfg.Backend)
	}
}

// shellConfig maps the YAML shell section onto the tool's config.
func shellConfig(cfg config.ShellConfig) tool.ShellConfig {
	out := tool.DefaultShellConfig()
	out.Enabled = cfg.Enabled
	out.WorkingDir = cfg.WorkingDir
	if len(cfg.DeniedPatterns) > 0 {
		out.DeniedCmds = cfg.DeniedPatterns
	}
	if len(cfg.AllowedPrefixes) > 0 {
		out.AllowedCmds = cfg.AllowedPrefixes
	}
	if cfg.DefaultTimeoutSec > 0 {
		out.DefaultTimeout = time.Duration(cfg.DefaultTimeoutSec) * time.Second
	}
	return out
}
