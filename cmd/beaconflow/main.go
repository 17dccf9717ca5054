package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/beaconflow/beaconflow/internal/agent"
	"github.com/beaconflow/beaconflow/internal/api"
	"github.com/beaconflow/beaconflow/internal/config"
	"github.com/beaconflow/beaconflow/internal/inference"
	"github.com/beaconflow/beaconflow/internal/knowledge"
	"github.com/beaconflow/beaconflow/internal/orchestration"
	"github.com/beaconflow/beaconflow/internal/warehouse"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger.Info("starting beaconflow",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Addr),
		zap.Int("data_sources", len(cfg.DataSources)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completer := inference.NewClient(&inference.Config{
		BaseURL:     cfg.Ollama.BaseURL,
		Model:       cfg.Ollama.Model,
		ContextSize: cfg.Ollama.ContextSize,
		Temperature: cfg.Ollama.Temperature,
		Timeout:     time.Duration(cfg.Ollama.TimeoutSec) * time.Second,
	})

	if models, err := completer.ListModels(ctx); err != nil {
		logger.Warn("ollama is unreachable, agents will degrade until it comes up", zap.Error(err))
	} else {
		found := false
		for _, m := range models {
			if m == cfg.Ollama.Model {
				found = true
				break
			}
		}
		if !found {
			logger.Warn("configured model not available in ollama", zap.String("model", cfg.Ollama.Model))
		}
	}

	auditor, err := warehouse.NewSQLiteAuditLogger(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditor.Close()

	vault := warehouse.NewMemoryCredentialVault()
	limiter := warehouse.NewTokenBucketRateLimiter()

	agentConfigs, err := buildAgentConfigs(ctx, cfg, vault, limiter, auditor)
	if err != nil {
		return err
	}

	var cache *agent.ResponseCache
	if cfg.Cache.Enabled {
		cache, err = agent.NewResponseCache(&agent.CacheConfig{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		})
		if err != nil {
			logger.Warn("redis is unreachable, running without response cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	store, err := knowledge.NewStore(&knowledge.Config{
		Path:     cfg.Knowledge.Path,
		InMemory: cfg.Knowledge.InMemory,
	})
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer store.Close()

	registry := agent.NewRegistry(&agent.RegistryConfig{
		Completer: completer,
		Cache:     cache,
		Knowledge: store,
		Logger:    logger,
	})
	if err := registry.Initialize(ctx, agentConfigs); err != nil {
		return fmt.Errorf("failed to initialize agents: %w", err)
	}
	defer registry.Dispose(context.Background())

	dispatcher := orchestration.NewDispatcher(nil)
	conversations := orchestration.NewConversationManager(dispatcher, logger)
	collaborations := orchestration.NewCollaborationManager(registry, cfg.Collaboration.MaxTurns, logger)
	orchestrator := orchestration.NewOrchestrator(registry, conversations, logger)

	go runConversationCleanup(ctx, conversations, cfg.Conversations, logger)

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.NewServer(&api.ServerConfig{
			Registry:       registry,
			Conversations:  conversations,
			Collaborations: collaborations,
			Orchestrator:   orchestrator,
			Knowledge:      store,
			Logger:         logger,
		}).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	dispatcher.Drain()
	if err := dispatcher.Shutdown(10 * time.Second); err != nil {
		logger.Warn("dispatcher shutdown incomplete", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// buildAgentConfigs constructs one connector-bound agent config per data
// source and registers credentials and rate limits.
func buildAgentConfigs(ctx context.Context, cfg *config.Config, vault warehouse.CredentialVault, limiter *warehouse.TokenBucketRateLimiter, auditor warehouse.AuditLogger) ([]agent.AgentConfig, error) {
	configs := make([]agent.AgentConfig, 0, len(cfg.DataSources))

	for i := range cfg.DataSources {
		ds := &cfg.DataSources[i]

		var connector warehouse.Connector
		switch ds.Connector.Type {
		case "sqlite", "":
			connector = warehouse.NewSQLiteConnector(ds.Connector.Path, auditor)

		case "snowflake":
			sf := ds.Connector.Snowflake
			token := os.Getenv(sf.TokenEnv)
			if token == "" {
				return nil, fmt.Errorf("data source %s: environment variable %s is empty", ds.Model.ID, sf.TokenEnv)
			}

			err := vault.Store(ctx, "snowflake", &warehouse.Credentials{
				SourceType:  warehouse.SourceTypeSnowflake,
				AccessToken: token,
			})
			if err != nil {
				return nil, fmt.Errorf("data source %s: %w", ds.Model.ID, err)
			}

			rph := ds.RequestsPerHour
			if rph <= 0 {
				rph = 3600
			}
			limiter.RegisterSource("snowflake", rph)

			connector = warehouse.NewSnowflakeConnector(&warehouse.SnowflakeConfig{
				AccountURL: sf.AccountURL,
				Database:   sf.Database,
				Schema:     sf.Schema,
				Warehouse:  sf.Warehouse,
				Role:       sf.Role,
			}, vault, limiter, auditor)

		default:
			return nil, fmt.Errorf("data source %s: unknown connector type %q", ds.Model.ID, ds.Connector.Type)
		}

		configs = append(configs, agent.AgentConfig{
			Model:     &ds.Model,
			Connector: connector,
		})
	}

	return configs, nil
}

// runConversationCleanup periodically removes old completed conversations
func runConversationCleanup(ctx context.Context, conversations *orchestration.ConversationManager, cfg config.ConversationConfig, logger *zap.Logger) {
	interval := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	maxAge := time.Duration(cfg.MaxAgeMinutes) * time.Minute
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := conversations.CleanupOld(maxAge); removed > 0 {
				logger.Info("conversation cleanup", zap.Int("removed", removed))
			}
		}
	}
}
