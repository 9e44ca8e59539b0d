// Package cli implements the nexus CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openclaw/nexus/internal/config"
	"github.com/openclaw/nexus/internal/llm"
	"github.com/openclaw/nexus/internal/memory"
	"github.com/openclaw/nexus/internal/storage"
	"github.com/openclaw/nexus/internal/storage/postgres"
	"github.com/openclaw/nexus/internal/storage/sqlite"
)

var instanceFlag string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Memory engine for deployed agents",
	Long:  "Nexus mines agent transcripts into episodic events, entities, and decisions, and builds the memory digest injected into agent prompts.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&instanceFlag, "instance", "i", "", "Instance ID (default: all enabled instances where applicable)")
}

// runtime bundles everything a command needs, built from env config.
type runtime struct {
	cfg     *config.Config
	store   storage.Store
	service *memory.Service
	miner   *memory.Miner
}

func openRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	var store storage.Store
	var docs storage.DocumentReader
	switch cfg.Storage.StorageEngine {
	case "postgres":
		s, err := postgres.Open(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store, docs = s, s
	default:
		s, err := sqlite.Open(filepath.Join(cfg.Storage.DataPath, "nexus.db"))
		if err != nil {
			return nil, err
		}
		store, docs = s, s
	}

	var embedder llm.Embedder
	if cfg.LLM.OpenAIAPIKey != "" {
		embedder = llm.NewOpenAIEmbedder(llm.OpenAIConfig{
			APIKey: cfg.LLM.OpenAIAPIKey,
			Model:  cfg.LLM.EmbeddingModel,
		})
	}
	var extractor llm.Extractor
	if cfg.LLM.AnthropicAPIKey != "" {
		extractor = llm.NewAnthropicExtractor(llm.AnthropicConfig{
			APIKey: cfg.LLM.AnthropicAPIKey,
			Model:  cfg.LLM.AnthropicModel,
		})
	}

	service := memory.NewService(memory.ServiceConfig{
		Store:     store,
		Documents: docs,
		Embedder:  embedder,
		Extractor: extractor,
		AppURL:    cfg.App.AppURL,
	})

	fetcher := memory.NewHTTPLogFetcher(cfg.App.AppURL, cfg.App.InternalSecret)

	return &runtime{
		cfg:     cfg,
		store:   store,
		service: service,
		miner:   memory.NewMiner(service, fetcher),
	}, nil
}

func (rt *runtime) close() {
	if err := rt.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing store: %v\n", err)
	}
}

func requireInstance() string {
	if instanceFlag == "" {
		exitErr("missing flag", fmt.Errorf("--instance is required for this command"))
	}
	return instanceFlag
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
