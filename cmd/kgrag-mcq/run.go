package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/kgrag-mcq/internal/batch"
	"github.com/danielpatrickdp/kgrag-mcq/internal/codec"
	"github.com/danielpatrickdp/kgrag-mcq/internal/config"
	"github.com/danielpatrickdp/kgrag-mcq/internal/embed"
	"github.com/danielpatrickdp/kgrag-mcq/internal/evidence"
	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
	"github.com/danielpatrickdp/kgrag-mcq/internal/graph"
	"github.com/danielpatrickdp/kgrag-mcq/internal/index"
	"github.com/danielpatrickdp/kgrag-mcq/internal/log"
	"github.com/danielpatrickdp/kgrag-mcq/internal/metrics"
	"github.com/danielpatrickdp/kgrag-mcq/internal/model"
	"github.com/danielpatrickdp/kgrag-mcq/internal/prompt"
	"github.com/danielpatrickdp/kgrag-mcq/internal/retrieval"
	"github.com/danielpatrickdp/kgrag-mcq/internal/state"
)

// #region run
func runMCQ(ctx context.Context, cmd *cobra.Command, modelID string, opts options) error {
	started := time.Now()

	// 1. Configuration: everything that can fail fast does so before any model call
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.Log.Level)

	mode, err := prompt.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	var literal *string
	if cmd.Flags().Changed("prior_knowledge") {
		literal = &opts.prior
	}
	prior, err := config.LoadPriorKnowledge(literal, opts.priorPath)
	if err != nil {
		return err
	}
	builder, err := prompt.NewBuilder(mode, prior)
	if err != nil {
		return err
	}
	prompts, err := config.LoadSystemPrompts(cfg.Paths.SystemPrompts)
	if err != nil {
		return err
	}
	questions, err := batch.LoadQuestions(cfg.Paths.Questions)
	if err != nil {
		return err
	}

	// 2. Retrieval stack
	codecClient, err := codec.NewCodecClient(cfg.Codec.Addr)
	if err != nil {
		return failure.New(failure.Configuration, "codec client", err)
	}
	defer codecClient.Close()

	cache, err := embed.OpenCache(cfg.Paths.EmbeddingCache)
	if err != nil {
		return failure.New(failure.Configuration, "embedding cache", err)
	}
	defer cache.Close()

	// 3. Model, also used for entity extraction when enabled
	client, err := model.New(ctx, cfg.Model, modelID, codecClient)
	if err != nil {
		return err
	}
	var extractor retrieval.EntityExtractor
	if cfg.Retrieval.EntityExtraction {
		extractor = retrieval.NewLLMEntityExtractor(client, prompts[config.PromptEntityExtraction])
	}
	assembler, err := buildAssembler(ctx, cfg, codecClient, cache, extractor)
	if err != nil {
		return err
	}

	// 4. Output, ledger and metrics
	writer := batch.NewCSVWriter(cfg.Paths.OutputDir, batch.OutputName(modelID, mode, started))
	runCfg := batch.RunConfigFrom(cfg, prompts[config.PromptMCQ])

	m := metrics.New()
	observers := []batch.Observer{batch.MetricsObserver(m)}
	if cfg.Metrics.Addr != "" {
		serveCtx, stopServe := context.WithCancel(ctx)
		defer stopServe()
		go func() {
			if err := m.Serve(serveCtx, cfg.Metrics.Addr); err != nil {
				log.Warnf("metrics endpoint: %v", err)
			}
		}()
	}

	ledger, runID := openLedger(ctx, cfg, modelID, mode, writer.Path())
	if ledger != nil {
		defer ledger.Close()
		observers = append(observers,
			batch.LedgerObserver(ledger, runID),
			batch.ProvenanceObserver(ledger.DB(), runID, runCfg))
	}

	log.Infof("kgrag-mcq: model=%s mode=%s questions=%d %s", modelID, mode, len(questions), cfg)

	// 5. Run
	runner := batch.NewRunner(assembler, builder, client, writer, runCfg, observers...)
	sum, runErr := runner.Run(ctx, questions)

	if ledger != nil {
		totals := state.RunTotals{Answered: sum.Answered, Skipped: sum.Skipped, Failed: sum.Failed, PersistErrors: sum.PersistErrors}
		if err := ledger.FinishRun(context.WithoutCancel(ctx), runID, totals); err != nil {
			log.Warnf("ledger: %v", err)
		}
	}

	out := cmd.OutOrStdout()
	printf(out, "Results: %s\n", sum.OutputPath)
	printf(out, "Answered %d, skipped %d, failed %d, persist errors %d\n",
		sum.Answered, sum.Skipped, sum.Failed, sum.PersistErrors)
	printf(out, "Completed in %.4f hours\n", sum.Elapsed.Hours())
	return runErr
}

// #endregion run

// #region config
// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	explicit := cmd.Flags().Changed("config") || os.Getenv("KGRAG_CONFIG") != ""
	cfg, err := config.Load(opts.configPath, !explicit)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("start_index") {
		cfg.Run.StartIndex = opts.startIndex
	}
	if flags.Changed("end_index") {
		cfg.Run.EndIndex = opts.endIndex
	}
	if opts.dropFailedRows {
		cfg.Run.EmitErrorRows = false
	}
	if opts.legacyBoundary {
		cfg.Run.LegacySkipBoundary = true
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// #endregion config

// #region retrieval
func buildAssembler(ctx context.Context, cfg config.Config, codecClient *codec.CodecClient,
	cache *badger.DB, extractor retrieval.EntityExtractor) (*retrieval.Assembler, error) {
	nodeEmb, err := newEmbedder(ctx, cfg.Embedding.Provider, cfg.Embedding.NodeModel, codecClient, cache)
	if err != nil {
		return nil, err
	}
	ctxEmb, err := newEmbedder(ctx, cfg.Embedding.Provider, cfg.Embedding.ContextModel, codecClient, cache)
	if err != nil {
		return nil, err
	}

	var idx index.Index
	switch cfg.Retrieval.IndexBackend {
	case "codec":
		idx = index.NewCodecIndex(codecClient)
	default:
		sqliteIdx, err := index.OpenSQLite(ctx, cfg.Paths.VectorDB, nodeEmb)
		if err != nil {
			return nil, failure.New(failure.Configuration, "similarity index", err)
		}
		log.Infof("similarity index: %d nodes from %s", sqliteIdx.Len(), cfg.Paths.VectorDB)
		idx = sqliteIdx
	}

	table, err := evidence.LoadCSV(cfg.Paths.NodeContext)
	if err != nil {
		return nil, failure.New(failure.Configuration, "evidence table", err)
	}
	if cfg.Retrieval.EdgeEvidence {
		edges, err := graph.LoadCSV(cfg.Paths.EdgeContext)
		if err != nil {
			return nil, failure.New(failure.Configuration, "edge evidence", err)
		}
		n := table.AttachEdges(edges)
		log.Infof("edge evidence: %d of %d statements linked to %d edges", n, table.Len(), edges.Len())
	}

	ac := retrieval.DefaultAssemblerConfig()
	ac.NodeTopK = cfg.Retrieval.NodeTopK
	ac.Extractor = extractor
	return retrieval.NewAssembler(idx, table, ctxEmb, ac), nil
}

func newEmbedder(ctx context.Context, provider, name string, codecClient *codec.CodecClient,
	cache *badger.DB) (embed.Embedder, error) {
	var base embed.Embedder
	var err error
	switch provider {
	case "openai":
		base, err = embed.NewOpenAIEmbedder(config.APIKey("OPENAI_API_KEY"), "", name)
	case "gemini":
		base, err = embed.NewGeminiEmbedder(ctx, config.APIKey("GEMINI_API_KEY", "GOOGLE_API_KEY"), name)
	default:
		base = embed.NewCodecEmbedder(codecClient, name)
	}
	if err != nil {
		return nil, failure.New(failure.Configuration, "embedder "+name, err)
	}
	return embed.NewCachedEmbedderWithDB(base, name, cache), nil
}

// #endregion retrieval

// #region ledger
// openLedger starts a ledger run. Ledger problems never stop the batch.
func openLedger(ctx context.Context, cfg config.Config, modelID string, mode prompt.Mode, output string) (*state.Store, string) {
	if cfg.Paths.LedgerDB == "" {
		return nil, ""
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Paths.LedgerDB), 0o755); err != nil {
		log.Warnf("ledger disabled: %v", err)
		return nil, ""
	}
	store, err := state.NewStore(cfg.Paths.LedgerDB)
	if err != nil {
		log.Warnf("ledger disabled: %v", err)
		return nil, ""
	}

	rec := state.RunRecord{
		Model:      modelID,
		Mode:       mode.ID(),
		StartIndex: cfg.Run.StartIndex,
		EndIndex:   cfg.Run.EndIndex,
		OutputPath: output,
	}
	if cfg.Run.StartIndex > 0 {
		prev, err := store.LatestRun(ctx, modelID, mode.ID())
		switch {
		case err == nil:
			rec.ParentID = prev.RunID
		case !errors.Is(err, state.ErrNotFound):
			log.Warnf("ledger: %v", err)
		}
	}
	run, err := store.StartRun(ctx, rec)
	if err != nil {
		log.Warnf("ledger disabled: %v", err)
		store.Close()
		return nil, ""
	}
	log.Infof("ledger run %s (parent %q)", run.RunID, run.ParentID)
	return store, run.RunID
}

// #endregion ledger
