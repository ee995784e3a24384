package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/consultation-extract/internal/common"
	"github.com/joseph-ayodele/consultation-extract/internal/export"
	"github.com/joseph-ayodele/consultation-extract/internal/extract/llamaextract"
	"github.com/joseph-ayodele/consultation-extract/internal/ingest"
	"github.com/joseph-ayodele/consultation-extract/internal/metrics"
	"github.com/joseph-ayodele/consultation-extract/internal/pipeline"
	repo "github.com/joseph-ayodele/consultation-extract/internal/repository"
	"github.com/joseph-ayodele/consultation-extract/internal/schema"
	"github.com/joseph-ayodele/consultation-extract/internal/storage"
	"github.com/joseph-ayodele/consultation-extract/internal/tracing"
)

// loadConfig layers the command line over config file, secrets and environment.
func loadConfig(cmd *cobra.Command, f *flags) (*common.Config, error) {
	cfg, err := common.LoadConfig(common.LoadOptions{ConfigPath: f.configPath, SecretsPath: f.secretsPath})
	if err != nil {
		return nil, err
	}
	if f.input != "" {
		cfg.Input.Dir = f.input
	}
	if f.out != "" {
		cfg.Output.Path = f.out
	}
	if cmd.Flags().Changed("workers") {
		cfg.Batch.Workers = f.workers
	}
	if f.reuse {
		cfg.Batch.Reuse = true
	}
	// unchanged reports should not be extracted again on every watch cycle
	if f.watch {
		cfg.Batch.Reuse = true
		if cfg.Ledger.DSN == "" {
			f.inmem = true
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, f *flags, cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log.Level, f.verbose)

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("tracing shutdown failed", "error", err)
			}
		}()
	}

	client, err := llamaextract.NewClient(llamaextract.FromAppConfig(cfg.Extract), logger)
	if err != nil {
		return err
	}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return common.WrapError(err, "init metrics")
	}

	s := schema.CompanyInfo()
	proc := pipeline.NewProcessor(client, s, logger)
	proc.Timeout = cfg.Extract.Timeout
	proc.Reuse = cfg.Batch.Reuse
	proc.Metrics = m

	opts := []pipeline.Option{pipeline.WithWorkers(cfg.Batch.Workers)}

	db, err := openLedger(ctx, cfg.Ledger, f.inmem, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close(logger)
		proc.Jobs = repo.NewExtractJobRepository(db, logger)
		opts = append(opts, pipeline.WithRuns(repo.NewRunRepository(db, logger)))
	} else if cfg.Batch.Reuse {
		logger.Warn("reuse requested without a ledger; every report will be extracted")
	}

	ingestOpts := ingest.DefaultOptions()
	ingestOpts.Extensions = cfg.Input.Extensions
	ingestOpts.Recursive = cfg.Input.Recursive
	batch := pipeline.NewBatch(ingest.NewFSDiscoverer(ingestOpts, logger), proc, logger, opts...)

	runner := &pipeline.Runner{
		Batch:   batch,
		Writer:  export.NewWriter(logger),
		Output:  cfg.Output.Path,
		Metrics: m,
		PushURL: cfg.Metrics.PushgatewayURL,
		PushJob: cfg.Metrics.Job,
		Console: cmd.OutOrStdout(),
		Verbose: f.verbose,
		Logger:  logger,
	}
	if cfg.Archive.Enabled() {
		st, err := storage.NewMinIO(ctx, cfg.Archive)
		if err != nil {
			logger.Warn("report archive disabled", "error", err)
		} else {
			runner.Archive = st
		}
	}

	if f.watch {
		return runner.Watch(ctx, cfg.Input.Dir, ingestOpts, f.debounce)
	}
	result, err := runner.Run(ctx, cfg.Input.Dir)
	if err != nil {
		return err
	}
	logger.Info("batch complete",
		"documents", result.Len(),
		"failed", result.Stats.Failed,
		"output", cfg.Output.Path,
	)
	return nil
}

// openLedger returns nil when no ledger is configured.
func openLedger(ctx context.Context, lc common.LedgerConfig, inmem bool, logger *slog.Logger) (*repo.DB, error) {
	switch {
	case inmem:
		db, err := repo.OpenInMemory(ctx, logger)
		if err != nil {
			return nil, common.ConfigurationError("open in-memory ledger", err)
		}
		return db, nil
	case lc.DSN != "":
		db, err := repo.Open(ctx, repo.Config{
			DSN:             lc.DSN,
			MaxConns:        lc.MaxConns,
			MaxConnLifetime: lc.MaxConnLifetime,
			DialTimeout:     lc.DialTimeout,
		}, logger)
		if err != nil {
			return nil, common.ConfigurationError("open ledger", err)
		}
		return db, nil
	default:
		return nil, nil
	}
}
