package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/ai"
	"github.com/loomworks/loom/batch"
	"github.com/loomworks/loom/binding"
	"github.com/loomworks/loom/config"
	"github.com/loomworks/loom/dataset"
	"github.com/loomworks/loom/db"
	"github.com/loomworks/loom/errors"
	"github.com/loomworks/loom/logger"
	"github.com/loomworks/loom/parse"
	"github.com/loomworks/loom/pyexec"
	"github.com/loomworks/loom/results"
	"github.com/loomworks/loom/run"
	"github.com/loomworks/loom/server"
	"github.com/loomworks/loom/store"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the Loom HTTP server",
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	if cfg.Server.JSONLogs {
		if err := logger.Initialize(true); err != nil {
			return errors.Wrap(err, "failed to reinitialize logger")
		}
	}
	log := logger.Logger

	database, err := db.Open(cfg.Storage.DatabasePath, log)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	templates, err := store.NewStore(database, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize template store")
	}
	datasets, err := dataset.NewStore(cfg.DatasetsDir(), log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize dataset store")
	}

	invoker := ai.NewClientInvoker(cfg, log)
	runner := pyexec.NewClient(cfg.Python.BaseURL, time.Duration(cfg.Python.TimeoutSeconds)*time.Second, log)

	engine := run.NewEngine(templates, binding.NewResolver(datasets, log), invoker, parse.Deps{
		Runner: runner,
		Logger: log,
	}, log)

	jobs := batch.NewStore()
	orch := batch.NewOrchestrator(engine, datasets, jobs, cfg.Batch.RecordsPerSecond, log)

	saver, err := results.NewSaver(cfg.ResultsDir(), jobs, datasets, log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize results saver")
	}

	srv := server.New(server.Deps{
		Config:    cfg,
		Logger:    log,
		Templates: templates,
		Datasets:  datasets,
		Jobs:      jobs,
		Orch:      orch,
		Engine:    engine,
		Saver:     saver,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("Starting Loom server",
		"port", cfg.Server.Port,
		"database", cfg.Storage.DatabasePath,
		"datasets_dir", cfg.DatasetsDir(),
	)
	return srv.Start(ctx)
}
