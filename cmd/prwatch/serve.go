package main

import (
	"context"
	"errors"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/jira"
	"github.com/drewdunne/prwatch/internal/logging"
	"github.com/drewdunne/prwatch/internal/notify"
	"github.com/drewdunne/prwatch/internal/pipeline"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/drewdunne/prwatch/internal/registry"
	"github.com/drewdunne/prwatch/internal/runner"
	"github.com/drewdunne/prwatch/internal/server"
	"github.com/drewdunne/prwatch/internal/syncer"
	"github.com/spf13/cobra"
)

const cleanupInterval = time.Hour

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the sync engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := registry.New(cfg)
	notes := notify.New(
		notify.WithCapacity(cfg.Notifications.Capacity),
		notify.WithMaxAge(time.Duration(cfg.Notifications.MaxAgeHours)*time.Hour),
	)
	jiraClient := jira.New()

	pipe := pipeline.New(pipeline.Dependencies{
		CodeHosts: reg,
		Tracker:   jiraClient,
		Store:     st,
	})

	var (
		runnerOpts []runner.Option
		cleanup    *logging.CleanupScheduler
	)
	if cfg.Logging.Dir != "" {
		runnerOpts = append(runnerOpts, runner.WithTranscripts(logging.NewWriter(cfg.Logging.Dir)))
		cleanup = logging.NewCleanupScheduler(logging.NewCleaner(cfg.Logging.Dir, cfg.Logging.RetentionDays), cleanupInterval)
		cleanup.Start(ctx)
	}
	run := runner.New(pipe, notes, runner.Config{
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		History:       cfg.Pipeline.History,
	}, runnerOpts...)

	engine := syncer.New(
		syncer.SourceFunc(func(repo provider.Repository) (provider.Provider, error) {
			creds := cfg.CredentialsFor(repo.Provider, repo.Owner, repo.Name)
			return reg.CodeHost(repo.Provider, creds.CodeHostToken)
		}),
		notes,
		syncer.WithInterval(time.Duration(cfg.Sync.IntervalSeconds)*time.Second),
		syncer.WithMaxConcurrent(cfg.Sync.MaxConcurrent),
	)

	srv := server.New(server.Dependencies{
		Config:  cfg,
		Engine:  engine,
		Runner:  run,
		Notes:   notes,
		Store:   st,
		Jira:    jiraClient,
		Cleanup: cleanup,
	})

	go watchConfigured(ctx, engine, cfg.Repositories)
	engine.Start(ctx)

	return srv.ListenAndServeWithShutdown(ctx)
}

// watchConfigured adds the repositories listed in the config file. Each Add
// runs a first cycle, so this happens off the startup path.
func watchConfigured(ctx context.Context, engine *syncer.Engine, repos []config.RepositoryConfig) {
	for _, rc := range repos {
		repo := provider.Repository{
			Provider:  rc.Provider,
			Owner:     rc.Owner,
			Name:      rc.Name,
			CreatedAt: time.Now().UTC(),
		}
		if err := engine.Add(ctx, repo); err != nil && !errors.Is(err, syncer.ErrAlreadyWatched) {
			clog.FromContext(ctx).With("repo", repo.Key()).With("error", err).Error("Could not watch repository")
		}
	}
}
