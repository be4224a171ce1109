package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/drewdunne/prwatch/internal/config"
	"github.com/drewdunne/prwatch/internal/jira"
	"github.com/drewdunne/prwatch/internal/pipeline"
	"github.com/drewdunne/prwatch/internal/provider"
	"github.com/drewdunne/prwatch/internal/registry"
	"github.com/spf13/cobra"
)

type validateOptions struct {
	repo     string
	provider string
	number   int
	json     bool
}

func newValidateCommand(opts *globalOptions) *cobra.Command {
	vo := &validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check one pull request against its Jira ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			return runValidate(ctx, cfg, vo, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&vo.repo, "repo", "", "Repository as owner/name")
	cmd.Flags().StringVar(&vo.provider, "provider", provider.GitHub, "Code host (github or gitlab)")
	cmd.Flags().IntVar(&vo.number, "pr", 0, "Pull request number")
	cmd.Flags().BoolVar(&vo.json, "json", false, "Print the validation record as JSON")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("pr")
	return cmd
}

func runValidate(ctx context.Context, cfg *config.Config, vo *validateOptions, out, progress io.Writer) error {
	repo, err := provider.ParseFullName(vo.provider, vo.repo)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	pipe := pipeline.New(pipeline.Dependencies{
		CodeHosts: registry.New(cfg),
		Tracker:   jira.New(),
		Store:     st,
	})

	result, err := pipe.Run(ctx, pipeline.Request{
		Repository:  repo,
		Number:      vo.number,
		Credentials: cfg.CredentialsFor(repo.Provider, repo.Owner, repo.Name),
		OnStage: func(stage pipeline.Stage, detail string) {
			fmt.Fprintf(progress, "%-14s %s\n", stage, detail)
		},
	})
	if err != nil {
		return err
	}

	if vo.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Record)
	}

	rec := result.Record
	rows := [][]string{
		{"Validation", rec.ID},
		{"Pull request", fmt.Sprintf("%s #%d: %s", repo.FullName(), rec.PRNumber, result.PullRequest.Title)},
		{"Ticket", fmt.Sprintf("%s: %s", rec.TicketID, result.Ticket.Summary)},
		{"Confidence", fmt.Sprintf("%.0f%%", rec.ConfidenceScore*100)},
		{"Summary", rec.Findings.Summary},
		{"Findings", bullets(rec.Findings.Findings)},
		{"Concerns", bullets(rec.Findings.Concerns)},
		{"Diff", fmt.Sprintf("%d files, +%d -%d in %s", rec.DiffStats.Files, rec.DiffStats.Additions, rec.DiffStats.Deletions, rec.DiffStats.Scope)},
	}
	return renderTable(out, []string{"Field", "Value"}, rows)
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return "- " + strings.Join(items, "\n- ")
}
