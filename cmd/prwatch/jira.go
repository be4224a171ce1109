package main

import (
	"errors"
	"fmt"

	"github.com/drewdunne/prwatch/internal/jira"
	"github.com/spf13/cobra"
)

var errJiraRejected = errors.New("jira rejected the configured credentials")

func newJiraCheckCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "jira-check",
		Short: "Check that the configured Jira credentials work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			valid, err := jira.New().ValidateCredential(ctx, jira.Credentials{
				Domain: cfg.Jira.Domain,
				Email:  cfg.Jira.Email,
				Token:  cfg.Jira.Token,
			})
			if err != nil {
				return err
			}
			if !valid {
				return errJiraRejected
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Jira credentials for %s are valid\n", cfg.Jira.Domain)
			return nil
		},
	}
}
