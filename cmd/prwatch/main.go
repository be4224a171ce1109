package main

import (
	"fmt"
	"os"

	"github.com/drewdunne/prwatch/internal/fault"
	"github.com/spf13/cobra"

	// Language model strategies register themselves.
	_ "github.com/drewdunne/prwatch/internal/llm/anthropic"
	_ "github.com/drewdunne/prwatch/internal/llm/openai"
)

var version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", fault.Code(err), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "prwatch",
		Short:         "Watch pull requests and check them against their Jira tickets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to .env file (optional)")

	root.AddCommand(
		newServeCommand(opts),
		newValidateCommand(opts),
		newJiraCheckCommand(opts),
		newNotificationsCommand(),
		newValidationsCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prwatch v%s\n", version)
		},
	}
}
