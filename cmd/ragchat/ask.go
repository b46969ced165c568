package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
)

func askCmd() *cobra.Command {
	var showStatus bool
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and exit",
		Example: `  ragchat ask --file 'docs/*.txt' "What does the index store?"
  ragchat ask --config qdrant.yaml "Summarize the design"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			status, _, err := a.ingest(ctx, files)
			if err != nil {
				return err
			}
			if showStatus {
				fmt.Fprintln(cmd.ErrOrStderr(), status)
				fmt.Fprintln(cmd.ErrOrStderr(), a.orchestrator.Describe())
			}

			res, err := a.orchestrator.Submit(ctx, strings.Join(args, " "), domain.NewHistory()).Wait(ctx)
			if err != nil {
				return err
			}
			if res.Err != nil {
				return fmt.Errorf("generation error: %w", res.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Value)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "documents to ingest before answering (globs allowed)")
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the index status and active settings to stderr")
	return cmd
}
