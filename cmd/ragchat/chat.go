package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragchat/internal/domain"
	"ragchat/internal/tui"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [files...]",
		Short: "Open the terminal chat",
		Long: `Open the terminal chat. Files (globs allowed, .txt and .md) are ingested
into the index first; without files an existing index such as a Qdrant
collection is used as is.

Keys:
  enter   send the message
  ctrl+p  switch to the next prompt
  ctrl+o  switch to the next model
  ctrl+l  clear the chat and its running summary
  ctrl+c  quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// The TUI owns the terminal; logs go to log.file or nowhere.
			var logOut io.Writer
			if cfg.Log.File == "" {
				logOut = io.Discard
			}
			a, err := buildApp(ctx, cfg, logOut)
			if err != nil {
				return err
			}
			defer a.close()

			status, synopsis, err := a.ingest(ctx, args)
			if err != nil {
				return err
			}
			return runTUI(ctx, a, status, synopsis)
		},
	}
}

func runTUI(ctx context.Context, a *app, status, synopsis string) error {
	m := tui.New(ctx, a.orchestrator, a.prompts, domain.NewHistory(), tui.Options{
		Status:   status,
		Synopsis: synopsis,
		Models:   a.cfg.LLM.Models,
	})
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
