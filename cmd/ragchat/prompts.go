package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ragchat/internal/logger"
	"ragchat/internal/prompts"
)

func promptsCmd() *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "List prompt definitions or preview one",
		Long: `List the prompts of the configured prompt file in file order, marking the
one that is selected on startup. With --set, select a prompt and print the
resulting settings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, closeLog, err := logger.New(logger.Config{Level: cfg.Log.Level, Output: cmd.ErrOrStderr(), WithCaller: cfg.Log.Caller})
			if err != nil {
				return err
			}
			defer closeLog()

			reg := prompts.New(log)
			reg.LoadFile(cfg.Prompts.Path)
			if set != "" {
				if !reg.SetCurrent(set) {
					return fmt.Errorf("unknown prompt %q", set)
				}
				printSettings(cmd.OutOrStdout(), reg, cfg.LLM.Model, cfg.Dialog.Database)
				return nil
			}
			current := reg.CurrentName()
			for _, name := range reg.Names() {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "prompt name to select and preview")
	return cmd
}

func printSettings(w io.Writer, reg *prompts.Registry, model, database string) {
	system, user := reg.Current()
	fmt.Fprintln(w, "Updated settings:")
	fmt.Fprintf(w, "  prompt:   %s\n", reg.CurrentName())
	fmt.Fprintf(w, "  system:   %s\n", preview(system, 50))
	fmt.Fprintf(w, "  user:     %s\n", preview(user, 50))
	fmt.Fprintf(w, "  model:    %s\n", model)
	fmt.Fprintf(w, "  database: %s\n", database)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
