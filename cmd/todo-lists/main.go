package main

import (
	"os"

	"todolist-app-go/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	log := logger.NewFromEnv()

	root := &cobra.Command{
		Use:           "todo-lists",
		Short:         "Todo lists service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), log)
		},
	}
	root.AddCommand(newServeCmd(log), newMigrateCmd(log))

	if err := root.Execute(); err != nil {
		log.Critical("app: command failed", "err", err)
		os.Exit(1)
	}
}
