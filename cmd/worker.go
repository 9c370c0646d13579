package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/studyforge-backend/internal/app"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the job worker and periodic sweeps",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Work(ctx)
	},
}
