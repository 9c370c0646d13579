package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/studyforge-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		withWorker, _ := cmd.Flags().GetBool("with-worker")

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if withWorker {
			return a.ServeAndWork(ctx)
		}
		if err := a.Start(ctx, false); err != nil {
			return err
		}
		return a.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().Bool("with-worker", true, "Also run the job worker and periodic sweeps in this process")
}
