package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yungbote/studyforge-backend/internal/app"
)

var importCmd = &cobra.Command{
	Use:   "import-curriculum <file.yaml|file.xlsx>",
	Short: "Import units, skills and grounding sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		a, err := app.New(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		sum, err := a.ImportCurriculum(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(),
			"imported units=%d skills=%d outline=%d transcripts=%d authorities=%d links=%d cites=%d graph_synced=%t\n",
			sum.Units, sum.Skills, sum.Outline, sum.Transcripts, sum.Authorities, sum.Links, sum.Cites, sum.GraphSynced)
		return nil
	},
}
