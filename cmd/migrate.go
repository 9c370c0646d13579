package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/studyforge-backend/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate()
	},
}
