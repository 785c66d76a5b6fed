// Package migrations embeds the bridge's SQL migrations into the binary.
// Importing it registers them with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
