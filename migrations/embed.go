// Package migrations embeds the SQL schema files so the bridge binary can
// migrate its registry without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
