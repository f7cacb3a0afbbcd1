// Package cmd wires shared infrastructure for the guildflow binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/guildflow/guildflow/pkg/persistence"
	"github.com/guildflow/guildflow/pkg/persistence/file"
	"github.com/guildflow/guildflow/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme:
// postgres:// for PostgreSQL, anything else is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
