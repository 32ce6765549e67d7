package migrate

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-history/internal/config"
	registrymigrate "github.com/chirino/chat-history/internal/registry/migrate"
	"github.com/urfave/cli/v3"

	// Import plugins to trigger init() registration of their migrators.
	_ "github.com/chirino/chat-history/internal/plugin/blob/sqlstore"
)

// Command returns the migrate sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the SQL blob schema for sqlite/postgres sources",
		Flags: config.StorageFlags(&cfg),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.MigrateAtStart = true
			ctx = config.WithContext(ctx, &cfg)

			log.Info("Running migrations...", "migrators", registrymigrate.Names())
			if err := registrymigrate.RunAll(ctx); err != nil {
				return err
			}
			log.Info("All migrations completed successfully")
			return nil
		},
	}
}
