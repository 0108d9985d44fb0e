package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	st, err := r.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writeMigrations(st.db)
}

// SetupRollback reverts the most recently applied migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}

	r.logger.Warn("rolled back latest migration", "path", r.config.Database.Path)
	return r.writeMigrations(db)
}

func (r *Runner) writeMigrations(db *sql.DB) error {
	statuses, err := shared.Migrations(db)
	if err != nil {
		return err
	}

	for _, m := range statuses {
		mark := " "
		if m.Applied {
			mark = "✓"
		}
		if err := r.writePlain("%s %04d %s\n", mark, m.Version, m.Name); err != nil {
			return err
		}
	}
	return nil
}

// SetupConfig writes the configuration template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if cmd.Bool("force") {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace config file: %w", err)
		}
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Configuration written to %s\n", path)
}
