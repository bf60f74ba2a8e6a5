package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/opengs/speciesexport"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/opengs/speciesexport/checkpoint"
	"github.com/opengs/speciesexport/checkpoint/filestore"
	"github.com/opengs/speciesexport/checkpoint/postgres"
	"github.com/opengs/speciesexport/checkpoint/sqlite"
	"github.com/spf13/cobra"
)

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("checkpoint-store", "file", "Where the execution context is kept. Possible values are file, sqlite, postgres")
	cmd.Flags().String("checkpoint-path", "", "Checkpoint file for the file and sqlite stores. Defaults to a hidden file inside the output folder")
	cmd.Flags().String("checkpoint-db-url", "", "PostgreSQL connection url for the postgres store")
	cmd.Flags().String("checkpoint-db-schema", "public", "PostgreSQL schema for the postgres store")
	cmd.Flags().String("checkpoint-job", "default", "Job name. Jobs sharing one database keep separate checkpoints")
}

// openStore builds the configured checkpoint store. The returned function releases it.
func openStore(ctx context.Context, outputFolder string) (checkpoint.Store, func() error, error) {
	job := settings.GetString("checkpoint-job")
	path := settings.GetString("checkpoint-path")

	switch kind := settings.GetString("checkpoint-store"); kind {
	case "file":
		if path == "" {
			path = filepath.Join(outputFolder, ".checkpoint-"+job+".json")
		}
		mode := settings.GetString("file-mode")
		if mode == "" {
			mode = speciesexport.DefaultConfig().FileMode
		}
		perm, err := speciesexport.ParseFileMode(mode)
		if err != nil {
			return nil, nil, err
		}
		return filestore.New(path, filestore.WithFileMode(perm)), func() error { return nil }, nil
	case "sqlite":
		if path == "" {
			path = filepath.Join(outputFolder, ".checkpoint.db")
		}
		store, err := sqlite.NewSQLiteStore(path, sqlite.WithJobName(job))
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "postgres":
		dbConfig, err := pgx.ParseConfig(settings.GetString("checkpoint-db-url"))
		if err != nil {
			return nil, nil, errors.Join(errors.New("failed to parse database url"), err)
		}
		db := stdlib.OpenDB(*dbConfig)

		store := postgres.NewPostgresStore(db,
			postgres.WithJobName(job),
			postgres.WithDatabaseName(dbConfig.Database),
			postgres.WithDatabaseSchema(settings.GetString("checkpoint-db-schema")),
		)
		if err := store.Install(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported checkpoint store %q", kind)
	}
}
