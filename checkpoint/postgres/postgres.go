package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/opengs/speciesexport/checkpoint/postgres/migrations"
)

// PostgresStore keeps execution contexts of export jobs in a Postgres table, one row per key.
type PostgresStore struct {
	db *sql.DB

	job string

	databaseName   string
	databaseSchema string
	databasePrefix string

	checkpointTable string
}

func NewPostgresStore(db *sql.DB, options ...PostgresOption) *PostgresStore {
	store := &PostgresStore{
		db:             db,
		job:            "default",
		databaseName:   "postgres",
		databaseSchema: "public",
		databasePrefix: "speciesexport_",
	}

	for _, option := range options {
		option(store)
	}

	store.checkpointTable = fmt.Sprintf("%s.%scheckpoint", store.databaseSchema, store.databasePrefix)

	return store
}

func (s *PostgresStore) newMigrator() (*migrate.Migrate, error) {
	migrationFiles, err := migrations.PrepareMigrations(s.databaseSchema, s.databasePrefix)
	if err != nil {
		return nil, errors.Join(errors.New("failed to prepare migration files"), err)
	}

	driver, err := migratepostgres.WithInstance(s.db, &migratepostgres.Config{
		SchemaName:      s.databaseSchema,
		MigrationsTable: fmt.Sprintf("%smigrations", s.databasePrefix),
	})
	if err != nil {
		return nil, errors.Join(errors.New("failed to create postgres migration driver"), err)
	}

	migrationsSource, err := iofs.New(migrationFiles, ".")
	if err != nil {
		return nil, errors.Join(errors.New("failed to open postgres migrations source"), err)
	}

	migrator, err := migrate.NewWithInstance("migrations", migrationsSource, s.databaseName, driver)
	if err != nil {
		return nil, errors.Join(errors.New("failed to create migrator"), err)
	}
	return migrator, nil
}

// Make sure that checkpoint table exists. You can run this safely several times.
func (s *PostgresStore) Install(ctx context.Context) error {
	migrator, err := s.newMigrator()
	if err != nil {
		return err
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Join(errors.New("error while performing migration on the database"), err)
	}

	return nil
}

// Completely removes checkpoint tables of every job from the database
func (s *PostgresStore) UnInstall(ctx context.Context) error {
	migrator, err := s.newMigrator()
	if err != nil {
		return err
	}

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Join(errors.New("error while performing migration on the database"), err)
	}

	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+fmt.Sprintf("%s.%smigrations", s.databaseSchema, s.databasePrefix)); err != nil {
		return errors.Join(errors.New("failed to drop migrations table"), err)
	}

	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	query := fmt.Sprintf(`
		SELECT key, value
		FROM %s
		WHERE job = $1
	`, s.checkpointTable)
	rows, err := s.db.QueryContext(ctx, query, s.job)
	if err != nil {
		return nil, errors.Join(errors.New("failed to select checkpoint from the database"), err)
	}
	defer rows.Close()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Join(errors.New("failed to scan checkpoint row from the database"), err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(errors.New("errors while reading checkpoint from the database"), err)
	}

	return values, nil
}

// Save replaces the whole execution context of the job in one transaction.
func (s *PostgresStore) Save(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.Join(errors.New("failed to begin checkpoint transaction in database"), err)
	}
	defer tx.Rollback()

	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE job = $1`, s.checkpointTable)
	if _, err := tx.ExecContext(ctx, deleteQuery, s.job); err != nil {
		return errors.Join(errors.New("failed to delete previous checkpoint from the database"), err)
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (job, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
	`, s.checkpointTable)
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, insertQuery, s.job, key, value); err != nil {
			return errors.Join(fmt.Errorf("failed to insert checkpoint key %s to the database", key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Join(errors.New("failed to commit checkpoint transaction in the database"), err)
	}

	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE job = $1`, s.checkpointTable)
	if _, err := s.db.ExecContext(ctx, query, s.job); err != nil {
		return errors.Join(errors.New("failed to delete checkpoint from the database"), err)
	}
	return nil
}
