package postgres

type PostgresOption func(s *PostgresStore)

// Name of the export job. Several jobs can share one table.
func WithJobName(job string) PostgresOption {
	return func(s *PostgresStore) {
		s.job = job
	}
}

func WithDatabaseName(databaseName string) PostgresOption {
	return func(s *PostgresStore) {
		s.databaseName = databaseName
	}
}

func WithDatabaseSchema(databaseSchema string) PostgresOption {
	return func(s *PostgresStore) {
		s.databaseSchema = databaseSchema
	}
}

func WithDatabasePrefix(databasePrefix string) PostgresOption {
	return func(s *PostgresStore) {
		s.databasePrefix = databasePrefix
	}
}
