package pg

import "time"

type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`                   // Postgres DSN.
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`      // Pool size upper bound.
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`       // Connections kept warm.
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`  // Pool health check interval.
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"` // Idle connections older than this are closed.
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`  // Connections older than this are recycled.

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // Connection attempts at startup.
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // Base wait between attempts, multiplied by the attempt number.

	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"notifykit_schema_migrations"` // goose version table.
}
