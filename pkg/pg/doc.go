// Package pg bootstraps the PostgreSQL layer used by notifykit's storage and
// task queue: a retrying pgx/v5 pool (Connect), goose migrations from an
// embedded filesystem (Migrate), a readiness probe (Healthcheck), a
// transaction helper (WithTx) and pgx error classifiers.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, migrations.FS, log); err != nil {
//	    return err
//	}
package pg
