// Package httpserver runs the notifier's operational HTTP endpoints.
//
// The server is bound to a context: Run blocks until the context is done and
// then shuts down gracefully, which makes it a natural errgroup member:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	router := httpserver.NewRouter(httpserver.RouterOptions{
//		Logger:  log,
//		Checks:  []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
//		Metrics: promhttp.Handler(),
//	})
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// /livez always answers ALIVE. /readyz answers READY only when every check
// passes within its timeout.
package httpserver
