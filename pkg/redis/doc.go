// Package redis connects notifykit to Redis, which carries realtime in-app
// notification fan-out (see pkg/broadcast.RedisBroadcaster).
//
// Connect retries the initial ping using Config, populated from the REDIS_*
// environment variables by pkg/config:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Healthcheck returns a probe suitable for pkg/httpserver readiness checks.
// Errors are joined with the package sentinels (ErrRedisNotReady,
// ErrHealthcheckFailed) so callers can match them with errors.Is.
package redis
