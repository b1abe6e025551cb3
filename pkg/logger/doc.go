// Package logger builds *slog.Logger instances for notifykit processes and
// keeps attribute names consistent across the dispatcher, the delivery
// worker and the queue.
//
// New creates a JSON or text handler and wraps it with LogHandlerDecorator so
// values stored in context.Context (a trigger id, for example) are attached to
// every record. Attribute helpers such as UserID, NotificationID, Channel and
// RetryCount live in attr.go.
//
//	log := logger.New(logger.WithEnvironment(cfg.Env, "notifier"))
//	logger.SetAsDefault(log)
//
//	log.LogAttrs(ctx, slog.LevelWarn, "delivery failed",
//	    logger.NotificationID(n.ID),
//	    logger.Channel("email"),
//	    logger.RetryCount(rec.RetryCount),
//	    logger.Error(err),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
