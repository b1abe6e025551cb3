// Package notifications dispatches application events to users over in-app,
// email and SMS channels.
//
// A Dispatcher resolves the users an event targets, drops users who opted
// out of the event type, stores one Notification per remaining user and
// enqueues one DeliveryTask per channel the user has switched on. A
// DeliveryWorker consumes those tasks, renders the channel template, calls
// the channel Backend and records the outcome on a DeliveryRecord:
//
//	pending -> sent | failed
//	failed  -> retrying -> sent | failed
//
// A failed attempt is retried with exponential backoff until the record
// reaches the retry limit.
//
// # Wiring
//
//	store := notifications.NewMemoryStorage()
//	users := notifications.NewMemoryUserDirectory()
//	prefs := notifications.NewPreferences(store)
//	tpls, _ := notifications.NewTemplates(store)
//	tasks := notifications.NewQueueTaskQueue(enqueuer, "notifications")
//
//	dispatcher, _ := notifications.NewDispatcher(store, users, prefs, tpls, tasks)
//	backends, _ := notifications.NewBackends(
//		notifications.NewInAppBackend(),
//		notifications.NewEmailBackend(mailer),
//		notifications.NewSMSBackend(smsSender),
//	)
//	worker, _ := notifications.NewDeliveryWorker(store, users, tpls, backends, tasks)
//	_ = notifications.RegisterDeliveryHandler(queueWorker, worker)
//
//	dispatcher.Dispatch(ctx, "new_comment", map[string]any{
//		"follower_ids": []string{"u1", "u2"},
//		"post_title":   "Hello",
//	})
//
// Storage has an in-memory implementation here and a Postgres one in the
// postgres subpackage.
package notifications
