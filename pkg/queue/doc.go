// Package queue is a storage-backed task queue with delayed tasks, bounded
// retries, a dead letter queue and periodic scheduling. notifykit runs its
// per-channel delivery tasks and the weekly summary job on it.
//
// Producers use an Enqueuer; payloads are JSON encoded and named after their
// Go type so NewTaskHandler can route them back:
//
//	enq, _ := queue.NewEnqueuer(storage, queue.WithDefaultQueue("notifications"))
//	_ = enq.Enqueue(ctx, DeliveryTask{...}, queue.WithDelay(time.Minute))
//
//	w, _ := queue.NewWorker(storage,
//		queue.WithQueues("notifications"),
//		queue.WithMaxConcurrentTasks(10),
//	)
//	_ = w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, t DeliveryTask) error {
//		return deliver(ctx, t)
//	}))
//	g.Go(w.Run(ctx))
//
// A handler error reschedules the task with a linear backoff until
// MaxRetries is reached, after which it moves to the dead letter queue.
// Errors wrapped with Permanent skip the retries and are dead-lettered at
// once, as are tasks with no registered handler.
//
// Two storages are provided: MemoryStorage for tests and single-process
// setups, and PostgresStorage (pgx) for production.
package queue
