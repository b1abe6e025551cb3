// Package broadcast fans typed messages out to topic subscribers. notifykit
// uses it to push freshly delivered in-app notifications to connected
// clients on the "user:<id>" topic.
//
// Two implementations are provided: MemoryBroadcaster for a single process
// and tests, and RedisBroadcaster which relays messages through Redis pub/sub
// (JSON-encoded) so every instance sharing the Redis server sees them.
//
//	b := broadcast.NewMemoryBroadcaster[string](10)
//	defer b.Close()
//
//	sub, err := b.Subscribe(ctx, "user:42")
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
//
//	_ = b.Publish(ctx, "user:42", "hello")
//	msg := <-sub.Receive()
//
// Publishing never blocks on a slow consumer: messages that do not fit into
// a subscriber's buffer are dropped for that subscriber.
package broadcast
