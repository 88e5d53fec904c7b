// Package notifications delivers sync nudges: whenever a collection-level
// stoken advances, connected clients are told to resync instead of polling.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"github.com/redis/go-redis/v9"

	"coffer/internal/observability"
)

const collectionChannelPrefix = "sync:col:"

// ChangeEvent is the payload published when a collection changes.
type ChangeEvent struct {
	Collection string `json:"collection"`
	Stoken     string `json:"stoken"`
}

// Notifier publishes collection change events into Redis channels. Redis is
// the fan-out point so nudges reach clients connected to any server
// instance.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishCollectionChange announces that the collection's top-level stoken
// advanced to stokenUID.
func (n *Notifier) PublishCollectionChange(ctx context.Context, collectionUID, stokenUID string) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ChangeEvent{Collection: collectionUID, Stoken: stokenUID})
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, collectionChannelPrefix+collectionUID, payload).Err(); err != nil {
		return err
	}
	observability.SyncNudgesPublished.Inc()
	return nil
}

// StartPatternSubscriber subscribes to every collection channel and calls
// onMessage for each incoming event. onMessage receives the collection UID
// and the raw payload.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(collectionUID string, payload []byte),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, collectionChannelPrefix+"*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					uid := strings.TrimPrefix(msg.Channel, collectionChannelPrefix)
					onMessage(uid, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}

// CollectionChannel returns the Redis channel name for a collection, for
// callers that subscribe directly.
func CollectionChannel(collectionUID string) string {
	return fmt.Sprintf("%s%s", collectionChannelPrefix, collectionUID)
}
