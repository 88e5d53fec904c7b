package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	t.Parallel()

	n := NewNotifier(nil)
	assert.NoError(t, n.PublishCollectionChange(context.Background(), "col1", "tok1"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), nil))
}

func TestCollectionChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "sync:col:abc123", CollectionChannel("abc123"))
}

func TestNotifier_PublishReachesPatternSubscriber(t *testing.T) {
	rdb := setupRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type received struct {
		uid     string
		payload []byte
	}
	got := make(chan received, 1)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(uid string, payload []byte) {
		got <- received{uid: uid, payload: payload}
	}))

	// PSubscribe setup races with the first publish; retry until delivered.
	require.Eventually(t, func() bool {
		_ = n.PublishCollectionChange(context.Background(), "colabc", "tok99")
		select {
		case r := <-got:
			assert.Equal(t, "colabc", r.uid)
			var event ChangeEvent
			require.NoError(t, json.Unmarshal(r.payload, &event))
			assert.Equal(t, "colabc", event.Collection)
			assert.Equal(t, "tok99", event.Stoken)
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	rdb := setupRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan struct{}, 16)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(string, []byte) {
		got <- struct{}{}
	}))

	cancel()
	time.Sleep(50 * time.Millisecond)

	// Drain anything delivered before cancellation took effect.
	for {
		select {
		case <-got:
			continue
		default:
		}
		break
	}

	require.NoError(t, n.PublishCollectionChange(context.Background(), "colx", "tok"))
	assert.Never(t, func() bool {
		select {
		case <-got:
			return true
		default:
			return false
		}
	}, 300*time.Millisecond, 20*time.Millisecond)
}
