package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// decrFloor lowers the counter but never below zero, so a read-mark replayed
// after a counter reset cannot push the total negative.
var decrFloor = redis.NewScript(`
local v = redis.call('DECR', KEYS[1])
if v < 0 then
	redis.call('SET', KEYS[1], '0')
	return 0
end
return v
`)

// UnreadCounters keeps per-identity unread totals in Redis. Counts are a
// convenience for clients; losing them only degrades the unreadCountChanged
// payload to "refetch".
type UnreadCounters struct {
	rdb *redis.Client
}

func NewUnreadCounters(rdb *redis.Client) *UnreadCounters {
	return &UnreadCounters{rdb: rdb}
}

func (c *UnreadCounters) key(identity string) string {
	return "unread:" + identity
}

func (c *UnreadCounters) Increment(ctx context.Context, identity string) (int64, error) {
	return c.rdb.Incr(ctx, c.key(identity)).Result()
}

func (c *UnreadCounters) Decrement(ctx context.Context, identity string) (int64, error) {
	return decrFloor.Run(ctx, c.rdb, []string{c.key(identity)}).Int64()
}

func (c *UnreadCounters) Reset(ctx context.Context, identity string) error {
	return c.rdb.Del(ctx, c.key(identity)).Err()
}
