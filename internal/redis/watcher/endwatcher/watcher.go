package endwatcher

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const timerKeyPrefix = "auc_t:"

// Finalizer flips a lot's stored status once its timer key expires.
type Finalizer interface {
	MarkEnded(ctx context.Context, auctionID string) error
}

// Run listens to key-expiry events and marks expired auctions ended.
// Run must be started once at service boot. The flip is advisory: every
// openness check re-derives from endTime, so a missed event cannot keep a
// lot biddable.
func Run(ctx context.Context, rdb *redis.Client, fin Finalizer) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			if !strings.HasPrefix(m.Payload, timerKeyPrefix) {
				continue
			}
			id := strings.TrimPrefix(m.Payload, timerKeyPrefix)
			if err := fin.MarkEnded(ctx, id); err != nil {
				zap.L().Warn("endwatcher.mark_ended", zap.String("id", id), zap.Error(err))
			}
		}
	}
}
