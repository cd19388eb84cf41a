package viewsync

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	dirtySet      = "auc_views:dirty"
	viewKeyPrefix = "auc_views:"
)

// Every interval, fold accumulated view-counter deltas into Postgres.
// The counter is lossy by contract; a delta lost between GETDEL and the
// UPDATE is an accepted miscount, not an error.
func Run(ctx context.Context, rdc *redis.Client, db *sql.DB, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				flushOnce(ctx, rdc, db)
			}
		}
	}()
}

func flushOnce(ctx context.Context, rdc *redis.Client, db *sql.DB) {
	ids, err := rdc.SMembers(ctx, dirtySet).Result()
	if err != nil || len(ids) == 0 {
		return
	}

	// 1. drain all counters in one pipelined round-trip
	pipe := rdc.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.GetDel(ctx, viewKeyPrefix+id)
	}
	pipe.Del(ctx, dirtySet)
	if _, err = pipe.Exec(ctx); err != nil && err != redis.Nil {
		zap.L().Error("viewsync.pipeline", zap.Error(err))
	}

	// 2. fold the deltas into Postgres
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		zap.L().Error("viewsync.tx_begin", zap.Error(err))
		return
	}
	defer tx.Rollback()

	const fold = `UPDATE auctions SET views = views + $1 WHERE id = $2`
	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue // counter disappeared between SMEMBERS and GETDEL
		}
		delta, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || delta == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, fold, delta, ids[i]); err != nil {
			zap.L().Error("viewsync.fold", zap.String("id", ids[i]), zap.Error(err))
		}
	}

	if err = tx.Commit(); err != nil {
		zap.L().Debug("viewsync_error", zap.Error(err))
	}
}
