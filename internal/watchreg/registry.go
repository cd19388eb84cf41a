// Package watchreg tracks which users watch which lots. Membership lives in
// Redis sets, so add and remove are idempotent by construction and lost
// updates under concurrency are acceptable, matching the view counter's
// consistency contract.
package watchreg

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const watchKeyPrefix = "auc_watch:"

type Registry struct {
	rdc *redis.Client
}

func New(rdc *redis.Client) *Registry { return &Registry{rdc: rdc} }

// Watch adds userID to the lot's watcher set. Watching twice is a no-op.
func (r *Registry) Watch(ctx context.Context, auctionID, userID string) error {
	if err := r.rdc.SAdd(ctx, watchKeyPrefix+auctionID, userID).Err(); err != nil {
		return fmt.Errorf("watch %s: %w", auctionID, err)
	}
	return nil
}

// Unwatch removes userID from the lot's watcher set. Unwatching a lot the
// user never watched is a no-op.
func (r *Registry) Unwatch(ctx context.Context, auctionID, userID string) error {
	if err := r.rdc.SRem(ctx, watchKeyPrefix+auctionID, userID).Err(); err != nil {
		return fmt.Errorf("unwatch %s: %w", auctionID, err)
	}
	return nil
}

func (r *Registry) IsWatching(ctx context.Context, auctionID, userID string) (bool, error) {
	ok, err := r.rdc.SIsMember(ctx, watchKeyPrefix+auctionID, userID).Result()
	if err != nil {
		return false, fmt.Errorf("watch membership %s: %w", auctionID, err)
	}
	return ok, nil
}

func (r *Registry) Watchers(ctx context.Context, auctionID string) ([]string, error) {
	members, err := r.rdc.SMembers(ctx, watchKeyPrefix+auctionID).Result()
	if err != nil {
		return nil, fmt.Errorf("watchers of %s: %w", auctionID, err)
	}
	return members, nil
}

func (r *Registry) Count(ctx context.Context, auctionID string) (int64, error) {
	n, err := r.rdc.SCard(ctx, watchKeyPrefix+auctionID).Result()
	if err != nil {
		return 0, fmt.Errorf("watcher count of %s: %w", auctionID, err)
	}
	return n, nil
}
