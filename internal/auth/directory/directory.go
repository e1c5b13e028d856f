// Package directory serves user records through a cache-aside projection.
// The database stays authoritative; cached entries live at most ten minutes
// past their last read.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blindlog/blindlog/internal/auth/cache"
	"github.com/blindlog/blindlog/internal/auth/storage"
	"github.com/blindlog/blindlog/internal/auth/user"
)

// TTL is the sliding lifetime of a cached user; every read extends it.
const TTL = 10 * time.Minute

// Key returns the cache key for a user id.
func Key(userID string) string {
	return "user:" + userID
}

// Directory reads users cache-first with database fallback.
type Directory struct {
	cache cache.Store
	users storage.UserStore
}

// New returns a Directory over the given cache and user store.
func New(store cache.Store, users storage.UserStore) *Directory {
	return &Directory{cache: store, users: users}
}

// Get returns one user, refreshing its cache TTL on a hit and populating
// the cache on a miss. A user absent from both layers is
// storage.ErrNotFound.
func (d *Directory) Get(ctx context.Context, userID string) (user.User, error) {
	payload, err := d.cache.GetEx(ctx, Key(userID), TTL)
	if err == nil {
		var cached user.User
		if err := json.Unmarshal(payload, &cached); err != nil {
			return user.User{}, fmt.Errorf("decode cached user: %w", err)
		}
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return user.User{}, fmt.Errorf("read user cache: %w", err)
	}

	loaded, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}

	encoded, err := json.Marshal(loaded)
	if err != nil {
		return user.User{}, fmt.Errorf("encode user: %w", err)
	}
	if err := d.cache.Set(ctx, Key(userID), encoded, TTL); err != nil {
		return user.User{}, fmt.Errorf("cache user: %w", err)
	}
	return loaded, nil
}

// GetMany returns the users for ids in request order, skipping unknown
// ids. Cache reads fan out concurrently; the misses are fetched from the
// database in one query and written back in one pipelined batch.
func (d *Directory) GetMany(ctx context.Context, userIDs []string) ([]user.User, error) {
	found := make([]*user.User, len(userIDs))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, userID := range userIDs {
		group.Go(func() error {
			payload, err := d.cache.GetEx(groupCtx, Key(userID), TTL)
			if err != nil {
				if errors.Is(err, cache.ErrMiss) {
					return nil
				}
				return fmt.Errorf("read user cache: %w", err)
			}
			var cached user.User
			if err := json.Unmarshal(payload, &cached); err != nil {
				return fmt.Errorf("decode cached user: %w", err)
			}
			found[i] = &cached
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var missing []string
	for i, userID := range userIDs {
		if found[i] == nil {
			missing = append(missing, userID)
		}
	}

	if len(missing) > 0 {
		rows, err := d.users.GetUsers(ctx, missing)
		if err != nil {
			return nil, err
		}

		items := make([]cache.Item, 0, len(rows))
		byID := make(map[string]user.User, len(rows))
		for _, row := range rows {
			encoded, err := json.Marshal(row)
			if err != nil {
				return nil, fmt.Errorf("encode user: %w", err)
			}
			items = append(items, cache.Item{Key: Key(row.ID), Value: encoded})
			byID[row.ID] = row
		}
		if len(items) > 0 {
			if err := d.cache.SetBatch(ctx, items, TTL); err != nil {
				return nil, fmt.Errorf("cache users: %w", err)
			}
		}

		for i, userID := range userIDs {
			if found[i] != nil {
				continue
			}
			if row, ok := byID[userID]; ok {
				found[i] = &row
			}
		}
	}

	users := make([]user.User, 0, len(userIDs))
	for _, entry := range found {
		if entry != nil {
			users = append(users, *entry)
		}
	}
	return users, nil
}

// Invalidate drops the cached projection of a user. Callers invoke it
// after any write that changes what Get would return.
func (d *Directory) Invalidate(ctx context.Context, userID string) error {
	if err := d.cache.Del(ctx, Key(userID)); err != nil {
		return fmt.Errorf("invalidate user cache: %w", err)
	}
	return nil
}
