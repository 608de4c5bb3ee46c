package cache

import (
	"context"
	"time"
)

const userKeyPrefix = "user:"

// UserTTL bounds how long a resolved identity may be served from cache.
const UserTTL = 5 * time.Minute

func UserKey(userID string) string {
	return userKeyPrefix + userID
}

func (c *Cache) InvalidateUser(ctx context.Context, userID string) {
	c.Invalidate(ctx, UserKey(userID))
}
