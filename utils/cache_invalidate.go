package utils

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Key prefixes written by the response cache middleware.
const (
	CachePrefixEvents      = "cache:events:"
	CachePrefixVesselTypes = "cache:vessel-types:"
)

type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator { return &CacheInvalidator{rdb} }

// PurgeEvents drops every cached event response, including /api/event/current.
func (ci *CacheInvalidator) PurgeEvents(ctx context.Context) {
	ci.purge(ctx, CachePrefixEvents+"*")
}

func (ci *CacheInvalidator) PurgeVesselTypes(ctx context.Context) {
	ci.purge(ctx, CachePrefixVesselTypes+"*")
}

func (ci *CacheInvalidator) purge(ctx context.Context, pattern string) {
	iter := ci.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		_ = ci.rdb.Del(ctx, iter.Val()).Err()
	}
}
