package data

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	balancePrefix  = "balance:"
	balanceTTL     = 5 * time.Minute
	noncePrefix    = "nonce:"
	nonceTTL       = 5 * time.Minute
	streamAuctions = "slumbank.auctions"
)

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	return redis.NewClient(opt)
}

// CacheBalance stores a balance snapshot with a short TTL.
func CacheBalance(ctx context.Context, rdb *redis.Client, id string, amount int64) error {
	return rdb.Set(ctx, balancePrefix+id, amount, balanceTTL).Err()
}

// CachedBalance returns the cached balance for id. The second return is false
// on a cache miss.
func CachedBalance(ctx context.Context, rdb *redis.Client, id string) (int64, bool) {
	val, err := rdb.Get(ctx, balancePrefix+id).Result()
	if err != nil {
		return 0, false
	}
	amount, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// DropBalance invalidates the cached balance for id.
func DropBalance(ctx context.Context, rdb *redis.Client, id string) error {
	return rdb.Del(ctx, balancePrefix+id).Err()
}

func SetNonce(ctx context.Context, rdb *redis.Client, addr, nonce string) error {
	return rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

func GetAndDelNonce(ctx context.Context, rdb *redis.Client, addr string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+addr).Result()
}

// PublishAuctionResult appends an auction outcome to the event stream for
// other consumers.
func PublishAuctionResult(ctx context.Context, rdb *redis.Client, payload map[string]interface{}) error {
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamAuctions,
		Values: payload,
	}).Result()
	return err
}
