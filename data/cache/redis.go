package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/trading_simulator/internal/model"
	"github.com/KotFed0t/trading_simulator/utils"
	"github.com/redis/go-redis/v9"
)

const (
	topUsersKeyPrefix  = "leaderboard:users:"
	topStocksKeyPrefix = "leaderboard:stocks:"
	generationKey      = "gen"
)

var ErrCacheMiss = errors.New("cache miss")

// RedisCache stores leaderboard snapshots. Balances and prices used by trades are never cached.
//
// Every board family has a generation counter that is part of the board keys.
// A flush bumps the counter, so boards computed before the flush land on keys
// nobody reads any more and expire on their own.
type RedisCache struct {
	redis      *redis.Client
	expiration time.Duration
}

func NewRedisCache(redisClient *redis.Client, expiration time.Duration) *RedisCache {
	return &RedisCache{redis: redisClient, expiration: expiration}
}

// GetTopUsers returns the cached board and the generation it was looked up in.
// The generation must be handed back to SetTopUsers. It is negative when unknown.
func (r *RedisCache) GetTopUsers(ctx context.Context, limit int) ([]model.UserReport, int64, error) {
	var reports []model.UserReport
	gen, err := r.getBoard(ctx, topUsersKeyPrefix, limit, &reports)
	return reports, gen, err
}

func (r *RedisCache) SetTopUsers(ctx context.Context, gen int64, limit int, reports []model.UserReport) error {
	return r.setBoard(ctx, topUsersKeyPrefix, gen, limit, reports)
}

func (r *RedisCache) GetTopStocks(ctx context.Context, limit int) ([]model.StockReport, int64, error) {
	var reports []model.StockReport
	gen, err := r.getBoard(ctx, topStocksKeyPrefix, limit, &reports)
	return reports, gen, err
}

func (r *RedisCache) SetTopStocks(ctx context.Context, gen int64, limit int, reports []model.StockReport) error {
	return r.setBoard(ctx, topStocksKeyPrefix, gen, limit, reports)
}

// FlushUserBoards invalidates every cached user leaderboard, called after balances or holdings change.
func (r *RedisCache) FlushUserBoards(ctx context.Context) error {
	return r.flush(ctx, topUsersKeyPrefix)
}

// FlushStockBoards invalidates every cached stock leaderboard, called after prices move or stocks are listed.
func (r *RedisCache) FlushStockBoards(ctx context.Context) error {
	return r.flush(ctx, topStocksKeyPrefix)
}

func (r *RedisCache) flush(ctx context.Context, prefix string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	gen, err := r.redis.Incr(ctx, prefix+generationKey).Result()
	if err != nil {
		slog.Error("failed on redis.Incr", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("prefix", prefix))
		return err
	}

	slog.Debug("leaderboards flushed", slog.String("rqID", rqID), slog.String("prefix", prefix), slog.Int64("generation", gen))

	return nil
}

func (r *RedisCache) generation(ctx context.Context, prefix string) (int64, error) {
	gen, err := r.redis.Get(ctx, prefix+generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func boardKey(prefix string, gen int64, limit int) string {
	return fmt.Sprintf("%s%d:%d", prefix, gen, limit)
}

func (r *RedisCache) getBoard(ctx context.Context, prefix string, limit int, dest any) (int64, error) {
	gen, err := r.generation(ctx, prefix)
	if err != nil {
		slog.Error("can't read leaderboard generation", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.String("err", err.Error()), slog.String("prefix", prefix))
		return -1, err
	}

	return gen, r.get(ctx, boardKey(prefix, gen, limit), dest)
}

func (r *RedisCache) setBoard(ctx context.Context, prefix string, gen int64, limit int, value any) error {
	if gen < 0 {
		return nil
	}
	return r.set(ctx, boardKey(prefix, gen, limit), value)
}

func (r *RedisCache) set(ctx context.Context, key string, value any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	payload, err := json.Marshal(value)
	if err != nil {
		slog.Error("can't marshall value", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	err = r.redis.Set(ctx, key, payload, r.expiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	return nil
}

func (r *RedisCache) get(ctx context.Context, key string, dest any) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("key", key))
		return err
	}

	err = json.Unmarshal([]byte(res), dest)
	if err != nil {
		slog.Error("can't unmarshall cached value", slog.String("rqID", rqID), slog.String("err", err.Error()), slog.String("resultFromRedis", res))
		return err
	}

	return nil
}
