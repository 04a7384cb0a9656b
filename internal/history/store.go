package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const (
	DefaultFrameTTL  = 60 * time.Second
	DefaultMaxFrames = 1000
)

// Store keeps the most recent landmark frames of each channel in a redis
// sorted set scored by frame timestamp.
type Store struct {
	redis     *redis.Client
	frameTTL  time.Duration
	maxFrames int64
}

func NewStore(redisClient *redis.Client, frameTTL time.Duration, maxFrames int) *Store {
	if frameTTL == 0 {
		frameTTL = DefaultFrameTTL
	}
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	return &Store{
		redis:     redisClient,
		frameTTL:  frameTTL,
		maxFrames: int64(maxFrames),
	}
}

func framesKey(channelID string) string {
	return fmt.Sprintf("pose:channel:%s:frames", channelID)
}

func (s *Store) StoreFrame(ctx context.Context, channelID string, frame pose.LandmarkFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	key := framesKey(channelID)
	pipe := s.redis.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(frame.TimestampMs),
		Member: data,
	})
	pipe.ZRemRangeByRank(ctx, key, 0, -s.maxFrames-1)
	pipe.Expire(ctx, key, s.frameTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) GetLatestFrame(ctx context.Context, channelID string) (*pose.LandmarkFrame, error) {
	results, err := s.redis.ZRevRange(ctx, framesKey(channelID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}

	var frame pose.LandmarkFrame
	if err := json.Unmarshal([]byte(results[0]), &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return &frame, nil
}

// GetFrames returns frames with start <= timestamp <= end in ascending
// order. A limit of zero or less returns every match.
func (s *Store) GetFrames(ctx context.Context, channelID string, start, end int64, limit int) ([]pose.LandmarkFrame, error) {
	opt := &redis.ZRangeBy{
		Min: strconv.FormatInt(start, 10),
		Max: strconv.FormatInt(end, 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	results, err := s.redis.ZRangeByScore(ctx, framesKey(channelID), opt).Result()
	if err != nil {
		return nil, err
	}

	frames := make([]pose.LandmarkFrame, 0, len(results))
	for _, r := range results {
		var frame pose.LandmarkFrame
		if err := json.Unmarshal([]byte(r), &frame); err != nil {
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (s *Store) DeleteFrames(ctx context.Context, channelID string) error {
	return s.redis.Del(ctx, framesKey(channelID)).Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
