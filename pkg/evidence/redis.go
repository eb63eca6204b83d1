package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/regenera-io/regenera/pkg/models"
)

const (
	recordKeyPrefix = "evidence:rec:"
	recordIndexKey  = "evidence:index"
)

// RedisStore persists task records in Redis, for deployments where the
// engine and the control loop run in separate processes. Each execution's
// records live in one hash; a sorted set indexed by start time serves the
// windowed queries.
type RedisStore struct {
	logger *slog.Logger
	client redis.UniversalClient
}

func NewRedisStore(ctx context.Context, logger *slog.Logger, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis evidence store", "addr", addr, "db", db)

	return &RedisStore{
		logger: logger.With("module", "evidence_redis"),
		client: client,
	}, nil
}

func (s *RedisStore) Append(ctx context.Context, record *models.TaskRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal task record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, recordKeyPrefix+record.ExecutionID, record.ID, payload)
	pipe.ZAdd(ctx, recordIndexKey, redis.Z{
		Score:  float64(record.StartedAt.UnixNano()),
		Member: record.ExecutionID + "/" + record.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append task record: %w", err)
	}

	return nil
}

func (s *RedisStore) Update(ctx context.Context, record *models.TaskRecord) error {
	exists, err := s.client.HExists(ctx, recordKeyPrefix+record.ExecutionID, record.ID).Result()
	if err != nil {
		return fmt.Errorf("failed to check task record: %w", err)
	}

	if !exists {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, record.ID)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal task record: %w", err)
	}

	if err := s.client.HSet(ctx, recordKeyPrefix+record.ExecutionID, record.ID, payload).Err(); err != nil {
		return fmt.Errorf("failed to update task record: %w", err)
	}

	return nil
}

func (s *RedisStore) RecordsFor(ctx context.Context, executionID string) ([]*models.TaskRecord, error) {
	values, err := s.client.HGetAll(ctx, recordKeyPrefix+executionID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch task records: %w", err)
	}

	records := make([]*models.TaskRecord, 0, len(values))

	for _, value := range values {
		var record models.TaskRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task record: %w", err)
		}

		records = append(records, &record)
	}

	return records, nil
}

func (s *RedisStore) RecordsSince(ctx context.Context, since time.Time) ([]*models.TaskRecord, error) {
	members, err := s.client.ZRangeByScore(ctx, recordIndexKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixNano()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence index: %w", err)
	}

	records := make([]*models.TaskRecord, 0, len(members))

	for _, member := range members {
		executionID, recordID, found := strings.Cut(member, "/")
		if !found {
			continue
		}

		value, err := s.client.HGet(ctx, recordKeyPrefix+executionID, recordID).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}

			return nil, fmt.Errorf("failed to fetch task record: %w", err)
		}

		var record models.TaskRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task record: %w", err)
		}

		records = append(records, &record)
	}

	return records, nil
}

func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}
