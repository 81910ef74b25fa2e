package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/julianstephens/routined/internal/constants"
	"github.com/julianstephens/routined/internal/models"
)

// RedisStore keeps requests in one redis hash so several workers can share
// them.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redisURL and verifies it with a ping. An empty
// key uses the default hash name.
func NewRedisStore(redisURL, key string) (*RedisStore, error) {
	url := strings.TrimSpace(redisURL)
	if url == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if strings.TrimSpace(key) == "" {
		key = constants.DefaultRequestsPrefix
	}
	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Put(ctx context.Context, req models.NotificationRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, req.ID, data).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) (models.NotificationRequest, bool, error) {
	data, err := s.client.HGet(ctx, s.key, id).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NotificationRequest{}, false, nil
	}
	if err != nil {
		return models.NotificationRequest{}, false, err
	}
	var req models.NotificationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return models.NotificationRequest{}, false, err
	}
	return req, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.HDel(ctx, s.key, id).Err()
}

func (s *RedisStore) List(ctx context.Context) ([]models.NotificationRequest, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.NotificationRequest, 0, len(all))
	for _, raw := range all {
		var req models.NotificationRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	sortRequests(out)
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
