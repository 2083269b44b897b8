package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yummyorder/whatsapp-sandbox/settings"
)

/* Redis implementation of settings.Repository
 * The whole configuration is stored as one flat JSON document under a single
 * well-known key
 */

const configKey = "whatsapp:webhook:config"

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository and verifies connectivity.
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{client: client}, nil
}

// Load reads the configuration document.
func (r *Repository) Load(ctx context.Context) (settings.Settings, bool, error) {
	data, err := r.client.Get(ctx, configKey).Bytes()
	if err == redis.Nil {
		return settings.Settings{}, false, nil
	}
	if err != nil {
		return settings.Settings{}, false, fmt.Errorf("reading webhook settings: %w", err)
	}

	var s settings.Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return settings.Settings{}, false, fmt.Errorf("unmarshaling webhook settings: %w", err)
	}
	return s, true, nil
}

// Save writes the configuration document, replacing any previous value.
func (r *Repository) Save(ctx context.Context, s settings.Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling webhook settings: %w", err)
	}
	if err := r.client.Set(ctx, configKey, data, 0).Err(); err != nil {
		return fmt.Errorf("writing webhook settings: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}
