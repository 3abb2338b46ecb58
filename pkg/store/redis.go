package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/config"
	"cognivox-server/pkg/metrics"
)

// RedisStore keeps each collection as a Redis list of JSON documents
type RedisStore struct {
	client    redis.UniversalClient
	logger    *logrus.Entry
	keyPrefix string
	now       func() time.Time
}

// NewRedisStore connects to Redis. RedisAddr may be a redis:// URL or host:port.
func NewRedisStore(ctx context.Context, logger *logrus.Logger, cfg *config.StoreConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.RedisAddr)
	if err != nil {
		opts = &redis.Options{Addr: cfg.RedisAddr}
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	opts.DialTimeout = 5 * time.Second
	opts.MaxRetries = 1

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisStore(client, logger, cfg.RedisKeyPrefix), nil
}

func newRedisStore(client redis.UniversalClient, logger *logrus.Logger, prefix string) *RedisStore {
	entry := logger.WithField("component", "redis_store")
	entry.WithField("prefix", prefix).Info("Redis collection store initialized")
	return &RedisStore{
		client:    client,
		logger:    entry,
		keyPrefix: prefix,
		now:       time.Now,
	}
}

// Create appends record to the collection list
func (r *RedisStore) Create(ctx context.Context, collection string, record interface{}) (Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}
	doc, err := newDocument(record, r.now())
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, writeFailed(collection, err)
	}

	if err := r.client.RPush(ctx, r.collectionKey(collection), body).Err(); err != nil {
		r.logger.WithError(err).WithField("collection", collection).Error("Redis write failed")
		return nil, writeFailed(collection, err)
	}

	metrics.RecordStoreWrite(collection, "success")
	return doc, nil
}

// GetAll reads the whole collection list
func (r *RedisStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidateCollection(collection); err != nil {
		return nil, err
	}

	items, err := r.client.LRange(ctx, r.collectionKey(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from Redis: %w", collection, err)
	}

	docs := make([]Document, 0, len(items))
	for _, item := range items {
		doc := Document{}
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			r.logger.WithError(err).WithField("collection", collection).Warn("Skipping undecodable document")
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Ping checks the connection
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) collectionKey(collection string) string {
	return r.keyPrefix + collection
}
