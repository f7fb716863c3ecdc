package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/w-h-a/brain/embedder"
	"go.uber.org/zap"
)

// cachedEmbedder wraps one backend with a redis read-through cache keyed by
// the hash of the text. Cache failures never fail an embedding.
type cachedEmbedder struct {
	options Options
	inner   embedder.Embedder
	client  *redis.Client
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	if values, ok, err := e.get(ctx, key); err != nil {
		e.options.Logger.Warn("embedding cache read failed", zap.String("namespace", e.options.Namespace), zap.Error(err))
	} else if ok {
		e.options.Logger.Debug("embedding cache hit", zap.String("namespace", e.options.Namespace))
		return values, nil
	}

	values, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.set(ctx, key, values); err != nil {
		e.options.Logger.Warn("embedding cache write failed", zap.String("namespace", e.options.Namespace), zap.Error(err))
	}

	return values, nil
}

func (e *cachedEmbedder) get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := e.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding: %w", err)
	}

	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	return values, true, nil
}

func (e *cachedEmbedder) set(ctx context.Context, key string, values []float32) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := e.client.Set(ctx, key, data, e.options.TTL).Err(); err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}

	return nil
}

// Close releases the redis client, and the wrapped backend when it holds
// connections of its own.
func (e *cachedEmbedder) Close() error {
	err := e.client.Close()
	if closer, ok := e.inner.(io.Closer); ok {
		err = errors.Join(err, closer.Close())
	}
	return err
}

func (e *cachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", e.options.Namespace, hex.EncodeToString(sum[:]))
}

func NewEmbedder(inner embedder.Embedder, opts ...Option) embedder.Embedder {
	options := NewOptions(opts...)

	if inner == nil {
		panic("cache embedder requires an inner embedder")
	}

	redisOpts, err := redis.ParseURL(options.Location)
	if err != nil {
		panic(fmt.Sprintf("invalid embedding cache location: %v", err))
	}

	return &cachedEmbedder{
		options: options,
		inner:   inner,
		client:  redis.NewClient(redisOpts),
	}
}
