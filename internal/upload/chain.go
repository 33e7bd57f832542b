package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/rankshop/rankshop/internal/storage"
)

// StrategyInline names the data URL fallback in results.
const StrategyInline = "inline"

// DefaultAttemptTimeout bounds each strategy attempt.
const DefaultAttemptTimeout = 15 * time.Second

// Strategy is one place an object can be stored.
type Strategy interface {
	Name() string
	Store(ctx context.Context, object string, p Payload) (string, error)
}

// BucketStrategy stores objects in one bucket of an object storage backend.
type BucketStrategy struct {
	Bucket  string
	Storage storage.ObjectStorage
}

func (b BucketStrategy) Name() string { return "bucket:" + b.Bucket }

func (b BucketStrategy) Store(ctx context.Context, object string, p Payload) (string, error) {
	if b.Storage == nil {
		return "", errors.New("storage backend is not configured")
	}
	if err := b.Storage.Upload(ctx, b.Bucket, object, p.ContentType, p.Data); err != nil {
		return "", err
	}
	url, err := b.Storage.PublicURL(ctx, b.Bucket, object)
	if err != nil {
		return "", fmt.Errorf("public url: %w", err)
	}
	if url == "" {
		return "", errors.New("public url is empty")
	}
	return url, nil
}

// BucketStrategies binds each bucket, in order, to backend.
func BucketStrategies(backend storage.ObjectStorage, buckets []string) []Strategy {
	if backend == nil {
		return nil
	}
	strategies := make([]Strategy, 0, len(buckets))
	for _, bucket := range buckets {
		strategies = append(strategies, BucketStrategy{Bucket: bucket, Storage: backend})
	}
	return strategies
}

// Attempt records one strategy outcome.
type Attempt struct {
	Strategy string
	Err      error
}

// Result is the outcome of Chain.Store.
type Result struct {
	URL         string
	Object      string
	ContentType string
	// Strategy is the strategy that produced URL, or StrategyInline.
	Strategy string
	Attempts []Attempt
}

// Inline reports whether the result fell back to a data URL.
func (r *Result) Inline() bool {
	return r != nil && r.Strategy == StrategyInline
}

// Chain tries its strategies in order and stops at the first success.
type Chain struct {
	Strategies     []Strategy
	Validator      Validator
	AttemptTimeout time.Duration
	Logger         *logging.Logger
	Clock          func() time.Time
}

// Store validates p and stores it under a fresh name scoped by purpose. Once
// validation passes it always returns a URL: when every strategy fails, or ctx
// is cancelled, the payload is embedded as a data URL.
func (c *Chain) Store(ctx context.Context, purpose string, p Payload) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	validated, err := c.Validator.Validate(p)
	if err != nil {
		return nil, err
	}

	object := ObjectName(purpose, validated.ContentType, c.now())
	result := &Result{Object: object, ContentType: validated.ContentType}

	for _, strategy := range c.Strategies {
		if ctx.Err() != nil {
			break
		}

		url, err := c.attempt(ctx, strategy, object, validated)
		result.Attempts = append(result.Attempts, Attempt{Strategy: strategy.Name(), Err: err})
		if err != nil {
			c.warn("Upload strategy failed, trying next",
				zap.String("strategy", strategy.Name()),
				zap.String("object", object),
				zap.Error(err))
			continue
		}

		result.URL = url
		result.Strategy = strategy.Name()
		return result, nil
	}

	c.warn("All upload strategies failed, embedding payload inline",
		zap.String("object", object),
		zap.Int("attempts", len(result.Attempts)),
		zap.Int("bytes", len(validated.Data)))

	result.URL = InlineDataURL(validated)
	result.Strategy = StrategyInline
	return result, nil
}

// Validate checks p against the chain's validator without storing it.
func (c *Chain) Validate(p Payload) (Payload, error) {
	return c.Validator.Validate(p)
}

func (c *Chain) attempt(ctx context.Context, strategy Strategy, object string, p Payload) (url string, err error) {
	timeout := c.AttemptTimeout
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return strategy.Store(attemptCtx, object, p)
}

func (c *Chain) warn(msg string, fields ...zap.Field) {
	if c.Logger != nil {
		c.Logger.Warn(msg, fields...)
	}
}

func (c *Chain) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
