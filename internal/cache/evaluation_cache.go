package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/classforge/attempt-service/internal/models"
	"github.com/classforge/attempt-service/internal/utils"
	"github.com/redis/go-redis/v9"
)

// EvaluationCache is a Redis-backed read-through cache for evaluation
// definitions. A definition is immutable for the duration of an attempt, so
// staleness is bounded by the TTL and never affects a running attempt.
type EvaluationCache struct {
	client *redis.Client
	logger utils.Logger
	ttl    time.Duration
}

func NewEvaluationCache(client *redis.Client, logger utils.Logger, ttl time.Duration) *EvaluationCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &EvaluationCache{client: client, logger: logger, ttl: ttl}
}

func (c *EvaluationCache) GetEvaluation(ctx context.Context, evaluationID uint) (*models.Evaluation, bool) {
	raw, err := c.client.Get(ctx, evaluationKey(evaluationID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Evaluation cache read failed", "evaluation_id", evaluationID, "error", err)
		}
		return nil, false
	}

	var evaluation models.Evaluation
	if err := json.Unmarshal(raw, &evaluation); err != nil {
		c.logger.Warn("Evaluation cache entry corrupt, dropping", "evaluation_id", evaluationID, "error", err)
		c.client.Del(ctx, evaluationKey(evaluationID))
		return nil, false
	}
	return &evaluation, true
}

func (c *EvaluationCache) PutEvaluation(ctx context.Context, evaluation *models.Evaluation) {
	raw, err := json.Marshal(evaluation)
	if err != nil {
		c.logger.Warn("Evaluation cache marshal failed", "evaluation_id", evaluation.ID, "error", err)
		return
	}
	if err := c.client.Set(ctx, evaluationKey(evaluation.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Evaluation cache write failed", "evaluation_id", evaluation.ID, "error", err)
	}
}

// Invalidate drops a definition after it changes (evaluation edited or
// archived by its author).
func (c *EvaluationCache) Invalidate(ctx context.Context, evaluationID uint) error {
	return c.client.Del(ctx, evaluationKey(evaluationID)).Err()
}

func evaluationKey(evaluationID uint) string {
	return fmt.Sprintf("evaluation:%d", evaluationID)
}
