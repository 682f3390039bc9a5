package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/smart-support/internal/domain"
	"github.com/spec-kit/smart-support/internal/observability"
)

const cacheKeyPrefix = "classify:"

const defaultCacheTTL = 24 * time.Hour

const systemPrompt = `You label customer support tickets. Reply with exactly one of these categories and nothing else:
Payment Issue, Login Issue, App Bug, Refund Request, Performance, Other.

Examples:
"My card was declined at checkout" -> Payment Issue
"I can't log into my account" -> Login Issue
"The app crashes when I open settings" -> App Bug
"I want my money back for last month" -> Refund Request
"Everything is extremely slow since the update" -> Performance
"How do I change my display name?" -> Other`

// ChatCompleter is the slice of the chat client the classifier needs.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// LLMClassifier asks a hosted model for the category. Results are cached
// in Redis keyed by a hash of the problem text, and any transport or
// normalization failure falls back to the keyword heuristic so ticket
// creation keeps working when the model is down.
type LLMClassifier struct {
	completer ChatCompleter
	fallback  *KeywordClassifier
	redis     *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// NewLLMClassifier creates the hosted-model classifier. redisClient may
// be nil, which disables caching. A non-positive cacheTTL selects the
// default of 24 hours.
func NewLLMClassifier(completer ChatCompleter, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger, metrics *observability.Metrics) *LLMClassifier {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &LLMClassifier{
		completer: completer,
		fallback:  NewKeywordClassifier(),
		redis:     redisClient,
		cacheTTL:  cacheTTL,
		logger:    logger,
		metrics:   metrics,
	}
}

func cacheKey(problem string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(problem))))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Classify returns the cached or model-derived category, degrading to
// the keyword heuristic on any failure.
func (c *LLMClassifier) Classify(ctx context.Context, problem string) (domain.TicketCategory, error) {
	key := cacheKey(problem)

	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, key).Result(); err == nil {
			if category := normalizeCategory(cached); category != "" {
				return category, nil
			}
		}
	}

	reply, err := c.completer.Complete(ctx, systemPrompt, problem)
	if err != nil {
		c.logger.Warn("classifier model unavailable, using keyword fallback", zap.Error(err))
		c.metrics.RecordFallback("classifier")
		return c.fallback.Classify(ctx, problem)
	}

	category := normalizeCategory(reply)
	if category == "" {
		c.logger.Warn("classifier model returned unknown label, using keyword fallback",
			zap.String("label", reply))
		c.metrics.RecordFallback("classifier")
		return c.fallback.Classify(ctx, problem)
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, string(category), c.cacheTTL).Err(); err != nil {
			c.logger.Warn("unable to cache classification", zap.Error(err))
		}
	}

	return category, nil
}

// normalizeCategory matches a model reply to the fixed label set,
// tolerating case differences and surrounding chatter. Returns "" when
// no label matches.
func normalizeCategory(reply string) domain.TicketCategory {
	cleaned := strings.ToLower(strings.TrimSpace(reply))
	for _, category := range domain.Categories() {
		if cleaned == strings.ToLower(string(category)) {
			return category
		}
	}
	for _, category := range domain.Categories() {
		if category == domain.CategoryOther {
			continue
		}
		if strings.Contains(cleaned, strings.ToLower(string(category))) {
			return category
		}
	}
	return ""
}
