package sources

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/observability"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
)

// Chain tries each strategy in order and returns the first non-empty result
// set. Strategies are never merged; the chain picks. A strategy failure is
// logged and the chain moves on; total failure yields an empty list, not an
// error.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, logger: logger}
}

func (c *Chain) Discover(ctx context.Context, target string, since time.Time) []store.Candidate {
	for _, strategy := range c.strategies {
		candidates, err := strategy.Discover(ctx, target, since)
		if err != nil {
			observability.SourceFailures.WithLabelValues(strategy.Name(), errorKind(err)).Inc()
			c.logger.Warn("discovery strategy failed",
				zap.String("source", strategy.Name()),
				zap.Error(err))
			continue
		}
		if len(candidates) > 0 {
			observability.CandidatesDiscovered.WithLabelValues(strategy.Name()).Add(float64(len(candidates)))
			return candidates
		}
	}
	return nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, hostapi.ErrTimeout):
		return "timeout"
	case errors.Is(err, hostapi.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, hostapi.ErrParse):
		return "parse_error"
	default:
		return "unavailable"
	}
}
