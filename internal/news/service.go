package news

import (
	"context"

	"go.uber.org/zap"

	"github.com/lu-zhengda/launchdeck/internal/metrics"
)

// Result is one category's headlines.
type Result struct {
	Category Category `json:"category"`
	Items    []Item   `json:"items"`
	Fallback bool     `json:"fallback"`
}

// Service answers headline lookups. The live source is optional.
type Service struct {
	source  Source
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewService(source Source, logger *zap.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, logger: logger, metrics: m}
}

// Hot returns headlines for category. A failed or empty live fetch is
// never an error: the bundled items for the category are returned instead.
// Only cancellation of ctx is reported.
func (s *Service) Hot(ctx context.Context, category Category) (Result, error) {
	if s.source != nil {
		items, err := s.source.Fetch(ctx, category)
		switch {
		case err != nil && ctx.Err() != nil:
			return Result{Category: category}, ctx.Err()
		case err != nil:
			s.logger.Warn("news fetch failed, using bundled headlines",
				zap.String("category", string(category)), zap.Error(err))
		case len(items) > 0:
			s.metrics.RecordNews(string(category), "live")
			return Result{Category: category, Items: items}, nil
		}
	}

	s.metrics.RecordNews(string(category), "fallback")
	return Result{Category: category, Items: Bundled(category), Fallback: true}, nil
}
