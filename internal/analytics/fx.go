package analytics

import (
	"github.com/smallbiznis/alankar/internal/analytics/cache"
	"github.com/smallbiznis/alankar/internal/analytics/repository"
	"github.com/smallbiznis/alankar/internal/analytics/service"
	"go.uber.org/fx"
)

var Module = fx.Module("analytics.service",
	fx.Provide(cache.NewRedisClient),
	fx.Provide(cache.NewSummaryCache),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
