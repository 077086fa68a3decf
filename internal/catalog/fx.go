package catalog

import (
	"github.com/smallbiznis/voiceassist/internal/cache"
	"github.com/smallbiznis/voiceassist/internal/catalog/repository"
	"github.com/smallbiznis/voiceassist/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(cache.NewProductCache),
	fx.Provide(service.New),
)
