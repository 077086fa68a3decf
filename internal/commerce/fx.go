package commerce

import (
	"github.com/smallbiznis/voiceassist/internal/commerce/engine"
	"github.com/smallbiznis/voiceassist/internal/commerce/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commerce.service",
	fx.Provide(engine.NewClient),
	fx.Provide(service.New),
)
