package identity

import (
	"github.com/smallbiznis/voiceassist/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(provideResolver),
)

func provideResolver(cfg config.Config) (*Resolver, error) {
	scheme, err := ParseScheme(cfg.Identity.Scheme)
	if err != nil {
		return nil, err
	}
	return NewResolver(scheme), nil
}
