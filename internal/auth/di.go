package auth

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/config"
	"github.com/TBoneIsntCool/viper-red-panel/internal/discord"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Flow, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.IdentityClient](i)
		repo := do.MustInvoke[repository.Repository](i)
		reg := do.MustInvoke[*prometheus.Registry](i)
		return NewFlow(dc, repo, Options{
			RedirectURI:      cfg.DiscordRedirectURI,
			ProbeConcurrency: cfg.DiscordProbeConcurrency,
		}, reg), nil
	})
}
