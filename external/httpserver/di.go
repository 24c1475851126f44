package httpserver

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/auth"
	"github.com/TBoneIsntCool/viper-red-panel/internal/config"
	"github.com/TBoneIsntCool/viper-red-panel/internal/modlog"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/TBoneIsntCool/viper-red-panel/internal/shift"
	"github.com/TBoneIsntCool/viper-red-panel/internal/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
	"golang.org/x/time/rate"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		repo := do.MustInvoke[repository.Repository](i)
		return NewServer(Deps{
			Auth:     do.MustInvoke[*auth.Flow](i),
			Profiles: repo,
			Shifts:   do.MustInvoke[*shift.Ledger](i),
			Logs:     do.MustInvoke[*modlog.Log](i),
			Stats:    do.MustInvoke[*stats.Aggregator](i),
			Members:  repo,
			Registry: do.MustInvoke[*prometheus.Registry](i),
		}, Options{
			Addr:           cfg.HTTPAddr,
			AllowedOrigins: cfg.AllowedOrigins,
			AuthRateLimit:  rate.Limit(cfg.AuthRateLimitPerSec),
			AuthBurst:      cfg.AuthRateLimitBurst,
		}), nil
	})
}
