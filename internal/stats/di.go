package stats

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/modlog"
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/TBoneIsntCool/viper-red-panel/internal/shift"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Aggregator, error) {
		repo := do.MustInvoke[repository.Repository](i)
		log := do.MustInvoke[*modlog.Log](i)
		ledger := do.MustInvoke[*shift.Ledger](i)
		return NewAggregator(repo, log, ledger), nil
	})
}
