package shift

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Ledger, error) {
		repo := do.MustInvoke[repository.Repository](i)
		return NewLedger(repo), nil
	})
}
