package modlog

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/repository"
	"github.com/TBoneIsntCool/viper-red-panel/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Log, error) {
		repo := do.MustInvoke[repository.Repository](i)
		notifier := do.MustInvoke[webhook.Notifier](i)
		return NewLog(repo, notifier), nil
	})
}
