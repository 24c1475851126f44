package webhook

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/config"
	"github.com/TBoneIsntCool/viper-red-panel/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (webhook.Notifier, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPNotifier(c.ModerationWebhookURL), nil
	})
}
