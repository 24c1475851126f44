package discord

import (
	"github.com/TBoneIsntCool/viper-red-panel/internal/config"
	discordpkg "github.com/TBoneIsntCool/viper-red-panel/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.IdentityClient, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewClient(Options{
			ClientID:     c.DiscordClientID,
			ClientSecret: c.DiscordClientSecret,
			RedirectURI:  c.DiscordRedirectURI,
			BotToken:     c.DiscordBotToken,
			BotUserID:    c.DiscordBotUserID,
			Timeout:      c.DiscordRequestTimeout,
		})
	})
}
