package main

import (
	"log"

	"github.com/m3rciful/relaybot/bot"
	"github.com/m3rciful/relaybot/core/buildinfo"
	"github.com/m3rciful/relaybot/core/cmd"
)

func main() {
	log.Printf("relaybot %s (commit %s, built %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date)

	err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return bot.LoadSettings(path)
		},
		Bootstrap: func(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return bot.Bootstrap(carrier.CoreConfig())
		},
	})
	if err != nil {
		log.Fatalf("relaybot: %v", err)
	}
}
