// Package bot assembles the file relay application: the allow-list gate,
// the per-user conversation engine, the storage destinations, and the
// optional upload journal.
package bot

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/bot/access"
	"github.com/m3rciful/relaybot/bot/journal"
	"github.com/m3rciful/relaybot/bot/session"
	"github.com/m3rciful/relaybot/bot/storage"
	"github.com/m3rciful/relaybot/core/bootstrap"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/commands"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
)

// Settings wraps the core configuration for the cmd runner.
type Settings struct {
	Core *coreconfig.Config
}

// CoreConfig implements cmd.ConfigCarrier.
func (s *Settings) CoreConfig() *coreconfig.Config { return s.Core }

// LoadSettings reads configuration from path plus the environment.
func LoadSettings(path string) (*Settings, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return &Settings{Core: cfg}, nil
}

// App is the composed relay application.
type App struct {
	cfg      *coreconfig.Config
	db       *sqlx.DB
	sessions *session.Manager
	factory  *storage.Factory
	allow    *access.Allowlist
	journal  *journal.Store
}

// Bootstrap initializes infrastructure (logger, optional journal database)
// and builds the application graph.
func Bootstrap(cfg *coreconfig.Config) (*App, error) {
	var dbCfg coredatabase.Config
	if cfg.Journal.Enabled {
		if err := envconfig.Process("", &dbCfg); err != nil {
			return nil, fmt.Errorf("bot: journal database env: %w", err)
		}
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:         cfg,
		Database:       dbCfg,
		JournalEnabled: cfg.Journal.Enabled,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		db:       res.DB,
		sessions: session.NewManager(),
		factory:  storage.NewFactory(cfg.Storage),
		allow:    access.Parse(cfg.Access.ApprovedUserIDs),
		journal:  journal.New(res.DB),
	}, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Choose a storage service and begin relaying files",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Finish the current session",
	})
	reg.SetTextFallback(a.handleBackendChoice)

	mws := coretelegram.DefaultMiddlewares(a.cfg, msgApology, nil)
	mws = append(mws, coretelegram.Middleware{
		Name: "allowlist",
		Use: middleware.Allowlist(middleware.AccessOptions{
			Approver: a.allow,
			OnReject: a.rejectUnauthorized,
		}),
	})

	routes := []coretelegram.Route{
		{Endpoint: "/start", Handler: a.handleStart},
		{Endpoint: "/cancel", Handler: a.handleCancel},
		{Endpoint: tele.OnDocument, Handler: a.handleAttachment},
		{Endpoint: tele.OnVideo, Handler: a.handleAttachment},
		{Endpoint: tele.OnPhoto, Handler: a.handleAttachment},
	}

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: mws,
		Routes:      routes,
		OnStop: func(_ context.Context, _ coretelegram.Runtime) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}
