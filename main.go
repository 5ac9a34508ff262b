package main

import (
	"context"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/config"
	"life-weeks-bot/internal/handlers"
	"life-weeks-bot/internal/health"
	"life-weeks-bot/internal/logcfg"
	"life-weeks-bot/internal/scheduler"
	"life-weeks-bot/internal/storage"
	"life-weeks-bot/internal/utils"
)

func main() {
	cfg, err := config.Load()
	utils.Must(err)
	utils.Must(logcfg.RunLoggerConfig(cfg.LogLevel, cfg.LogFile))
	loc := cfg.Location()

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	utils.Must(err)
	bot.Debug = cfg.Debug
	logrus.WithField("username", bot.Self.UserName).Info("authorized")

	db, err := storage.New(cfg.DBPath)
	utils.Must(err)
	defer db.Close()

	sched, err := scheduler.New(loc)
	utils.Must(err)

	h := handlers.NewHandler(bot, db, sched, clockwork.NewRealClock(), loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	chats, err := db.ListChats(ctx)
	utils.Must(err)
	utils.Must(sched.Restore(chats))
	sched.Start(h)
	logrus.WithField("chats", len(chats)).Info("scheduler started")

	if err := handlers.RegisterCommands(bot); err != nil {
		logrus.WithError(err).Warn("set bot commands")
	}

	if cfg.HealthAddr != "" {
		go func() {
			if err := health.Serve(ctx, cfg.HealthAddr, db); err != nil {
				logrus.WithError(err).Error("health server")
			}
		}()
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = cfg.PollTimeout

	updates := bot.GetUpdatesChan(updateConfig)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case upd, ok := <-updates:
			if !ok {
				break loop
			}
			h.HandleUpdate(ctx, upd)
		}
	}

	logrus.Info("shutting down")
	bot.StopReceivingUpdates()
	if err := sched.Shutdown(); err != nil {
		logrus.WithError(err).Error("scheduler shutdown")
	}
}
