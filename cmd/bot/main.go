// Command bot runs the friend reminder Telegram bot.
//
// Usage:
//
//	friend-reminder-bot serve
//	friend-reminder-bot migrate
//	friend-reminder-bot plan --account 123456789
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"friend_reminder_bot/internal/app"
	"friend_reminder_bot/internal/domain/calendar"
	"friend_reminder_bot/internal/domain/notification"
	"friend_reminder_bot/internal/infra/config"
	idb "friend_reminder_bot/internal/infra/database"
	"friend_reminder_bot/internal/infra/delivery"
	"friend_reminder_bot/internal/infra/fcm"
	"friend_reminder_bot/internal/infra/logger"
	"friend_reminder_bot/internal/infra/scheduler"
	"friend_reminder_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

var cfg *config.AppConfig

func main() {
	root := &cobra.Command{
		Use:           "friend-reminder-bot",
		Short:         "Telegram bot that reminds you of birthdays and friends to catch up with",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("could not load application configuration: %w", err)
			}
			logger.Init(cfg)
			logger.Log.WithFields(logrus.Fields{
				"log_level":   cfg.LogLevel,
				"environment": cfg.Environment,
				"backend":     cfg.StoreBackend,
				"channel":     cfg.DeliveryChannel,
			}).Info("Configuration loaded")
			return nil
		},
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(planCmd())

	if err := root.Execute(); err != nil {
		logger.Log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := idb.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Log.Info("Database schema is up to date")
			return nil
		},
	}
}

func planCmd() *cobra.Command {
	var telegramID int64
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Re-plan tomorrow's reminders now",
		Long:  "Re-plans tomorrow's reminders for one account, or for every active account when --account is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			ctx := cmd.Context()
			clock := calendar.SystemClock(cfg.Location)

			b, err := openBackends(ctx, cfg, clock)
			if err != nil {
				return err
			}
			defer b.Close()

			manager := delivery.NewManager(b.scheduled, clock, logger.Component("delivery"))
			planner := app.NewPlanner(b.accounts, b.stores, manager, notification.NewCalendar(clock, nil), logger.Component("planner"))

			if telegramID == 0 {
				return planner.PlanAll(ctx)
			}
			a, err := app.NewAccountService(b.accounts).Get(ctx, telegramID)
			if err != nil {
				return err
			}
			result, err := planner.PlanAccount(ctx, a)
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "birthday: %t (%d friends), catch-ups: %d\n",
					result.BirthdayScheduled, len(result.BirthdayFriendIDs), len(result.CatchUpFriendIDs))
			}
			return err
		},
	}
	cmd.Flags().Int64Var(&telegramID, "account", 0, "Telegram user id of the account to plan")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the planning job and the dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireServe(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	mainLog := logger.Component("main")
	clock := calendar.SystemClock(cfg.Location)

	b, err := openBackends(ctx, cfg, clock)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.db != nil {
		if err := idb.Migrate(ctx, b.db); err != nil {
			return err
		}
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Unhandled bot error")
		},
	})
	if err != nil {
		return fmt.Errorf("could not create Telegram bot: %w", err)
	}
	client := telegram.NewTelebotAdapter(bot)

	var sender delivery.Sender
	switch cfg.DeliveryChannel {
	case config.ChannelFCM:
		sender, err = fcm.NewSender(ctx, cfg.FirebaseCredentialsFile, b.accounts, app.DefaultChannelID, logger.Component("fcm"))
		if err != nil {
			return err
		}
	default:
		sender = telegram.NewNotificationSender(client)
	}

	notifCalendar := notification.NewCalendar(clock, nil)
	manager := delivery.NewManager(b.scheduled, clock, logger.Component("delivery"))
	planner := app.NewPlanner(b.accounts, b.stores, manager, notifCalendar, logger.Component("planner"))

	dispatcher := delivery.NewDispatcher(b.scheduled, manager, sender, clock, cfg.SendRatePerSecond, cfg.DispatchBatchSize, logger.Component("dispatcher"))
	dispatcher.OnDelivered(planner.RecordDelivered)

	accountService := app.NewAccountService(b.accounts)
	friendService := app.NewFriendService(b.stores, clock, logger.Component("friends"))
	journalService := app.NewJournalService(b.stores, clock, nil, cfg.DraftDebounce, logger.Component("journal"))
	defer journalService.Close()

	handlers := telegram.NewHandlers(accountService, friendService, journalService, planner, manager, client, clock, logger.Component("handlers"))
	handlers.Register(ctx, bot)
	planner.OnResponse(handlers.HandleResponse)

	// Reminders queued before a restart stay as they are; only their
	// response listeners need attaching again.
	if err := planner.WatchAll(ctx); err != nil {
		mainLog.WithError(err).Warn("Attaching response listeners finished with errors")
	}

	reminders := scheduler.NewReminderScheduler(planner, dispatcher, cfg.Location, logger.Component("scheduler"), cfg.CronSpecDailyPlan, cfg.CronSpecDispatch)
	if err := reminders.Start(); err != nil {
		return err
	}

	go bot.Start()
	mainLog.Info("Bot and scheduler are running")

	<-ctx.Done()

	mainLog.Info("Shutting down application...")
	bot.Stop()
	reminders.Stop()
	mainLog.Info("Application shut down gracefully.")
	return nil
}
