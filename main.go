package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/raine/survival-bro/internal/bot"
	"github.com/raine/survival-bro/internal/config"
	"github.com/raine/survival-bro/internal/llm"
	"github.com/raine/survival-bro/internal/metrics"
	"github.com/raine/survival-bro/internal/scan"
	"github.com/raine/survival-bro/internal/storage"
	"github.com/raine/survival-bro/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	logFileName     = "survival-bro.log"
	shutdownTimeout = 10 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	if missing := config.MissingRequired(); len(missing) > 0 {
		if isInteractiveTerminal() {
			if !runSetupWizard() {
				waitOnWindows()
				os.Exit(1)
			}
		} else {
			// Analyses fail one by one with a configuration error until the key is set
			log.Warn().Strs("missing", missing).Msg("credential not set, analyses will fail")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fatalWithWait("invalid configuration: %v", err)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	closeLog := setupLogging()
	defer closeLog()

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	analyzer := newAnalyzer(cfg)
	log.Info().Str("provider", cfg.Provider).Str("model", llm.ModelName(analyzer)).Msg("vision analyzer initialized")

	if cfg.CacheEnabled {
		cache, err := storage.NewSQLiteStore(storage.MemoryDSN)
		if err != nil {
			fatalWithWait("failed to initialize analysis cache: %v", err)
		}
		defer cache.Close()
		analyzer = llm.NewCachedAnalyzer(analyzer, cache)
		log.Info().Msg("vision analysis caching enabled")
	}

	store := scan.NewStore()
	m := metrics.New()
	store.Subscribe(m.Observe)
	intake := scan.NewIntake(ctx, store, analyzer)

	g, gctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.NewRouter(intake, m, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if cfg.BotEnabled() {
		g.Go(func() error {
			return runBot(gctx, cfg, intake)
		})
	} else {
		log.Info().Msg("BOT_TOKEN not set, telegram bot disabled")
	}

	err = g.Wait()

	log.Info().Msg("waiting for in-flight analyses")
	intake.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// setupLogging logs to stderr, plus a file unless running under systemd.
func setupLogging() func() {
	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return func() {}
	}

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fatalWithWait("failed to open log file: %v", err)
	}

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", logFileName).Msg("logging to file")

	return func() { logFile.Close() }
}

func newAnalyzer(cfg config.Config) llm.Analyzer {
	if cfg.Provider == config.ProviderOpenAI {
		return llm.NewOpenAIAnalyzer(
			llm.WithOpenAIModel(cfg.OpenAIModel),
			llm.WithOpenAIBaseURL(cfg.OpenAIBase),
		)
	}
	return llm.NewGeminiAnalyzer(llm.WithGeminiModel(cfg.GeminiModel))
}

func runBot(ctx context.Context, cfg config.Config, intake *scan.Intake) error {
	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return err
	}
	tg.Debug = false
	log.Info().Str("username", tg.Self.UserName).Int64("ownerID", cfg.OwnerID).Msg("authorized on account")

	// Register bot commands for Telegram's command menu
	bot.RegisterCommands(tg)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := tg.GetUpdatesChan(updateConfig)

	b := bot.NewBot(tg, intake, cfg.OwnerID)
	defer b.Stop()

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopping bot update loop")
			tg.StopReceivingUpdates()
			wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				log.Warn().Msg("updates channel closed")
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
