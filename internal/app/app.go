package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"olekmabot/internal/bot"
	"olekmabot/internal/config"
	"olekmabot/internal/faq"
	"olekmabot/internal/publish"
	"olekmabot/internal/storage"
	"olekmabot/internal/storage/ch"
	"olekmabot/internal/storage/lite"
	"olekmabot/internal/storage/stubs"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Storage
	bot    *bot.Bot
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	log.Println("Starting olekma submission bot...")

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Initialize bot
	if err := app.initBot(); err != nil {
		return nil, err
	}

	// Initialize HTTP server
	app.initHTTPServer()

	return app, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initDatabase opens the configured moderation store
func (a *App) initDatabase() error {
	var db storage.Storage
	switch a.config.StorageBackend {
	case config.BackendClickHouse:
		tlsStatus := "without TLS"
		if a.config.ClickHouseUseTLS {
			tlsStatus = "with TLS"
		}
		log.Printf("Connecting to ClickHouse at %s:%d (database: %s, user: %s, %s)",
			a.config.ClickHouseHost, a.config.ClickHousePort, a.config.ClickHouseDatabase, a.config.ClickHouseUser, tlsStatus)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB
	case config.BackendSQLite:
		log.Printf("Opening SQLite database at %s", a.config.SQLitePath)
		sqliteDB, err := lite.NewSQLiteDB(a.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB
	default:
		log.Println("Using in-memory moderation queue")
		db = stubs.NewMockDB()
	}

	// Initialize database schema
	ctx := context.Background()
	if err := db.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	log.Println("Database initialized successfully")

	a.db = db
	return nil
}

// initBot initializes the Telegram bot
func (a *App) initBot() error {
	items, err := faq.Load(a.config.FAQFile)
	if err != nil {
		return fmt.Errorf("failed to load FAQ: %w", err)
	}

	var publisher publish.Publisher
	if a.config.SiteAPIKey != "" {
		publisher = publish.NewClient(
			a.config.SiteURL,
			a.config.SiteAPIEndpoint,
			a.config.SiteAPIKey,
			a.config.PublishTimeout,
			a.config.PublishMaxRetries,
			a.logger,
		)
	} else {
		log.Println("SITE_API_KEY not set, approved submissions will only be logged")
		publisher = &publish.LogPublisher{SiteURL: a.config.SiteURL, Logger: a.logger}
	}

	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.db, publisher, bot.Settings{
		ModeratorChatID:  a.config.ModeratorChatID,
		ModeratorUserIDs: a.config.ModeratorUserIDs,
		Links: bot.Links{
			Site:     a.config.SiteURL,
			Register: a.config.SiteRegisterURL,
			Login:    a.config.SiteLoginURL,
		},
		SessionTTL:      a.config.SessionTTL,
		DispatchWorkers: a.config.DispatchWorkers,
		FAQ:             items,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	log.Printf("Bot created successfully. Moderator chat: %d, moderators: %v", a.config.ModeratorChatID, a.config.ModeratorUserIDs)

	a.bot = telegramBot
	return nil
}

// initHTTPServer builds the router for health checks, webhook and the moderator API
func (a *App) initHTTPServer() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	// Root endpoint
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		mode := "polling"
		if a.config.WebhookMode {
			mode = "webhook"
		}
		fmt.Fprintf(w, "Olekma submission bot is running (mode: %s)", mode)
	})

	bot.NewHTTPServer(a.bot, a.config.WebhookMode).RegisterRoutes(r)

	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Starting HTTP server on port %s", a.config.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.bot.Run(ctx)
	})

	// Stop the HTTP server once a signal arrives or any worker fails.
	// This is the only caller of Shutdown.
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		return a.Shutdown()
	})

	// Start bot in appropriate mode
	if a.config.WebhookMode {
		// Webhook mode: configure webhook and wait for HTTP requests
		log.Printf("Starting bot in WEBHOOK mode (URL: %s)", a.config.WebhookURL)
		if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
			stop()
			_ = g.Wait()
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
		log.Println("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
	} else {
		// Polling mode: actively poll Telegram servers
		g.Go(func() error {
			log.Println("Starting bot in POLLING mode...")
			return a.bot.Start(ctx)
		})
	}

	return g.Wait()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Close database
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
		return err
	}

	_ = a.logger.Sync()
	log.Println("Shutdown complete")
	return nil
}
