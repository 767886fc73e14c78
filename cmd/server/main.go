package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/websitelelo/websitelelo/internal/auth"
	"github.com/websitelelo/websitelelo/internal/config"
	"github.com/websitelelo/websitelelo/internal/content"
	"github.com/websitelelo/websitelelo/internal/filestore"
	"github.com/websitelelo/websitelelo/internal/handlers"
	"github.com/websitelelo/websitelelo/internal/metrics"
	"github.com/websitelelo/websitelelo/internal/mongostore"
	"github.com/websitelelo/websitelelo/internal/notify"
	"github.com/websitelelo/websitelelo/internal/repository"
	"github.com/websitelelo/websitelelo/internal/store"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Using TextHandler for console readability; for production JSONHandler might be preferred.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	// 2. Primary database (optional)
	var mongoClient *mongostore.Client
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoClient, err = mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		cancel()
		if err != nil {
			slog.Error("Failed to initialize MongoDB client", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("MONGO_URI not set. Serving every collection from local files.", "dir", cfg.DataDir)
	}

	ids, err := repository.NewSnowflakeIDs(cfg.SnowflakeNode)
	if err != nil {
		slog.Error("Failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	catalog := content.NewCatalog(content.MongoPrimaries(mongoClient), content.Options{
		Files:    filestore.New(cfg.DataDir),
		IDs:      ids,
		Recorder: m,
	})

	// 3. Admin credential store
	admins, err := store.NewStore(cfg.AdminDBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	if err := admins.Migrate(context.Background()); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// 4. Auth Gate
	var provider auth.Provider
	if cfg.FirebaseAPIKey != "" {
		fb := auth.NewFirebaseProvider(cfg.FirebaseAPIKey, cfg.FirebaseProjectID)
		if cfg.FirebaseProjectID != "" {
			verifier, err := auth.NewFirebaseVerifier(context.Background(), cfg.FirebaseProjectID)
			if err != nil {
				slog.Error("Failed to initialize Firebase token verifier", "error", err)
				os.Exit(1)
			}
			fb.Tokens = verifier
		} else {
			slog.Warn("FIREBASE_PROJECT_ID not set. Firebase tokens will be checked with a lookup call per request.")
		}
		provider = fb
	}
	demo := auth.NewDemoPolicy(cfg.DemoMode, cfg.DemoEmail, cfg.DemoPassword)
	if demo.Enabled() {
		slog.Warn("Demo mode is enabled. Set DEMO_MODE=false in production.", "email", demo.Email())
	}
	gate := auth.NewGate(provider, admins, demo, auth.NewTokenSigner(cfg.JWTSecret, cfg.TokenTTL))

	// 5. Session Setup
	sessionStore := sessions.NewCookieStore(cfg.SessionKey)
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.Secure = cfg.CookieSecure // Configurable for production
	sessionStore.Options.SameSite = http.SameSiteLaxMode
	sessionStore.Options.Path = "/"
	if cfg.CookieDomain != "" {
		sessionStore.Options.Domain = cfg.CookieDomain
	}

	CSRF := csrf.Protect(
		cfg.CSRFKey,
		csrf.Secure(cfg.CookieSecure), // Configurable for production
		csrf.Path("/"),
		csrf.ErrorHandler(handlers.CSRFErrorHandler()),
		// Trust local development origins
		csrf.TrustedOrigins([]string{"localhost:" + cfg.Port, "127.0.0.1:" + cfg.Port, "localhost", "127.0.0.1"}),
	)

	// One contact submission per IP per window
	contactLimiter := handlers.NewRateLimiter(cfg.ContactRateWindow)
	defer contactLimiter.Stop()

	var notifier handlers.LeadNotifier
	if cfg.ContactWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.ContactWebhookURL)
	}

	handler := handlers.NewRouter(handlers.RouterConfig{
		Catalog:        catalog,
		Gate:           gate,
		SessionStore:   sessionStore,
		CSRF:           CSRF,
		CookieSecure:   cfg.CookieSecure,
		CORSOrigin:     cfg.CORSOrigin,
		UploadDir:      cfg.UploadDir,
		ContactLimiter: contactLimiter,
		Notifier:       notifier,
		Metrics:        m,
	})

	// 6. Start Server with Graceful Shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Create a channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Goroutine to start the server
	go func() {
		slog.Info("Server starting", "port", cfg.Port, "database_connected", catalog.Connected())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to listen and serve", "error", err)
			os.Exit(1)
		}
	}()

	// Block until a signal is received
	<-stop

	slog.Info("Shutting down server gracefully...")

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(ctx); err != nil {
			slog.Warn("MongoDB disconnect failed", "error", err)
		}
	}
	if err := admins.Close(); err != nil {
		slog.Warn("Closing admin store failed", "error", err)
	}

	slog.Info("Server exited gracefully.")
}
