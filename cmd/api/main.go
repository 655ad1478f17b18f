package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/MarkKevinCanonoy/Web-Project/cmd/mainconfig"
	"github.com/MarkKevinCanonoy/Web-Project/internal/api/router"
	"github.com/MarkKevinCanonoy/Web-Project/internal/appointments"
	"github.com/MarkKevinCanonoy/Web-Project/internal/assistant"
	"github.com/MarkKevinCanonoy/Web-Project/internal/auth"
	"github.com/MarkKevinCanonoy/Web-Project/internal/compliance"
	appconfig "github.com/MarkKevinCanonoy/Web-Project/internal/config"
	httpmiddleware "github.com/MarkKevinCanonoy/Web-Project/internal/http/middleware"
	"github.com/MarkKevinCanonoy/Web-Project/internal/live"
	"github.com/MarkKevinCanonoy/Web-Project/internal/notify"
	"github.com/MarkKevinCanonoy/Web-Project/internal/observability/metrics"
	"github.com/MarkKevinCanonoy/Web-Project/internal/scheduling"
	"github.com/MarkKevinCanonoy/Web-Project/internal/users"
	"github.com/MarkKevinCanonoy/Web-Project/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Info("starting school clinic API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"email_provider", cfg.EmailProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// app is the fully wired API with the resources it must release.
type app struct {
	handler http.Handler
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, services and the router. Background sweepers stop
// when ctx is canceled.
func newApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}
	checks := map[string]router.HealthCheck{}

	policy, err := cfg.SchedulingPolicy()
	if err != nil {
		return nil, err
	}
	calendar := scheduling.NewCalendar(policy, nil)

	metricsHandler, bookingMetrics, chatMetrics := setupMetrics()

	var awsCfg *aws.Config
	loadAWS := func() (aws.Config, error) {
		if awsCfg == nil {
			loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
			if err != nil {
				return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
			}
			awsCfg = &loaded
		}
		return *awsCfg, nil
	}

	// Appointments
	var apptRepo appointments.Repository = appointments.NewMemoryRepository()
	if pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		apptRepo = appointments.NewPostgresRepository(pool)
		a.closers = append(a.closers, pool.Close)
		checks["postgres"] = pool.Ping
	} else if cfg.DatabaseURL != "" {
		return nil, fmt.Errorf("postgres unavailable")
	}

	// Users and the audit trail share a database/sql handle.
	var userRepo users.Repository = users.NewMemoryRepository()
	var auditStore compliance.Store = compliance.NewMemoryStore()
	if db, err := openUsersDB(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	} else if db != nil {
		userRepo = users.NewSQLRepository(db)
		auditStore = compliance.NewSQLStore(db)
		a.closers = append(a.closers, func() { _ = db.Close() })
		checks["users_db"] = db.PingContext
	}
	auditSvc := compliance.NewAuditService(auditStore)

	sender, err := setupEmailSender(cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	hub := live.NewHub(logger)
	apptSvc := appointments.NewService(apptRepo, calendar, logger,
		appointments.WithNotifier(notify.NewNotifier(sender, cfg.EmailFromName, logger)),
		appointments.WithPublisher(hub),
		appointments.WithAuditor(auditSvc),
		appointments.WithMetrics(bookingMetrics),
	)

	// Accounts
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	userSvc := users.NewService(userRepo, issuer, logger)
	if cfg.BootstrapAdmin() {
		if err := userSvc.EnsureAdmin(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	// Assistant
	store, redisClient := setupSessionStore(cfg, logger)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	chatOpts := []assistant.Option{assistant.WithMetrics(chatMetrics)}
	llm, closeLLM, err := setupLLM(ctx, cfg, loadAWS)
	if err != nil {
		return nil, err
	}
	if llm != nil {
		chatOpts = append(chatOpts, assistant.WithLLM(llm))
		a.closers = append(a.closers, closeLLM)
	}
	chatSvc := assistant.NewService(apptSvc, store, calendar, logger, chatOpts...)

	authLimiter := httpmiddleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)
	chatLimiter := httpmiddleware.NewRateLimiter(cfg.ChatRateLimit, cfg.ChatRateBurst)
	go authLimiter.RunSweeper(ctx, 5*time.Minute)
	go chatLimiter.RunSweeper(ctx, 5*time.Minute)

	a.handler = router.New(&router.Config{
		Logger:             logger,
		Verifier:           issuer,
		Appointments:       appointments.NewHandler(apptSvc, logger),
		Users:              users.NewHandler(userSvc, logger),
		Assistant:          assistant.NewHandler(chatSvc, logger),
		Audit:              compliance.NewHandler(auditSvc, logger),
		Live:               live.NewHandler(hub, cfg.CORSAllowedOrigins),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AuthLimiter:        authLimiter,
		ChatLimiter:        chatLimiter,
		HealthChecks:       checks,
	})
	return a, nil
}

// setupMetrics registers the booking and chat collectors on a private
// registry alongside the Go runtime collectors.
func setupMetrics() (http.Handler, *metrics.BookingMetrics, *metrics.ChatMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewBookingMetrics(reg), metrics.NewChatMetrics(reg)
}

// connectPostgresPool returns nil when no database is configured or the
// pool cannot be created; the caller falls back to memory storage.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		logger.Warn("DATABASE_URL not set; appointments are kept in memory")
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// openUsersDB opens the database/sql handle used by the user store.
func openUsersDB(ctx context.Context, databaseURL string) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open users db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping users db: %w", err)
	}
	return db, nil
}

func setupSessionStore(cfg *appconfig.Config, logger *logging.Logger) (assistant.SessionStore, *redis.Client) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set; chat sessions are kept in memory")
		return assistant.NewMemorySessionStore(cfg.SessionTTL), nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	return assistant.NewRedisSessionStore(client, cfg.SessionTTL), client
}

// setupLLM returns a nil client when the assistant runs guided-only.
func setupLLM(ctx context.Context, cfg *appconfig.Config, loadAWS func() (aws.Config, error)) (assistant.LLMClient, func(), error) {
	switch cfg.LLMProvider {
	case "gemini":
		client, err := assistant.NewGeminiClient(ctx, cfg.GoogleAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	case "bedrock":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, nil, err
		}
		client, err := assistant.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID)
		if err != nil {
			return nil, nil, fmt.Errorf("bedrock client: %w", err)
		}
		return client, func() {}, nil
	}
	return nil, nil, nil
}

// setupEmailSender picks the delivery backend. The stub only logs.
func setupEmailSender(cfg *appconfig.Config, loadAWS func() (aws.Config, error), logger *logging.Logger) (notify.EmailSender, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey: cfg.SendGridAPIKey,
			Sender: clinicMailbox(cfg),
		}, logger)
		if sender == nil {
			return nil, fmt.Errorf("sendgrid sender: missing API key")
		}
		return sender, nil
	case "ses":
		awsCfg, err := loadAWS()
		if err != nil {
			return nil, err
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			Sender: clinicMailbox(cfg),
		}, logger), nil
	}
	return notify.NewStubEmailSender(logger), nil
}

func clinicMailbox(cfg *appconfig.Config) notify.Sender {
	return notify.Sender{
		FromEmail: cfg.EmailFrom,
		FromName:  cfg.EmailFromName,
		ReplyTo:   cfg.EmailReplyTo,
	}
}
