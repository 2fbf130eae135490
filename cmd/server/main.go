package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clahub/clahub/internal/api"
	"github.com/clahub/clahub/internal/approval"
	"github.com/clahub/clahub/internal/auth"
	"github.com/clahub/clahub/internal/company"
	"github.com/clahub/clahub/internal/config"
	"github.com/clahub/clahub/internal/docusign"
	"github.com/clahub/clahub/internal/email"
	"github.com/clahub/clahub/internal/envelope"
	"github.com/clahub/clahub/internal/identity"
	"github.com/clahub/clahub/internal/metrics"
	"github.com/clahub/clahub/internal/notifier"
	"github.com/clahub/clahub/internal/project"
	"github.com/clahub/clahub/internal/scm"
	"github.com/clahub/clahub/internal/signature"
	"github.com/clahub/clahub/internal/signing"
	"github.com/clahub/clahub/internal/storage"
	"github.com/clahub/clahub/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	sigRepo := signature.NewRepository(pool)
	userRepo := user.NewRepository(pool)
	companyRepo := company.NewRepository(pool)
	projectRepo := project.NewRepository(pool)

	providerTimeout := time.Duration(cfg.ProviderTimeout) * time.Second
	provider := docusign.NewClient(cfg.DocuSignBaseURL, cfg.DocuSignAccountID, cfg.DocuSignAuthToken, providerTimeout)

	var githubResolver identity.GitHubResolver
	var updater scm.ChangeRequestUpdater = scm.NoopUpdater{}
	if cfg.GitHubToken != "" {
		githubResolver = identity.NewGitHubClient(cfg.GitHubToken)
		updater = scm.NewGitHubUpdater(cfg.GitHubToken)
	} else {
		slog.Warn("no GitHub token configured; username resolution and status updates disabled")
	}

	var gitlabResolver identity.GitLabResolver
	if cfg.GitLabToken != "" {
		gitlabResolver, err = identity.NewGitLabClient(cfg.GitLabToken, cfg.GitLabAPIURL)
		if err != nil {
			slog.Error("failed to initialize GitLab client", "error", err)
			os.Exit(1)
		}
	}

	var sender email.Sender = email.NoopSender{}
	var docStore storage.DocumentStore
	if cfg.EmailFromAddress != "" || cfg.SignedDocsBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			slog.Error("failed to load AWS configuration", "error", err)
			os.Exit(1)
		}
		if cfg.EmailFromAddress != "" {
			sender = email.NewSESSender(awsCfg, cfg.EmailFromAddress)
		}
		if cfg.SignedDocsBucket != "" {
			docStore = storage.NewS3Store(awsCfg, cfg.SignedDocsBucket)
		}
	} else {
		slog.Warn("no email address or document bucket configured; signed document delivery disabled")
	}

	m := metrics.New()
	matcher := approval.NewMatcher(githubResolver, gitlabResolver, userRepo)
	orchestrator := envelope.NewOrchestrator(provider, sigRepo, projectRepo, userRepo)
	notify := notifier.NewNotifier(userRepo, sender)

	signingService := signing.NewService(signing.Deps{
		Signatures:      sigRepo,
		Users:           userRepo,
		Companies:       companyRepo,
		Projects:        projectRepo,
		Matcher:         matcher,
		GitHub:          githubResolver,
		Envelopes:       orchestrator,
		Provider:        provider,
		Updater:         updater,
		Sender:          sender,
		Documents:       docStore,
		Notifier:        notify,
		Metrics:         m,
		CallbackBaseURL: cfg.CallbackBaseURL,
	})

	authService := auth.NewService(userRepo, cfg.BcryptCost)

	router := api.NewRouter(api.RouterDeps{
		Signing:       signingService,
		SignatureRepo: sigRepo,
		ProjectRepo:   projectRepo,
		CompanyRepo:   companyRepo,
		UserRepo:      userRepo,
		Auth:          authService,
		DBPinger:      pool,
		Metrics:       m,
		Version:       cfg.Version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting CLA server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
