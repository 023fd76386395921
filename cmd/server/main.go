// Package main initializes and starts the study backend: configuration,
// logging, the PostgreSQL store, the Gemini tutor, the HTTP API and the
// document cleaner.
package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/feynmind/internal/config"
	"github.com/atinyakov/feynmind/internal/db"
	"github.com/atinyakov/feynmind/internal/logger"
	"github.com/atinyakov/feynmind/internal/repository"
	"github.com/atinyakov/feynmind/internal/server/handler/http"
	"github.com/atinyakov/feynmind/internal/service"
	"github.com/atinyakov/feynmind/internal/tutor"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	cleanerInterval = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		logger.Fatal("failed to init logger", err)
	}
	zapLogger := log.Log

	if err := run(options, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

func run(options *config.Options, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("cannot init database: %w", err)
	}
	defer postgresDB.Close()

	secret := []byte(options.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate JWT secret: %w", err)
		}
		zapLogger.Warn("JWT_SECRET is not set; using a random secret, tokens will not survive a restart")
	}

	// The tutor is optional. Without it the study routes answer 503.
	var studyTutor service.Tutor
	if options.GeminiAPIKey != "" {
		g, err := tutor.NewGemini(ctx, options.GeminiAPIKey, options.GeminiModel, zapLogger.Named("tutor"))
		if err != nil {
			return err
		}
		studyTutor = g
	} else {
		zapLogger.Warn("GEMINI_API_KEY is not set; study endpoints are disabled")
	}

	// Repositories, services and handlers.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	docRepo := repository.NewPostgresDocumentRepository(postgresDB)

	authService := service.NewAuthService(userRepo, secret)
	studyService := service.NewStudyService(docRepo, studyTutor, zapLogger.Named("study"))

	router := http.NewRouter(
		&http.AuthHandler{AuthService: authService, Log: zapLogger},
		&http.StudyHandler{StudyService: studyService, Log: zapLogger},
		authService,
		zapLogger,
	)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	useTLS := options.TLSCert != "" && options.TLSKey != ""

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("starting server", zap.String("addr", options.Port), zap.Bool("tls", useTLS))
		var err error
		if useTLS {
			err = server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return db.RunDocumentCleaner(gctx, postgresDB, cleanerInterval, options.DocumentRetention, zapLogger.Named("cleaner"))
	})
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
