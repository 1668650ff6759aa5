package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quitcoach/auth"
	"quitcoach/domain"
	"quitcoach/moderation"
	"quitcoach/observability"
	"quitcoach/realtime"
	"quitcoach/repositories"
	"quitcoach/services"
	"quitcoach/web"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a shutdown signal or a fatal
// server error. Deferred cleanup only runs reliably when main never calls
// os.Exit directly, hence the exit-code return.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := config.CharacterRune()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	moderator, err := moderation.New(charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("building moderation automaton: %w", err)
	}

	monitor := observability.NewMonitor(logger)
	registry := realtime.NewRegistry()
	fanout := realtime.NewFanout(logger, registry, monitor, config.EventBuffer)

	appointmentRepo := repositories.NewAppointmentRepository(db, logger)
	messageRepo := repositories.NewMessageRepository(db, logger)
	availabilityRepo := repositories.NewAvailabilityRepository(db, logger, &domain.AvailabilityWindow{
		StartMin: config.DefaultDayStartMin,
		EndMin:   config.DefaultDayEndMin,
	})

	availability := services.NewAvailabilityService(logger, availabilityRepo, appointmentRepo)
	appointments := services.NewAppointmentService(logger, appointmentRepo, availability,
		monitor, config.CancelCutoff, config.RebookAfterLateCancel)
	messages := services.NewMessageService(logger, messageRepo, appointmentRepo, moderator,
		fanout, monitor, config.MaxMessageLength)

	tokens := auth.NewTokens(config.JWTSecret, config.TokenLifetime)
	router := web.NewRouter(logger, tokens,
		web.NewAppointmentHandler(logger, appointments, availability),
		web.NewMessageHandler(logger, messages),
		web.NewWSHandler(logger, appointments, messages, registry, fanout, monitor, config.SinkBuffer),
		monitor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := realtime.NewSupervisor(logger).Add(fanout, monitor)
	supervisor.Start(ctx)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		supervisor.Stop()
		return exitRuntime, err
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Forced shutdown", "error", err)
	}
	supervisor.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}
