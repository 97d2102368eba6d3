package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-hub/auth"
	"chat-hub/moderation"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/services"
	"chat-hub/transport/ws"
	"chat-hub/web"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	// Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		log.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories
	messageRepository := repositories.NewMessageRepository(db, log, config.LimitMessages)
	defer func() {
		log.Info("Releasing message sequences...")
		_ = messageRepository.Close()
	}()
	userRepository := repositories.NewUserRepository(db, blugeWriter, log)
	chatRepository := repositories.NewChatRepository(db)

	// 4. Moderation
	var moderator *moderation.Moderator
	if config.ModerationEnabled {
		replacement, err := characterRune(config.ModerationCharReplacement)
		if err != nil {
			return exitConfig, err
		}
		words, err := moderation.DefaultWords()
		if err != nil {
			return exitRuntime, fmt.Errorf("loading moderation words failed: %w", err)
		}
		moderator, err = moderation.NewModerator(words, replacement)
		if err != nil {
			return exitRuntime, fmt.Errorf("building moderator failed: %w", err)
		}
	}

	// 5. Engine, Supervision & Workers
	registry := runtime.NewRegistry()
	engine := runtime.NewEngine(log, registry, messageRepository, chatRepository,
		moderator, config.EventBufferSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log, config.RestartInterval).
		Add(
			workers.NewPresenceFanout(log, registry, engine.Events()),
			workers.NewTelemetry(log, config.TelemetryInterval),
		)
	go sup.Run(ctx)

	// 6. HTTP Server Setup
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(engine, chatRepository, messageRepository, userRepository)

	wsHandler := ws.NewHandler(log, engine, config.ConnectionBufferSize)
	server := web.NewServer(log, authService, chatService)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:    address,
		Handler: server.Routes(tokens, wsHandler),
	}

	// Use an error channel to capture ListenAndServe() issues
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return exitOK, nil
}
