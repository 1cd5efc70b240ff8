package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auction "auction-marketplace/internal/auctionService"
	"auction-marketplace/internal/auth"
	"auction-marketplace/internal/blobstore"
	bidding "auction-marketplace/internal/biddingService"
	"auction-marketplace/internal/config"
	"auction-marketplace/internal/db"
	"auction-marketplace/internal/events"
	"auction-marketplace/internal/reconcile"
	"auction-marketplace/internal/repository"
	"auction-marketplace/internal/server"
	users "auction-marketplace/internal/userService"
	"auction-marketplace/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := utils.SetLevel(cfg.Log.Level); err != nil {
		utils.Warn("Unknown log level, keeping default", map[string]any{"level": cfg.Log.Level})
	}
	utils.Info("Configuration loaded", map[string]any{"config": cfg.String()})

	if err := run(cfg); err != nil {
		utils.Fatal("Auction server failed", map[string]any{"error": err.Error()})
	}
}

// run wires the application and blocks until shutdown. Every resource it
// opens is released before it returns, including on startup errors.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer closeRepo()

	blobs, err := blobstore.NewDiskStore(cfg.Uploads.Dir)
	if err != nil {
		return fmt.Errorf("preparing uploads directory: %w", err)
	}

	publisher, closePublisher := openPublisher(ctx, cfg)
	defer closePublisher()

	secret, err := jwtSecret(cfg)
	if err != nil {
		return err
	}
	tokens := auth.NewIssuer(secret, cfg.Auth.TokenTTL)

	biddingSvc := bidding.NewBiddingService(repo, publisher)
	auctionSvc := auction.NewAuctionService(repo, blobs, publisher, cfg.Uploads.MaxBytes)
	userSvc := users.NewUserService(repo, tokens)

	sweeper := reconcile.NewSweeper(repo, cfg.Reconcile.Schedule)
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("starting orphan bid sweeper: %w", err)
	}
	defer sweeper.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := server.SetupRouter(server.Dependencies{
		Bidding:        biddingSvc,
		Auctions:       auctionSvc,
		Users:          userSvc,
		Tokens:         tokens,
		UploadsDir:     blobs.Dir(),
		MaxUploadBytes: cfg.Uploads.MaxBytes,
		CORSOrigin:     cfg.CORS.Origin,
		SecureCookies:  cfg.Auth.SecureCookie,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		utils.Info("Starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
	}
	utils.Info("Shutting down auction server", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore returns the configured AuctionDB and a function releasing it
func openStore(cfg *config.Config) (repository.AuctionDB, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		utils.Warn("Using in-memory store, data is lost on restart", nil)
		return repository.NewMemoryRepo(), func() {}, nil
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, nil, err
	}
	utils.Info("SQLite store ready", map[string]any{"path": cfg.Database.Path})

	return repository.NewSQLiteRepo(database), func() {
		if err := database.Close(); err != nil {
			utils.Error("Failed to close database", map[string]any{"error": err.Error()})
		}
	}, nil
}

// openPublisher connects to Redis when an address is configured and falls
// back to dropping events otherwise
func openPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, func()) {
	if cfg.Redis.Address == "" {
		return events.NopPublisher{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		utils.Warn("Redis unreachable, auction events will not be published", map[string]any{
			"addr":  cfg.Redis.Address,
			"error": err.Error(),
		})
		client.Close()
		return events.NopPublisher{}, func() {}
	}

	utils.Info("Publishing auction events to Redis", map[string]any{
		"addr":    cfg.Redis.Address,
		"channel": cfg.Redis.Channel,
	})
	return events.NewRedisPublisher(client, cfg.Redis.Channel), func() {
		if err := client.Close(); err != nil {
			utils.Error("Failed to close Redis client", map[string]any{"error": err.Error()})
		}
	}
}

// jwtSecret returns the configured signing secret or a random per-process one
func jwtSecret(cfg *config.Config) (string, error) {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	utils.Warn("JWT_SECRET not set, sessions will not survive a restart", nil)
	return hex.EncodeToString(buf), nil
}
