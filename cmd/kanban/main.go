package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chepyr/go-kanban/internal/auth"
	"github.com/chepyr/go-kanban/internal/config"
	"github.com/chepyr/go-kanban/internal/db"
	"github.com/chepyr/go-kanban/internal/handlers"
	"github.com/chepyr/go-kanban/internal/kanban"
	"github.com/chepyr/go-kanban/internal/ordering"
	"github.com/chepyr/go-kanban/internal/ratelimit"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "kanban",
		Short:        "Kanban board backend",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	cmd.PersistentFlags().String("database-url", "", "database connection string")

	cmd.AddCommand(newServeCmd(&cfgFile), newMigrateCmd(&cfgFile), newCustomerCmd(&cfgFile))
	return cmd
}

func newServeCmd(cfgFile *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, *cfgFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger, migrate)
		},
	}
	cmd.Flags().String("host", "0.0.0.0", "listen host")
	cmd.Flags().Int("port", 8000, "listen port")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func newMigrateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, *cfgFile)
			if err != nil {
				return err
			}
			dbConn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			applied, err := db.Migrate(cmd.Context(), dbConn)
			if err != nil {
				return err
			}
			for _, name := range applied {
				cmd.Printf("applied %s\n", name)
			}
			if len(applied) == 0 {
				cmd.Println("database is up to date")
			}
			return nil
		},
	}
}

func newCustomerCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Manage customers",
	}

	var username, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a customer that can sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd, *cfgFile)
			if err != nil {
				return err
			}
			dbConn, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			svc := kanban.NewService(db.NewStore(dbConn), nil, cfg.Auth.BcryptCost)
			customer, err := svc.CreateCustomer(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			cmd.Printf("created customer %s (id %d)\n", customer.Username, customer.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "customer username")
	create.Flags().StringVar(&password, "password", "", "customer password")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("database url is required")
	}
	return db.Connect(ctx, cfg.Database.Driver, cfg.Database.URL, cfg.Database.Pool)
}

func newLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func() error, error) {
	if cfg.Redis.URL == "" {
		return ratelimit.New(nil, cfg.SignIn.RateLimit, cfg.SignIn.RateWindow), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return ratelimit.New(client, cfg.SignIn.RateLimit, cfg.SignIn.RateWindow), client.Close, nil
}

func serve(ctx context.Context, cfg config.Config, logger *log.Logger, migrate bool) error {
	dbConn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if migrate {
		applied, err := db.Migrate(ctx, dbConn)
		if err != nil {
			return err
		}
		logger.WithField("applied", applied).Info("migrations done")
	}

	tokens, err := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Algorithm, cfg.JWT.AccessTTL)
	if err != nil {
		return err
	}
	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	handler := &handlers.Handler{
		Service:     kanban.NewService(db.NewStore(dbConn), ordering.New(cfg.Ordering), cfg.Auth.BcryptCost),
		Tokens:      tokens,
		RateLimiter: limiter,
		Logger:      logger,
		TrustProxy:  cfg.Server.TrustProxy,
	}
	logger.WithFields(log.Fields{
		"ordering":    handler.Service.OrderingStrategy(),
		"token_ttl":   tokens.TTL(),
		"trust_proxy": cfg.Server.TrustProxy,
	}).Info("service configured")

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return startServer(server, logger)
}

func startServer(server *http.Server, logger *log.Logger) error {
	logger.Infof("Starting kanban server on %s", server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}
