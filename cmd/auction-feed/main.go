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

	redisClient "github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/urfave/cli/v2"

	"auction-monitor/internal/api/handlers"
	"auction-monitor/internal/config"
	"auction-monitor/internal/domain"
	"auction-monitor/internal/infrastructure/mysql"
	"auction-monitor/internal/infrastructure/redis"
	"auction-monitor/internal/infrastructure/websocket"
	"auction-monitor/internal/services"
	"auction-monitor/pkg/logger"
)

type feedArgs struct {
	ConfigFile string
	LogLevel   string
}

func main() {
	var args feedArgs

	app := &cli.App{
		Name:        "auction-feed",
		Usage:       "serve live auction bid updates",
		Description: "Pushes bidUpdate frames to WebSocket subscribers and exposes an admin API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config-file",
				Usage:       "Application config file. Searches ./config.yaml when not set.",
				Aliases:     []string{"c"},
				EnvVars:     []string{"CONFIG_FILE"},
				Destination: &args.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Logging level: [debug info warn error]",
				Aliases:     []string{"l"},
				Destination: &args.LogLevel,
			},
		},
		Action: func(c *cli.Context) error {
			return run(&args)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.New().Fatal("Program shutdown", "error", err)
	}
}

func run(args *feedArgs) error {
	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		return err
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}

	log := logger.NewWithConfig(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("Starting auction feed", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		rdb        *redisClient.Client
		subscriber *redis.RedisEventSubscriber
		publisher  domain.EventPublisher
		bidCache   domain.BidCache
	)
	if cfg.Redis.Address != "" {
		rdb = redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		// Test Redis connection
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		log.Info("Connected to Redis", "address", cfg.Redis.Address)

		subscriber = redis.NewRedisEventSubscriber(rdb, cfg.Redis.Channel, log)
		publisher = redis.NewEventPublisher(rdb, cfg.Redis.Channel)
		bidCache = redis.NewRedisBidCache(rdb, cfg.Feed.BidTTL)
	}

	var (
		auctionRepo domain.AuctionRepository
		bidRepo     domain.BidRepository
	)
	if cfg.MySQL.DSN != "" {
		db, err := mysql.Open(ctx, cfg.MySQL)
		if err != nil {
			return err
		}
		defer func(db *sql.DB) {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}(db)
		log.Info("Connected to MySQL")

		auctionRepo = mysql.NewMySQLAuctionRepository(db)
		bidRepo = mysql.NewMySQLBidRepository(db)
	}

	connManager := websocket.NewConnectionManager(log)
	notifier := websocket.NewWebSocketNotifier(connManager)
	feed := services.NewFeedService(notifier, auctionRepo, bidRepo, bidCache, log)
	reporter := services.NewSessionReporter(connManager, cfg.Feed.ReportInterval, log)

	// Feed server
	wsHandlers := handlers.NewWebSocketHandlers(connManager, cfg.Transport.WriteTimeout, log)
	feedServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Feed.Host, cfg.Feed.Port),
		Handler: wsHandlers.Router(cfg.Feed.BasePath),
	}

	// Admin server
	e := newAdminServer(log)
	handlers.NewAuctionHandler(feed, publisher, connManager, cfg.Feed.HistoryLimit, log).RegisterRoutes(e)

	listenCtx, stopListening := context.WithCancel(context.Background())
	defer stopListening()

	if subscriber != nil {
		go func() {
			if err := feed.Start(listenCtx, subscriber); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Event listener stopped", "error", err)
			}
		}()
	}

	if err := reporter.Start(); err != nil {
		return err
	}

	go func() {
		log.Info("Starting feed server", "address", feedServer.Addr, "base_path", cfg.Feed.BasePath)
		if err := feedServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Feed server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	adminAddr := fmt.Sprintf("%s:%d", cfg.Admin.Host, cfg.Admin.Port)
	go func() {
		log.Info("Starting admin server", "address", adminAddr)
		if err := e.Start(adminAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Admin server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction feed...")

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stopListening()
	reporter.Stop()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Admin server forced to shutdown", "error", err)
	}
	if err := feedServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Feed server forced to shutdown", "error", err)
	}
	// Hijacked WebSocket connections are not tracked by Shutdown.
	connManager.CloseAll()

	log.Info("Auction feed stopped")
	return nil
}

func newAdminServer(log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
		MaxAge: 86400,
	}))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			log.Debug("Request received",
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP())
			return next(c)
		}
	})

	return e
}
