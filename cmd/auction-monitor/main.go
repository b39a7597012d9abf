package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"auction-monitor/internal/config"
	"auction-monitor/internal/console"
	"auction-monitor/internal/domain"
	"auction-monitor/internal/infrastructure/websocket"
	"auction-monitor/internal/services"
	"auction-monitor/pkg/logger"
)

type monitorArgs struct {
	ConfigFile string
	LogLevel   string
	PageURL    string
	Auctions   cli.StringSlice
}

func main() {
	var args monitorArgs

	app := &cli.App{
		Name:        "auction-monitor",
		Usage:       "watch live bids for one or more auctions",
		Description: "Subscribes to the auction feed and prints bids and notifications as they arrive",
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
			&cli.StringFlag{
				Name:        "page-url",
				Usage:       "Page the feed endpoint is derived from, e.g. http://localhost:8080/auction-web/",
				Destination: &args.PageURL,
			},
			&cli.StringSliceFlag{
				Name:        "auction",
				Usage:       "Auction ID to watch. Repeat for several auctions.",
				Aliases:     []string{"a"},
				Destination: &args.Auctions,
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

func run(args *monitorArgs) error {
	cfg, err := config.Load(args.ConfigFile)
	if err != nil {
		return err
	}
	if args.LogLevel != "" {
		cfg.Log.Level = args.LogLevel
	}
	if args.PageURL != "" {
		cfg.Client.PageURL = args.PageURL
	}
	if ids := args.Auctions.Value(); len(ids) > 0 {
		cfg.Client.AuctionIDs = ids
	}
	if len(cfg.Client.AuctionIDs) == 0 {
		return errors.New("no auction to watch, pass --auction or set client.auction_ids")
	}

	log := logger.NewWithConfig(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log.Info("Starting auction monitor", "config", cfg.GetConfigString())

	transport := websocket.NewClientTransport(websocket.TransportConfig{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PongWait:         cfg.Transport.PongWait,
		WriteTimeout:     cfg.Transport.WriteTimeout,
	}, log)
	scheduler := services.NewTimeScheduler()

	subCfg := services.SubscriptionConfig{
		Endpoint: services.EndpointConfig{
			PageURL:  cfg.Client.PageURL,
			BasePath: cfg.Client.BasePath,
		},
		Policy: services.ReconnectPolicy{
			MaxAttempts: cfg.Reconnect.MaxAttempts,
			BaseDelay:   cfg.Reconnect.BaseDelay,
		},
	}

	subscriptions := make([]*services.Subscription, 0, len(cfg.Client.AuctionIDs))
	controls := make([]subscriptionControl, 0, len(cfg.Client.AuctionIDs))
	for _, id := range cfg.Client.AuctionIDs {
		id := id
		renderer := console.NewRenderer(os.Stdout, log)
		sub := services.NewSubscription(domain.SubscriptionID(id), subCfg, transport, scheduler, renderer, log)
		sub.OnLifecycle(func(event domain.LifecycleEvent) {
			if event.Type == domain.EventReconnectExhausted {
				log.Warn("Gave up reconnecting", "auction_id", id, "retry", "type 'open "+id+"' or send SIGHUP")
			}
		})
		subscriptions = append(subscriptions, sub)
		controls = append(controls, sub)
	}

	commands := newCommandLoop(controls, os.Stdout, log)
	go func() {
		if err := commands.Run(os.Stdin); err != nil {
			log.Warn("Command input stopped", "error", err)
		}
	}()

	for _, sub := range subscriptions {
		sub.Open()
	}

	reopen := make(chan os.Signal, 1)
	signal.Notify(reopen, syscall.SIGHUP)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

wait:
	for {
		select {
		case <-reopen:
			log.Info("SIGHUP received, reopening subscriptions")
			commands.ReopenAll()
		case <-quit:
			break wait
		}
	}

	log.Info("Shutting down auction monitor...")
	for _, sub := range subscriptions {
		if err := sub.Close(); err != nil {
			log.Error("Failed to close subscription", "auction_id", sub.ID().String(), "error", err)
		}
	}

	log.Info("Auction monitor stopped")
	return nil
}
