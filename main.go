package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"golang.zx2c4.com/wireguard/wgctrl"

	"github.com/leonovk/wg-rest-api/authentication/middleware"
	"github.com/leonovk/wg-rest-api/authentication/routes"
	"github.com/leonovk/wg-rest-api/config"
	"github.com/leonovk/wg-rest-api/database"
	"github.com/leonovk/wg-rest-api/handlers"
	"github.com/leonovk/wg-rest-api/internal/util"
	"github.com/leonovk/wg-rest-api/ipmanager"
	"github.com/leonovk/wg-rest-api/peermanager"
	"github.com/leonovk/wg-rest-api/repositories"
	"github.com/leonovk/wg-rest-api/stats"
	"github.com/leonovk/wg-rest-api/webhooks"
	"github.com/leonovk/wg-rest-api/wireguard"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 5 * time.Second

func main() {
	log := stdr.New(stdlog.New(os.Stderr, "", stdlog.LstdFlags))

	issueToken := flag.String("issue-token", "", "print a JWT for the named API client and exit")
	tokenTTL := flag.Duration("token-ttl", 0, "lifetime of the issued token, 0 for no expiry")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.V(1).Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error(err, "invalid configuration")
		os.Exit(1)
	}
	stdr.SetVerbosity(cfg.LogVerbosity)

	if *issueToken != "" {
		token, err := util.CreateAccessToken(*issueToken, cfg.JWTSecret, *tokenTTL)
		if err != nil {
			log.Error(err, "could not issue token")
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(err, "program error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logr.Logger) error {
	alloc, err := ipmanager.NewAllocator(cfg.WGPool, cfg.WGPool6)
	if err != nil {
		return err
	}

	peerRepo, statRepo, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	runner := wireguard.ExecRunner{Log: log.WithName("exec")}

	var ctrl *wgctrl.Client
	if cfg.WGStatus == "wgctrl" || cfg.WGReload == "wgctrl" {
		if ctrl, err = wgctrl.New(); err != nil {
			return fmt.Errorf("open wgctrl: %w", err)
		}
		defer ctrl.Close()
	}

	var keys wireguard.KeyGenerator = wireguard.CommandKeyGenerator{Runner: runner}
	if cfg.WGKeygen == "native" {
		keys = wireguard.NativeKeyGenerator{}
	}

	var reloader wireguard.Reloader
	switch cfg.WGReload {
	case "wg-quick":
		reloader = wireguard.WGQuickReloader{
			Runner:     runner,
			ConfigPath: cfg.ConfigPath(),
			Interface:  cfg.WGInterface,
			Links:      wireguard.NetlinkChecker{},
			Log:        log.WithName("reload"),
		}
	case "wgctrl":
		reloader = wireguard.WgctrlReloader{Ctrl: ctrl, Interface: cfg.WGInterface, ListenPort: cfg.WGPort, Log: log.WithName("reload")}
	}

	updater := &wireguard.ConfigUpdater{
		Path: cfg.ConfigPath(),
		Options: wireguard.RenderOptions{
			ListenPort: cfg.WGPort,
			PrefixV4:   alloc.V4.Bits(),
			PrefixV6:   alloc.V6.Bits(),
			PostUp:     cfg.WGPostUp,
			PostDown:   cfg.WGPostDown,
		},
		Reloader: reloader,
		Log:      log.WithName("config"),
	}

	manager := peermanager.New(peerRepo, alloc, keys, updater, log.WithName("peers"))
	if _, err := manager.Initialize(ctx); err != nil {
		return err
	}
	if err := manager.Sync(ctx); err != nil {
		log.Error(err, "initial interface sync failed")
	}

	host := cfg.WGHost
	if host == "" {
		if host, err = wireguard.DiscoverPublicIP(ctx, cfg.StunServer); err != nil {
			log.Error(err, "WG_HOST is not set and the public address could not be discovered")
		} else {
			log.Info("discovered public address", "host", host)
		}
	}

	var snap stats.Snapshotter = stats.TextSnapshotter{
		Source: wireguard.CommandStatus{Runner: runner, Interface: cfg.WGInterface, Log: log.WithName("status")},
	}
	if cfg.WGStatus == "wgctrl" {
		snap = wireguard.DeviceStatus{Ctrl: ctrl, Interface: cfg.WGInterface}
	}
	collector := &stats.Collector{
		Snap:       snap,
		Repo:       statRepo,
		Dispatcher: webhooks.NewDispatcher(cfg.WebhooksURL, cfg.WebhookWorkers, log.WithName("webhooks")),
		Log:        log.WithName("stats"),
	}

	serializer := handlers.Serializer{
		PrefixV4:            alloc.V4.Bits(),
		PrefixV6:            alloc.V6.Bits(),
		AllowedIPs:          cfg.WGAllowedIPs,
		DNS:                 cfg.WGDNS,
		PersistentKeepalive: cfg.WGPersistentKeepalive,
		Host:                host,
		Port:                cfg.WGPort,
	}
	clientHandler := handlers.NewClientHandler(manager, statRepo, serializer, log.WithName("api"))
	serverHandler := &handlers.ServerHandler{
		Peers:      manager,
		Serializer: serializer,
		Links:      wireguard.NetlinkChecker{},
		Interface:  cfg.WGInterface,
		Version:    appVersion(),
		Log:        log.WithName("api"),
	}

	auth := middleware.AuthConfig{Token: cfg.AuthToken, TokenDigest: cfg.AuthTokenDigest, JWTSecret: cfg.JWTSecret}
	if auth == (middleware.AuthConfig{}) {
		log.Info("no AUTH_TOKEN, AUTH_TOKEN_DIGEST or JWT_SECRET set, every API request will be rejected")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	app.Use(logger.New())
	routes.SetupRoutes(app, auth, clientHandler, serverHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		collector.Run(gctx, cfg.StatsInterval)
		return nil
	})
	g.Go(func() error {
		log.Info("starting server", "port", cfg.Port, "version", appVersion())
		return app.Listen(fmt.Sprintf(":%d", cfg.Port))
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// openStores picks the peer and stat repositories from the configuration.
// The returned func releases the connections.
func openStores(ctx context.Context, cfg config.Config, log logr.Logger) (repositories.PeerRepository, repositories.StatRepository, func(), error) {
	var (
		peerRepo repositories.PeerRepository
		statRepo repositories.StatRepository
		closers  []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.DBDriver == "memory" {
		peerRepo = repositories.NewInMemoryPeerStore()
		statRepo = repositories.NewInMemoryStatStore()
		log.Info("using in-memory storage, nothing survives a restart")
	} else {
		db, err := database.Connect(cfg.DBDriver, cfg.DBDSN, log.WithName("database"))
		if err != nil {
			return nil, nil, nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { sqlDB.Close() })
		}
		repo := database.NewRepository(db)
		peerRepo, statRepo = repo, repo
	}

	if cfg.StatsBackend == "redis" {
		rdb, err := database.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { rdb.Close() })
		statRepo = database.NewRedisStatStore(rdb, "wg-rest-api:"+cfg.WGInterface)
		log.Info("keeping stats in redis", "addr", cfg.RedisAddr)
	}

	return peerRepo, statRepo, closeAll, nil
}

func appVersion() string {
	if v := os.Getenv("VERSION"); v != "" {
		return v
	}
	return version
}
