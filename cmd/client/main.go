package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"io.winapps.huddle/internal/api"
	"io.winapps.huddle/internal/config"
	"io.winapps.huddle/internal/credential"
	"io.winapps.huddle/internal/db"
	"io.winapps.huddle/internal/kvstore"
	"io.winapps.huddle/internal/logging"
	"io.winapps.huddle/internal/notify"
	"io.winapps.huddle/internal/simulator"
)

type logAlerter struct {
	logger *zap.SugaredLogger
}

func (a logAlerter) PermissionDenied() {
	a.logger.Warnw("notifications disabled: enable them in system settings to receive updates")
}

func main() {
	scriptPath := flag.String("script", "-", "NDJSON event script, - for stdin")
	once := flag.Bool("once", false, "exit after the script ends instead of waiting for a signal")
	session := flag.String("session", os.Getenv("HUDDLE_SESSION_TOKEN"), "session token to sign in with")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatalw("opening device store failed", "backend", cfg.KVBackend, "error", err)
	}
	defer closeStore()

	sessions, err := openSessions(ctx, cfg, store, *session)
	if err != nil {
		logger.Fatalw("opening session store failed", "backend", cfg.SessionBackend, "error", err)
	}

	platform := notify.Platform(cfg.Platform)
	device := simulator.New(simulator.Options{
		Platform: platform,
		Grant:    notify.Authorized,
		Logger:   logger.Named("device"),
	})

	svc := notify.NewService(notify.Dependencies{
		Transport:    device,
		Local:        device,
		Store:        store,
		Session:      sessions,
		Backend:      api.NewClient(cfg.APIBaseURL, api.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})),
		Device:       notify.Device{Platform: platform, Type: cfg.DeviceType},
		Alerter:      logAlerter{logger: logger},
		BadgeRefresh: cfg.BadgeRefresh,
		Logger:       logger.Named("notify"),
	})
	svc.Subscribe(func(s notify.State) {
		logger.Debugw("notification state changed",
			"permission", s.PermissionStatus.String(), "badge", s.BadgeCount, "initialized", s.Initialized)
	})
	svc.Start(ctx)
	defer svc.Close()

	if !svc.HasPermission() && !svc.RequestPermission(ctx) {
		logger.Warnw("running without notification permission")
	}
	if *session != "" {
		svc.OnAuthenticated(ctx)
	}

	svc.SetNavigationRef(func(d notify.Destination) error {
		logger.Infow("navigate", "tab", d.Tab, "screen", d.Screen, "params", d.Params)
		return nil
	})

	var script io.Reader = os.Stdin
	if *scriptPath != "-" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			logger.Fatalw("opening script failed", "path", *scriptPath, "error", err)
		}
		defer f.Close()
		script = f
	}

	if err := device.Run(ctx, script); err != nil && ctx.Err() == nil {
		logger.Errorw("script failed", "error", err)
	}
	if *once {
		return
	}

	logger.Infow("script finished, waiting for signal")
	<-ctx.Done()
	logger.Infow("shutting down client")
}

func openStore(ctx context.Context, cfg config.Client) (notify.KeyValueStore, func(), error) {
	switch cfg.KVBackend {
	case "redis":
		client, err := db.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return kvstore.NewRedis(client, cfg.InstallID), func() { client.Close() }, nil
	case "memory":
		return kvstore.NewMemory(), func() {}, nil
	default:
		s, err := kvstore.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	}
}

// openSessions returns the session source and, when a token was passed on
// the command line, stores it as if the user had just signed in.
func openSessions(ctx context.Context, cfg config.Client, store notify.KeyValueStore, token string) (notify.SessionSource, error) {
	if cfg.SessionBackend == "keyring" {
		ring, err := credential.Open(credential.Config{FileDir: cfg.KeyringDir})
		if err != nil {
			return nil, err
		}
		if token != "" {
			if err := ring.SetSessionToken(token); err != nil {
				return nil, err
			}
		}
		return ring, nil
	}

	if token != "" {
		if err := store.Set(ctx, notify.KeySessionToken, token); err != nil {
			return nil, err
		}
	}
	return notify.KVSession{Store: store}, nil
}
