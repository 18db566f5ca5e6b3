// Package app wires configuration, storage, the remote client, the replica
// and its background workers into one object owned by the command line
// entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nhle/teamboard/internal/cache"
	"github.com/nhle/teamboard/internal/clock"
	"github.com/nhle/teamboard/internal/credential"
	"github.com/nhle/teamboard/internal/events"
	"github.com/nhle/teamboard/internal/logging"
	"github.com/nhle/teamboard/internal/model"
	"github.com/nhle/teamboard/internal/remote"
	"github.com/nhle/teamboard/internal/replica"
	"github.com/nhle/teamboard/internal/store"
	appsync "github.com/nhle/teamboard/internal/sync"
	"github.com/nhle/teamboard/internal/theme"
	"github.com/nhle/teamboard/internal/timer"
)

// Options tune Open. The zero value reads the default config file, logs
// to stderr and takes the bearer token from the OS keyring.
type Options struct {
	ConfigPath string
	LogWriter  io.Writer

	// Tokens overrides the keyring as the bearer token source.
	Tokens remote.TokenSource

	Clock clock.Clock
}

// App is the composition root. Every field is ready to use after Open.
type App struct {
	Config      *model.AppConfig
	ConfigPath  string
	Logger      *log.Logger
	Store       store.Store
	Cache       *cache.Cache
	Client      *remote.Client
	Credentials *credential.Store
	Replica     *replica.Replica
	Retrier     *appsync.Retrier
	Tracker     *timer.Tracker
	Events      *events.Subscriber
	Notices     *replica.ChanNotifier
}

// Open loads the configuration and builds the application. The replica is
// rehydrated from the local cache; nothing is fetched from the backend.
func Open(ctx context.Context, opts Options) (*App, error) {
	path := opts.ConfigPath
	if path == "" {
		path = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	logger := logging.New(w, cfg.Log)

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	a := &App{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Notices:    replica.NewChanNotifier(64),
	}

	tokens := opts.Tokens
	if tokens == nil {
		creds, err := credential.Open()
		if err != nil {
			logger.Debug("keyring unavailable, relying on session cookies", "err", err)
		} else {
			a.Credentials = creds
			tokens = creds
		}
	}

	a.Store, err = openStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.Cache = cache.New(a.Store, cfg.Cache.Namespace, logger.WithPrefix("cache"))

	a.Client, err = remote.New(cfg.API, tokens,
		remote.WithLogger(logger.WithPrefix("remote")),
		remote.WithNow(clk.Now))
	if err != nil {
		a.Store.Close()
		return nil, err
	}

	a.Replica = replica.New(ctx, a.Client, a.Cache, a.Store,
		replica.WithNotifier(a.Notices),
		replica.WithLogger(logger.WithPrefix("replica")),
		replica.WithNow(clk.Now))

	a.Retrier = appsync.New(a.Store, a.Replica,
		time.Duration(cfg.Sync.RetryIntervalSec)*time.Second,
		appsync.WithClock(clk),
		appsync.WithMaxAttempts(cfg.Sync.MaxAttempts),
		appsync.WithNotifier(a.Notices),
		appsync.WithLogger(logger.WithPrefix("sync")))

	a.Tracker = timer.New(a.Client, a.Replica,
		timer.WithClock(clk),
		timer.WithNotifier(a.Notices),
		timer.WithLogger(logger.WithPrefix("timer")))

	a.Events = events.New(cfg.ResolvedEventsURL(), a.Client,
		events.WithClock(clk),
		events.WithLogger(logger.WithPrefix("events")))

	pref := a.Replica.Theme()
	if pref == "" {
		pref = cfg.Display.Theme
	}
	if !theme.Apply(pref) {
		logger.Warn("unknown theme preference, following the terminal", "theme", pref)
	}

	return a, nil
}

func openStore(ctx context.Context, cfg model.CacheConfig) (store.Store, error) {
	switch cfg.Driver {
	case "redis":
		return store.NewRedisStore(ctx, cfg.RedisAddr, cfg.Namespace)
	default:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating cache directory: %w", err)
			}
		}
		return store.NewSQLiteStore(cfg.Path)
	}
}

// Close stops the background workers, waits for in-flight remote calls and
// closes the store.
func (a *App) Close() error {
	a.Retrier.Stop()
	a.Replica.Close()
	return a.Store.Close()
}

// Sync pushes the outbox once and then refreshes every collection from the
// backend. A backend that is not configured is not an error.
func (a *App) Sync(ctx context.Context) (appsync.SyncResultMsg, error) {
	res := a.Retrier.RunOnce(ctx)
	a.Replica.Wait()
	if res.AuthError != nil {
		return res, res.Error
	}

	err := a.Replica.Refresh(ctx)
	if errors.Is(err, remote.ErrNotConfigured) {
		return res, nil
	}
	return res, err
}

// ListenEvents feeds pushed notifications into the replica until ctx is
// cancelled.
func (a *App) ListenEvents(ctx context.Context) error {
	user, err := a.Replica.RefreshCurrentUser(ctx)
	if err != nil && user == nil {
		return fmt.Errorf("resolving current user: %w", err)
	}
	if user == nil {
		return errors.New("not signed in; run 'teamboard login' first")
	}
	err = a.Events.Run(ctx, user.ID, func(n model.Notification) {
		a.Replica.ReceiveNotification(n)
	})
	if remote.IsAuthError(err) {
		return fmt.Errorf("%w; run 'teamboard login' to resume live updates", err)
	}
	return err
}

// DrainNotices returns the notices emitted so far without blocking.
func (a *App) DrainNotices() []replica.Notice {
	var out []replica.Notice
	for {
		select {
		case n := <-a.Notices.C:
			out = append(out, n)
		default:
			return out
		}
	}
}
