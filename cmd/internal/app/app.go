// Package app wires the swapi server runtime: config, logging, storage, HTTP routes and the
// background tasks that run next to the server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	authapi "swapi/cmd/internal/auth/api"
	"swapi/cmd/internal/auth/session"
	"swapi/cmd/internal/metrics"
	"swapi/cmd/internal/notify"
	"swapi/cmd/internal/rpc"
	"swapi/cmd/security/otp"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// App is the swapi server runtime. It owns the DB pool and every long-running goroutine.
type App struct {
	cfg Config
	log Logger

	metrics *metrics.Metrics
	dbPool  *pgxpool.Pool

	sessions   *session.Manager
	dispatcher *rpc.Dispatcher
	ws         *rpc.WSGateway

	// notifier is the reloadable delivery target behind outbox.
	notifier *notify.Switch
	outbox   *notify.Async
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	ctx := context.Background()

	settings, err := LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}
	hasher, err := LoadTokenHasher()
	if err != nil {
		return nil, err
	}
	otpCfg, err := otp.FromEnv()
	if err != nil {
		return nil, err
	}
	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	target, err := settings.Notifier(log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	store, pool, err := newStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok && pool != nil {
			pool.Close()
		}
	}()

	sw := notify.NewSwitch(target)
	outbox := notify.NewAsync(sw, notify.WithLogger(log), notify.WithMetrics(m))

	mgr, err := session.NewManager(sessCfg, session.Deps{
		Store:    store,
		Hasher:   hasher,
		OTP:      otpCfg,
		Notifier: outbox,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if err := mgr.ApplySettings(ctx, settings.Session()); err != nil {
		return nil, fmt.Errorf("apply settings: %w", err)
	}

	auth, err := authapi.NewHandler(log, mgr, authapi.LoadConfigFromEnv(), authapi.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	reg, err := rpc.NewRegistry(auth.Methods()...)
	if err != nil {
		return nil, err
	}

	d := rpc.NewDispatcher(reg, mgr,
		rpc.WithLogger(log),
		rpc.WithMetrics(m),
		rpc.WithCookie(settings.CookieConfig()),
		rpc.WithMaxBodyBytes(int64(cfg.MaxBodyBytes)),
	)

	ok = true
	return &App{
		cfg:        cfg,
		log:        log,
		metrics:    m,
		dbPool:     pool,
		sessions:   mgr,
		dispatcher: d,
		ws:         rpc.NewWSGateway(d, rpc.LoadWSConfigFromEnv(), log),
		notifier:   sw,
		outbox:     outbox,
	}, nil
}

// Run serves HTTP and the background tasks until ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		base := runtimeBaseURL(a.cfg.HTTPAddr)
		a.log.Info("server.start",
			"addr", a.cfg.HTTPAddr,
			"rpc_url", base+"/",
			"ws_url", wsBaseURL(base)+"/ws",
			"db_enabled", a.dbPool != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	if a.cfg.SweepInterval > 0 {
		g.Go(func() error {
			a.sweepExpired(gctx, a.cfg.SweepInterval)
			return nil
		})
	}

	g.Go(func() error {
		a.reloadOnHangup(gctx)
		return nil
	})

	err := g.Wait()

	// Let in-flight OTP mails finish before the process exits.
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if werr := a.outbox.Wait(drainCtx); werr != nil {
		a.log.Warn("notify.drain.timeout", "err", werr)
	}

	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return err
}

// Reload re-reads the settings file and applies it to the running server.
// On error nothing is changed.
func (a *App) Reload(ctx context.Context) error {
	s, err := LoadSettings(a.cfg.SettingsFile)
	if err != nil {
		return err
	}
	n, err := s.Notifier(a.log)
	if err != nil {
		return err
	}
	if err := a.sessions.ApplySettings(ctx, s.Session()); err != nil {
		return err
	}
	a.dispatcher.SetCookieConfig(s.CookieConfig())
	a.notifier.Store(n)

	a.log.Info("settings.reload.ok", "file", a.cfg.SettingsFile, "roles", len(s.Roles), "notify_debug", s.Notify.Debug)
	return nil
}

func (a *App) reloadOnHangup(ctx context.Context) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			if err := a.Reload(ctx); err != nil {
				a.log.Error("settings.reload.fail", "file", a.cfg.SettingsFile, "err", err)
			}
		}
	}
}

func (a *App) sweepExpired(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := a.sessions.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					a.log.Warn("challenge.sweep.fail", "err", err)
				}
				continue
			}
			a.metrics.ObserveSwept(n)
			if n > 0 {
				a.log.Debug("challenge.sweep.ok", "removed", n)
			}
		}
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between the Postgres store and the in-memory dev store.
// The app owns the returned pool.
func newStore(ctx context.Context, cfg Config, log Logger) (session.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return session.NewInMemoryStore(), nil, nil
	}

	pool, err := NewDBPool(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	log.Info("db.enabled.postgres_store")
	return session.NewPostgresStore(pool), pool, nil
}
