package app

// pkg/app/kernel.go — boots the application and builds the HTTP bridge.
// This file has no imports of project-specific code (models, modules);
// all project dependencies arrive via the Application builder methods.

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/setulabs/setu/config"
	"github.com/setulabs/setu/pkg/cache"
	"github.com/setulabs/setu/pkg/container"
	"github.com/setulabs/setu/pkg/database"
	"github.com/setulabs/setu/pkg/event"
	"github.com/setulabs/setu/pkg/logger"
	"github.com/setulabs/setu/pkg/metrics"
	"github.com/setulabs/setu/pkg/middleware"
	"github.com/setulabs/setu/pkg/queue"
	"github.com/setulabs/setu/pkg/rbac"
	"github.com/setulabs/setu/pkg/reqid"
	"github.com/setulabs/setu/pkg/respond"
	"github.com/setulabs/setu/pkg/schedule"
	"github.com/setulabs/setu/pkg/sse"
)

// Request bodies above this size are truncated before dispatch; the
// binder rejects them again with a proper message.
const maxDispatchBody = 4<<20 + 1

// boot brings the application up exactly once: configuration, log
// sinks, database, cache, service registrations, then router
// initialization. Boot is fail-soft about optional infrastructure (a
// missing database or sink logs and moves on) but hard about
// configuration and initialization errors.
func (a *Application) boot() error {
	a.bootOnce.Do(func() { a.bootErr = a.doBoot() })
	return a.bootErr
}

func (a *Application) doBoot() error {
	if err := config.Load(); err != nil {
		return err
	}
	a.sinks = configureLogging()

	var db *gorm.DB
	if opened, err := openDatabase(a.models); err != nil {
		logger.Error("database unavailable; continuing without it", "err", err)
	} else if opened != nil {
		db = opened
		container.Register(a.c, db)
	}

	// The cache store is a lazy singleton: nothing dials Redis until the
	// first resolve.
	container.RegisterFactory(a.c, func() (cache.Store, error) {
		return cache.Connect()
	})

	a.bus = event.NewBus()
	container.Register(a.c, a.bus)

	// Every bus event is mirrored onto the admin live feed.
	a.feed = sse.NewFeed()
	a.bus.SubscribeAll(func(name string, payload any) {
		a.feed.Publish(name, payload)
	})

	if q := buildQueue(db); q != nil {
		a.queue = q
		container.Register(a.c, q)
	}

	a.sched = schedule.New()

	for _, fn := range a.eventFns {
		fn(a.bus)
	}
	if a.queue != nil {
		for _, fn := range a.jobFns {
			fn(a.queue)
		}
	}
	for _, fn := range a.schedFns {
		fn(a.sched)
	}
	for _, fn := range a.serviceFns {
		fn(a.c)
	}

	if err := a.rt.Initialize(); err != nil {
		return err
	}

	a.refreshGauges()
	a.sched.Every(15).Seconds().Name("metrics.refresh").Run(a.refreshGauges)

	logger.Info("application booted",
		"endpoints", a.rt.EndpointCount(),
		"modules", a.rt.ActiveModules(),
		"services", a.c.Count(),
		"queue", config.QueueDriver(),
	)
	return nil
}

// refreshGauges publishes the registry sizes to the metrics gauges.
// Run once at boot and then by the scheduler's gauge job, so the
// failed-job count stays current while serving.
func (a *Application) refreshGauges() {
	metrics.EndpointsRegistered.Set(float64(a.rt.EndpointCount()))
	metrics.ModulesRegistered.Set(float64(a.rt.ModuleCount()))
	metrics.ModulesActive.Set(float64(a.rt.ActiveModules()))
	metrics.ServicesRegistered.Set(float64(a.c.Count()))
	if a.queue != nil {
		metrics.FailedJobsRetained.Set(float64(a.queue.FailedCount()))
	}
}

// buildQueue assembles the job queue for the configured driver.
// QUEUE_DRIVER=none disables background processing; an unreachable
// redis degrades to the memory driver so boot never blocks on it.
func buildQueue(db *gorm.DB) *queue.Queue {
	driverName := config.QueueDriver()

	var driver queue.Driver
	switch driverName {
	case "none":
		return nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr(),
			Password: config.RedisPassword(),
			DB:       0,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			logger.Error("queue redis unavailable; using memory driver", "err", err)
			driverName = "memory"
			driver = queue.NewMemory()
		} else {
			driver = queue.NewRedis(rdb)
		}
	default:
		driver = queue.NewMemory()
	}

	opts := []queue.Option{queue.WithMaxRetry(config.QueueMaxRetry())}
	if db != nil {
		opts = append(opts, queue.WithDB(db))
	}

	q := queue.New(driver, config.QueueWorkers(), opts...)
	logger.Info("queue ready", "driver", driverName, "workers", config.QueueWorkers())
	return q
}

// StartBackground launches the queue workers and the scheduler. Only
// the serve path calls it; introspection commands boot without
// spinning up background work.
func (a *Application) StartBackground() {
	if a.queue != nil {
		a.queue.Start(context.Background())
	}
	a.sched.Start(context.Background())
}

// configureLogging attaches the optional Mongo and websocket sinks next
// to the console handler. A sink that cannot connect is skipped with a
// warning rather than blocking boot.
func configureLogging() *logger.Fanout {
	var sinks []slog.Handler

	if uri := config.MongoLogURI(); uri != "" {
		h, err := logger.NewMongoHandler(uri, config.MongoLogDatabase(), config.MongoLogCollection())
		if err != nil {
			logger.Warn("mongo log sink unavailable", "err", err)
		} else {
			sinks = append(sinks, h)
		}
	}

	if url := config.LogStreamURL(); url != "" {
		h, err := logger.NewStreamHandler(url)
		if err != nil {
			logger.Warn("log stream sink unavailable", "url", url, "err", err)
		} else {
			sinks = append(sinks, h)
		}
	}

	return logger.Configure(sinks...)
}

// openDatabase connects and migrates when a database is configured.
// DB_DRIVER=none returns (nil, nil).
func openDatabase(models []interface{}) (*gorm.DB, error) {
	if config.DatabaseDSN() == "" {
		return nil, nil
	}

	db, err := database.Connect()
	if err != nil {
		return nil, err
	}
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Close winds the application down: scheduler, queue workers, live
// feed, then the log sinks. Safe to call after a boot that never
// started background work.
func (a *Application) Close() error {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.queue != nil {
		a.queue.Shutdown()
	}
	if a.feed != nil {
		a.feed.Close()
	}
	if a.sinks == nil {
		return nil
	}
	return a.sinks.Close()
}

// ─── HTTP bridge ──────────────────────────────────────────────────────────────

// Handler boots the application and builds the HTTP bridge that feeds
// requests into the dispatcher.
//
// Middleware stack (outermost → innermost):
//  1. Prometheus metrics — outermost for accurate total latency
//  2. Recovery           — guards the middleware itself; handler panics
//     are already contained by the dispatcher
//  3. Request ID         — inject unique ID before anything logs
//  4. Request logger     — logs request_id from context
//  5. CORS               — set CORS headers
//  6. Rate limiter       — reject abusers early
func (a *Application) Handler() (http.Handler, error) {
	if err := a.boot(); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.RequestLogger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(config.GetInt("RATE_LIMIT_MAX", 200), time.Minute))

	// Prometheus /metrics endpoint — no auth.
	r.Get("/metrics", metrics.Handler())

	// Admin introspection sits behind token auth plus a role check at
	// the transport layer; the dispatcher itself knows nothing about
	// auth. /admin/live streams the event feed instead of dispatching.
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(middleware.Authenticate)
		ar.Use(rbac.HasRole("admin"))
		ar.Get("/live", a.feed.Handler())
		ar.Handle("/*", http.HandlerFunc(a.dispatch))
	})

	// Everything else flows into the dispatcher as-is.
	r.Handle("/*", http.HandlerFunc(a.dispatch))

	return r, nil
}

// dispatch carries one HTTP request into the dispatcher and writes the
// in-band result back out.
func (a *Application) dispatch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDispatchBody))
	if err != nil {
		body, status := respond.BadRequest("Could not read request body")
		writeBody(w, body, status)
		return
	}

	body, status, handled := a.rt.HandleRequest(r.URL.Path, r.Method, string(raw))
	if !handled {
		metrics.DispatchUnhandled.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	writeBody(w, body, status)
}

// writeBody writes a dispatcher response, guessing the content type from
// the body shape. Module handlers overwhelmingly return JSON envelopes;
// plain strings (the hello module, failure messages) go out as text.
func writeBody(w http.ResponseWriter, body string, status int) {
	ct := "text/plain; charset=utf-8"
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		ct = "application/json"
	}

	w.Header().Set("Content-Type", ct)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
