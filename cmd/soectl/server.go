package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tracepack/mfgplan/pkg/audit"
	"github.com/tracepack/mfgplan/pkg/config"
	"github.com/tracepack/mfgplan/pkg/httpapi"
	"github.com/tracepack/mfgplan/pkg/soe"
	"github.com/tracepack/mfgplan/pkg/standards"
	"github.com/tracepack/mfgplan/pkg/store"
)

// run wires the core to its supporting infrastructure (Postgres or
// in-memory versioned storage, an optional Redis latest-version cache,
// JWT authentication, and append-only audit logging) and starts
// listening. It is the body of the "serve" subcommand.
func run() int {
	cfg := config.Load()

	shutdownTracing := initTracing()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("soectl: tracer shutdown: %v", err)
		}
	}()

	packs, err := loadPacks(cfg.PacksDir)
	if err != nil {
		log.Printf("soectl: load packs: %v", err)
		return 1
	}

	catalog, err := config.LoadProfileCatalog(cfg.ProfilesDir)
	if err != nil {
		log.Printf("soectl: load profile catalog: %v", err)
		return 1
	}

	formulas, err := soe.NewFormulaEvaluator()
	if err != nil {
		log.Printf("soectl: init formula evaluator: %v", err)
		return 1
	}

	profileDB, planDB, closeDB, err := openStores(cfg)
	if err != nil {
		log.Printf("soectl: open stores: %v", err)
		return 1
	}
	defer closeDB()

	srv := httpapi.New(httpapi.Deps{
		Catalog:   catalog,
		Packs:     packs,
		Formulas:  formulas,
		ProfileDB: profileDB,
		PlanDB:    planDB,
		Auth:      httpapi.NewJWTAuthenticator(cfg.JWTSigningKeyEnv),
		AuditLog:  audit.NewLogger(),
		RateRPS:   cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("soectl: listening on :%s", cfg.Port)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Printf("soectl: server error: %v", err)
			return 1
		}
	case <-ctx.Done():
		log.Println("soectl: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("soectl: graceful shutdown failed: %v", err)
			return 1
		}
	}
	return 0
}

// initTracing installs a process-wide TracerProvider so pkg/httpapi's
// per-request tracer produces real spans instead of no-ops.
// No span exporter is registered here: the core emits no spans worth
// shipping anywhere on its own, and wiring a concrete OTLP exporter is
// a deployment concern outside the core's scope (spec §1). A real
// deployment swaps this for a TracerProvider with an exporter attached
// before calling otel.SetTracerProvider; nothing downstream changes.
func initTracing() func(context.Context) error {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		"https://opentelemetry.io/schemas/1.26.0",
		attribute.String("service.name", "soectl"),
	))
	if err != nil {
		log.Printf("soectl: tracer resource: %v", err)
		res = resource.Default()
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func loadPacks(dir string) (*standards.Catalog, error) {
	cat := standards.NewCatalog()
	if err := cat.LoadDir(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("soectl: packs dir %s absent, starting with an empty pack catalog", dir)
			return cat, nil
		}
		return nil, err
	}
	return cat, nil
}

// openStores builds the profile and plan version stores from
// cfg.DatabaseURL, falling back to in-memory stores when no database
// is configured (e.g. local development or tests). An optional Redis
// latest-pointer cache wraps both when SOE_REDIS_ADDR is set.
func openStores(cfg *config.Config) (profileDB, planDB store.VersionStore, closeFn func(), err error) {
	closeFn = func() {}

	if cfg.DatabaseURL == "" {
		return store.NewMemStore(), store.NewMemStore(), closeFn, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, closeFn, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, closeFn, fmt.Errorf("ping postgres: %w", err)
	}

	pg := store.NewPGStore(db)
	if err := pg.Init(ctx); err != nil {
		db.Close()
		return nil, nil, closeFn, fmt.Errorf("init postgres schema: %w", err)
	}
	closeFn = func() { db.Close() }

	var profileStore, planStore store.VersionStore = pg, pg

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache := store.NewRedisLatestPointerCache(client)
		profileStore = store.NewCachedVersionStore(pg, cache, time.Minute)
		planStore = store.NewCachedVersionStore(pg, cache, time.Minute)
		prevClose := closeFn
		closeFn = func() { prevClose(); client.Close() }
	}

	return profileStore, planStore, closeFn, nil
}
