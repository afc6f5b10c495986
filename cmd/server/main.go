package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/expenseledger/internal/auth"
	"github.com/mmynk/expenseledger/internal/cache"
	"github.com/mmynk/expenseledger/internal/config"
	"github.com/mmynk/expenseledger/internal/ledger"
	"github.com/mmynk/expenseledger/internal/metrics"
	"github.com/mmynk/expenseledger/internal/middleware"
	"github.com/mmynk/expenseledger/internal/service"
	"github.com/mmynk/expenseledger/internal/storage/sqlite"
	"github.com/mmynk/expenseledger/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file (default ./ledger.yaml when present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level)

	if cfg.Auth.Secret == "" {
		slog.Error("auth.secret is required (set LEDGER_AUTH_SECRET)")
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	opts := []ledger.Option{ledger.WithMetrics(m)}
	resultCache, closeCache, err := newCache(cfg.Cache)
	if err != nil {
		slog.Error("Failed to initialize cache", "driver", cfg.Cache.Driver, "error", err)
		os.Exit(1)
	}
	defer closeCache()
	if resultCache != nil {
		opts = append(opts, ledger.WithCache(resultCache))
	}
	engine := ledger.New(store, opts...)

	jwtManager := auth.NewJWTManager(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	authenticator := auth.NewPasswordAuthenticator(store, cfg.Auth.BcryptCost, cfg.Auth.MinPasswordLength)

	mux := http.NewServeMux()

	logged := connect.WithInterceptors(middleware.LoggingInterceptor(m))
	authPath, authHandler := service.NewAuthServiceHandler(
		service.NewAuthService(authenticator, jwtManager, slog.Default()),
		logged,
	)
	mux.Handle(authPath, authHandler)

	ledgerPath, ledgerHandler := service.NewLedgerServiceHandler(
		service.NewLedgerService(engine),
		connect.WithInterceptors(middleware.LoggingInterceptor(m), middleware.RequireAuth(jwtManager)),
	)
	mux.Handle(ledgerPath, ledgerHandler)

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.Server.StaticPath != "" {
		staticDir, err := filepath.Abs(cfg.Server.StaticPath)
		if err != nil {
			slog.Error("Failed to resolve static path", "error", err)
			os.Exit(1)
		}
		slog.Info("Serving static files", "path", staticDir)
		mux.Handle("/", staticHandler(staticDir))
	}

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	handler := h2c.NewHandler(corsMiddleware(mux), &http2.Server{})

	slog.Info("Connect server starting", "address", cfg.Server.Address, "cache", cfg.Cache.Driver)
	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// newCache builds the configured result cache. A nil cache disables caching.
func newCache(cfg config.CacheConfig) (cache.Cache, func(), error) {
	switch cfg.Driver {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rc, err := cache.NewRedisCache(ctx, cache.Config{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      cfg.TTL,
			Prefix:   cfg.Prefix,
		})
		if err != nil {
			return nil, func() {}, err
		}
		return rc, func() { rc.Close() }, nil
	case "memory":
		return cache.NewInMemoryCache(), func() {}, nil
	default:
		return nil, func() {}, nil
	}
}

// staticHandler serves frontend assets, falling back to index.html.
func staticHandler(staticDir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/expenseledger.v1.") {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}
		filePath := filepath.Join(staticDir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
			return
		}
		http.ServeFile(w, r, filePath)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
