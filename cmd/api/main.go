//	@title			Image Gallery API
//	@version		1.0
//	@description	Uploads images to private object storage and serves them back through the server.
//
//	@host		localhost:3000
//	@BasePath	/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"github.com/imagegallery/service/internal/config"
	"github.com/imagegallery/service/internal/gallery"
	"github.com/imagegallery/service/internal/logger"
	appMiddleware "github.com/imagegallery/service/internal/middleware"
	"github.com/imagegallery/service/internal/response"
	"github.com/imagegallery/service/internal/storage"
	"github.com/imagegallery/service/web"

	_ "github.com/imagegallery/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.IsProduction())
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.EnvFileLoaded {
		log.Info("no .env file found, reading from environment")
	}

	store, err := storage.Open(context.Background(), cfg.Storage, log)
	if err != nil {
		log.Fatal("object storage init failed", zap.Error(err))
	}
	if c, ok := store.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}
	log.Info("object storage ready", zap.String("driver", string(store.Driver())), zap.String("bucket", cfg.Storage.Bucket))

	// Wire dependencies: store → service → handler
	svc := gallery.NewService(store, log)
	handler := gallery.NewHandler(svc, log)

	static, err := web.Handler()
	if err != nil {
		log.Fatal("static assets unavailable", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(handler, static, log),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		log.Info("swagger UI available", zap.String("url", "http://localhost:"+cfg.Port+"/swagger/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-quit
	log.Info("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func newRouter(h *gallery.Handler, static http.Handler, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, healthBody{Status: "OK", Timestamp: time.Now().UTC().Format(time.RFC3339)})
	})

	// Swagger UI at http://localhost:3000/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	h.Register(r)

	r.Method(http.MethodGet, "/*", static)

	return r
}
