package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/Vasu1712/coachlink-backend/internal/api/dms"
	"github.com/Vasu1712/coachlink-backend/internal/api/notifications"
	"github.com/Vasu1712/coachlink-backend/internal/app"
	"github.com/Vasu1712/coachlink-backend/internal/auth"
	"github.com/Vasu1712/coachlink-backend/internal/chat"
	"github.com/Vasu1712/coachlink-backend/internal/config"
	"github.com/Vasu1712/coachlink-backend/internal/gateway"
	"github.com/Vasu1712/coachlink-backend/internal/logging"
	"github.com/Vasu1712/coachlink-backend/internal/metrics"
	"github.com/Vasu1712/coachlink-backend/internal/middleware"
	"github.com/Vasu1712/coachlink-backend/internal/notify"
	"github.com/Vasu1712/coachlink-backend/internal/ws"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration", "err", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("Invalid logging configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", "err", err)
	}
	defer store.Close()

	lock, closeLock, err := app.OpenRunLock(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open run lock", "err", err)
	}
	defer closeLock()

	hub := ws.NewHub(logger)
	channel := chat.NewChannel(store, hub, logger)
	resolver := auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer)
	gw := gateway.New(channel, hub, resolver, gateway.Options{
		HandshakeTimeout: cfg.HandshakeTimeout,
		SendBuffer:       cfg.SendBuffer,
	}, logger)
	outbox := notify.NewOutbox(store, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws/conversations/{id}", gw.ServeWS).Methods(http.MethodGet)

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(auth.Middleware(resolver))
	dms.RegisterDMRoutes(v1, &dms.DMHandler{Channel: channel, Logger: logger})
	notifications.RegisterRoutes(v1, &notifications.Handler{Outbox: outbox, Devices: store, Logger: logger})

	if cfg.SchedulerEnabled {
		scheduler := app.NewScheduler(store, lock, cfg, logger)
		go scheduler.Start(ctx)
		logger.Info("Scheduler started", "interval", cfg.SchedulerInterval)
	}

	// Wrapped outside the router so preflight requests, which match no
	// route, still get CORS headers.
	var handler http.Handler = router
	handler = middleware.CORS(cfg.CORSOrigin, logger)(handler)
	handler = middleware.AccessLog(logger, "/health", "/metrics")(handler)
	handler = middleware.Recover(logger)(handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Server started", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "err", err)
	}
}
