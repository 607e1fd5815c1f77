package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/wmorrison76/LucccaHosp-sub009/internal/asset"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/auth"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/board"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/collab"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/config"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/discovery"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/engine"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/export"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/media"
	mw "github.com/wmorrison76/LucccaHosp-sub009/internal/middleware"
	"github.com/wmorrison76/LucccaHosp-sub009/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boardStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer closeStore()

	// Media bitmaps are decoded once and shared by every board and export.
	images := media.NewLoader(asset.NewDirResolver(cfg.AssetDir))
	defer images.Close()

	saver := store.NewAutosaver(boardStore, cfg.AutosaveDelay)
	boards := board.NewRegistry(boardStore, saver, engine.WithImages(images))

	hub := collab.NewHub(boards)
	boards.SetNotifier(hub)
	go hub.Run()

	authService := auth.NewService(cfg.JWTSecret)
	authHandler := auth.NewHandler(authService, boards)
	boardHandler := board.NewHandler(boards)
	assetHandler := asset.NewHandler(cfg.AssetDir)
	exportHandler := export.NewHandler(boards, images)

	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(authService.TokenMiddleware)

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Assets
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST")
	r.HandleFunc("/assets/{id}", assetHandler.Remove).Methods("DELETE")
	r.PathPrefix(asset.URLPrefix).Handler(assetHandler.Serve()).Methods("GET")

	// Boards
	r.HandleFunc("/boards", boardHandler.Create).Methods("POST")
	r.HandleFunc("/boards/{key}", boardHandler.Get).Methods("GET")
	r.HandleFunc("/boards/{key}", boardHandler.Put).Methods("PUT")
	r.HandleFunc("/boards/{key}", boardHandler.Delete).Methods("DELETE")
	r.HandleFunc("/boards/{key}/undo", boardHandler.Undo).Methods("POST")
	r.HandleFunc("/boards/{key}/redo", boardHandler.Redo).Methods("POST")
	r.HandleFunc("/boards/{key}/clear", boardHandler.Clear).Methods("POST")
	r.HandleFunc("/boards/{key}/history", boardHandler.History).Methods("GET")
	r.HandleFunc("/boards/{key}/history/{index}/load", boardHandler.LoadHistory).Methods("POST")
	r.HandleFunc("/boards/{key}/snapshots", boardHandler.ListSnapshots).Methods("GET")
	r.HandleFunc("/boards/{key}/snapshots", boardHandler.SaveSnapshot).Methods("POST")
	r.HandleFunc("/boards/{key}/snapshots/{id}/restore", boardHandler.RestoreSnapshot).Methods("POST")
	r.HandleFunc("/boards/{key}/stickies", boardHandler.AddSticky).Methods("POST")
	r.HandleFunc("/boards/{key}/media", boardHandler.AddMedia).Methods("POST")
	r.HandleFunc("/boards/{key}/objects/{id}", boardHandler.DeleteObject).Methods("DELETE")

	// Lock
	r.HandleFunc("/boards/{key}/lock", authHandler.Lock).Methods("POST")
	r.HandleFunc("/boards/{key}/unlock", authHandler.Unlock).Methods("POST")

	// Export
	r.HandleFunc("/boards/{key}/export.png", exportHandler.PNG).Methods("GET")
	r.HandleFunc("/boards/{key}/export.pdf", exportHandler.PDF).Methods("GET")
	r.HandleFunc("/boards/{key}/export.json", exportHandler.JSON).Methods("GET")

	// WebSocket endpoint
	r.HandleFunc("/ws/boards/{key}", hub.ServeWS(origins))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(origins)(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.MDNSEnabled {
		mdnsServer, err := discovery.Advertise(cfg.MDNSName, cfg.Port)
		if err != nil {
			slog.Warn("mdns advertisement disabled", "error", err)
		} else {
			defer mdnsServer.Shutdown()
			slog.Info("advertising on the local network", "service", discovery.ServiceType, "name", cfg.MDNSName)
		}
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// Save every board that changed since its last autosave.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := boards.Flush(flushCtx); err != nil {
		slog.Error("flush boards", "error", err)
	}
}

// openStore connects the configured board store. The returned func releases
// its connections.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemoryStore(), func() {}, nil

	case config.StorePostgres:
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s, err := store.NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil

	case config.StoreRedis:
		s, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil

	default:
		s, err := store.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}
