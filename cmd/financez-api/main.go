package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatali-fataliyev/financez/api"
	"github.com/fatali-fataliyev/financez/internal/config"
	"github.com/fatali-fataliyev/financez/internal/storage"
	"github.com/fatali-fataliyev/financez/logging"
	"github.com/rs/cors"
)

var corsConf = cors.New(cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
	AllowedHeaders:   []string{"Authorization", "Content-Type", api.HEADER_REQUEST_ID},
	AllowCredentials: true,
})

func main() {
	cfg := config.LoadServer()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := logging.Init(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir, Console: os.Stderr}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logging.Logger.Info("application starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		logging.Logger.Errorf("failed to initialize storage: %v", err)
		os.Exit(1)
	}
	defer closeStore()
	logging.Logger.Infof("using %s storage", store.GetStorageType())

	handler := api.NewApi(store, cfg.MaxReceiptBytes).Routes()
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsConf.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Logger.Errorf("failed to shut down server: %v", err)
		}
	}()

	logging.Logger.Infof("Starting server on port: %s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Logger.Errorf("failed to start server: %v", err)
		os.Exit(1)
	}
	logging.Logger.Info("server stopped")
}

func openStorage(ctx context.Context, cfg *config.Server) (api.Storage, func(), error) {
	if cfg.Storage != config.StorageMySQL {
		return storage.NewInMemoryStorage(), func() {}, nil
	}

	db, err := storage.Init(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logging.Logger.Warnf("failed to close database: %v", err)
		}
	}
	return storage.NewMySQLStorage(db), closeDB, nil
}
