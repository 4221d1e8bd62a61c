package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahmedwadee/fbrflow/internal/auth"
	"github.com/ahmedwadee/fbrflow/internal/config"
	"github.com/ahmedwadee/fbrflow/internal/database"
	"github.com/ahmedwadee/fbrflow/internal/fbr"
	"github.com/ahmedwadee/fbrflow/internal/hscode"
	flowHttp "github.com/ahmedwadee/fbrflow/internal/http"
	importHandler "github.com/ahmedwadee/fbrflow/internal/http/importcsv"
	invoiceHandler "github.com/ahmedwadee/fbrflow/internal/http/invoice"
	loginHandler "github.com/ahmedwadee/fbrflow/internal/http/login"
	logsHandler "github.com/ahmedwadee/fbrflow/internal/http/logs"
	queueHandler "github.com/ahmedwadee/fbrflow/internal/http/queue"
	referenceHandler "github.com/ahmedwadee/fbrflow/internal/http/reference"
	"github.com/ahmedwadee/fbrflow/internal/importer"
	"github.com/ahmedwadee/fbrflow/internal/invoice"
	invoiceStore "github.com/ahmedwadee/fbrflow/internal/invoice/store"
	"github.com/ahmedwadee/fbrflow/internal/payload"
	"github.com/ahmedwadee/fbrflow/internal/queue"
	queueStore "github.com/ahmedwadee/fbrflow/internal/queue/store"
	"github.com/ahmedwadee/fbrflow/internal/sublog"
	sublogStore "github.com/ahmedwadee/fbrflow/internal/sublog/store"
	"github.com/ahmedwadee/fbrflow/internal/worker"
)

const hsCodeCacheTTL = 24 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	fbrClient := fbr.NewClient(fbr.ClientConfig{
		Endpoint: cfg.FBR.Endpoint,
		BaseURL:  cfg.FBR.BaseURL,
		Token:    cfg.FBR.Token,
		Timeout:  cfg.FBR.Timeout,
	})

	seller := invoice.Party{
		NTNCNIC:      cfg.Seller.NTNCNIC,
		BusinessName: cfg.Seller.BusinessName,
		Province:     cfg.Seller.Province,
		Address:      cfg.Seller.Address,
	}

	var (
		invoiceService = invoice.NewService(invoiceStore.New(db))
		queueService   = queue.NewService(queueStore.New(db), queue.RetryPolicy{
			BaseDelay:   cfg.Queue.BaseDelay,
			MaxDelay:    cfg.Queue.MaxDelay,
			MaxAttempts: cfg.Queue.MaxAttempts,
		})
		builder       = payload.NewBuilder(hscode.NewCache(fbrClient, hsCodeCacheTTL))
		sublogService = sublog.NewService(sublogStore.New(db))
		importService = importer.NewService(invoiceService, seller)
		authService   = auth.NewService(auth.Config{
			LoginID:  cfg.Auth.LoginID,
			Password: cfg.Auth.Password,
			Secret:   cfg.Auth.Secret,
			TokenTTL: cfg.Auth.TokenTTL,
		})
	)

	var (
		loginH     = loginHandler.NewHandler(authService)
		invoiceH   = invoiceHandler.NewHandler(invoiceService, queueService, builder, seller)
		queueH     = queueHandler.NewHandler(queueService)
		importH    = importHandler.NewHandler(importService)
		logsH      = logsHandler.NewHandler(sublogService)
		referenceH = referenceHandler.NewHandler(fbrClient)
	)

	router := flowHttp.New(authService, loginH, invoiceH, queueH, importH, logsH, referenceH)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.New(queueService, invoiceService, builder, fbrClient, sublogService, worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		CallTimeout:  cfg.FBR.Timeout,
	})

	go w.Run(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		slog.Info("starting server", "addr", server.Addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
}
