package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/openedu/ratings/internal/component"
	"github.com/openedu/ratings/internal/config"
	"github.com/openedu/ratings/internal/domain"
	"github.com/openedu/ratings/internal/gradesync"
	httpserver "github.com/openedu/ratings/internal/http"
	"github.com/openedu/ratings/internal/permission"
	"github.com/openedu/ratings/internal/repository"
	"github.com/openedu/ratings/internal/service"
	"github.com/openedu/ratings/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config error", zap.Error(err))
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer st.Close()

	var grades service.GradeNotifier
	if cfg.GradebookURL != "" {
		client, err := gradesync.NewHTTPClient(cfg.GradebookURL, cfg.GradebookAPIKey,
			time.Duration(cfg.GradebookTimeoutSecs)*time.Second, logger)
		if err != nil {
			logger.Fatal("init gradebook client", zap.Error(err))
		}
		grades = client
	}

	repo := repository.New(st)
	registry := component.NewRegistry(logger)
	registerForum(registry)

	gate := permission.NewGate(httpserver.ClaimsChecker{}, registry)
	svc := service.New(repo.Ratings, repo.Scales, registry, gate, grades, logger)
	server := httpserver.New(cfg, st, svc, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("graceful shutdown error", zap.Error(err))
	}
}

// registerForum installs the built-in forum component: posts live in the
// posts table and all plugin permissions defer to site capabilities.
func registerForum(registry *component.Registry) {
	registry.Register("forum", component.Callbacks{
		ItemFields: func(ratingArea string) component.ItemFields {
			return component.ItemFields{Table: "posts", IDColumn: "id", OwnerColumn: "userid"}
		},
		Permissions: func(ctx context.Context, contextID int64, comp, ratingArea string) domain.Permissions {
			return domain.Permissions{View: true, ViewAny: true, ViewAll: true, Rate: true}
		},
		Validate: func(ctx context.Context, params component.ValidateParams) bool {
			if params.RatingArea != "post" {
				return false
			}
			if params.Rating == domain.UnsetRating {
				return true
			}
			max := params.ScaleID
			if max < 0 {
				max = -max
			}
			return params.Rating >= 0 && params.Rating <= max
		},
		CanSeeItemRatings: func(ctx context.Context, params component.SeeRatingsParams) bool {
			return params.RatingArea == "post"
		},
	})
}
