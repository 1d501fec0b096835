package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"

	"github.com/havenline/casekeeper/internal/bootstrap"
	"github.com/havenline/casekeeper/internal/config"
	mq "github.com/havenline/casekeeper/internal/infra/queue"
	"github.com/havenline/casekeeper/internal/modules/handler"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"github.com/havenline/casekeeper/internal/router"
	"github.com/havenline/casekeeper/internal/scheduler"
)

func main() {
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer log.Sync()

	actors := do.MustInvoke[repo.ActorRepo](inj)
	if err := bootstrap.SeedActor(context.Background(), cfg, actors, log); err != nil {
		log.Fatal("bootstrap actor seeding failed", zap.Error(err))
	}

	r := router.NewRouter(router.RouterDeps{
		Config:         cfg,
		Actors:         actors,
		Log:            log,
		SessionHandler: do.MustInvoke[*handler.SessionHandler](inj),
		NoteHandler:    do.MustInvoke[*handler.NoteHandler](inj),
		ArchiveHandler: do.MustInvoke[*handler.ArchiveHandler](inj),
	})

	sweeper := do.MustInvoke[*scheduler.RetentionSweeper](inj)
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}

	if pub, err := do.Invoke[*mq.Publisher](inj); err == nil {
		_ = pub.Close()
	}
	if rdb, err := do.Invoke[*redis.Client](inj); err == nil {
		_ = rdb.Close()
	}

	log.Info("bye")
}
