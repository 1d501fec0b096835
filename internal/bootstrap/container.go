package bootstrap

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/infra/blob"
	"github.com/havenline/casekeeper/internal/infra/cache"
	"github.com/havenline/casekeeper/internal/infra/db"
	"github.com/havenline/casekeeper/internal/infra/logger"
	mq "github.com/havenline/casekeeper/internal/infra/queue"
	"github.com/havenline/casekeeper/internal/modules/handler"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"github.com/havenline/casekeeper/internal/modules/service"
	"github.com/havenline/casekeeper/internal/scheduler"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			_ = d.Exec("CREATE EXTENSION IF NOT EXISTS pgcrypto")

			if err := d.AutoMigrate(
				&model.Actor{},
				&model.Session{},
				&model.Note{},
				&model.ArchiveRecord{},
			); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg)
	})

	// RabbitMQ DialFunc for connection and reconnection
	do.Provide(inj, func(i *do.Injector) (mq.DialFunc, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return mq.NewDialFunc(cfg), nil
	})

	// RabbitMQ Connection
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		dialFn := do.MustInvoke[mq.DialFunc](i)
		return dialFn()
	})

	// RabbitMQ Publisher
	do.Provide(inj, func(i *do.Injector) (*mq.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		conn := do.MustInvoke[*amqp.Connection](i)
		log := do.MustInvoke[*zap.Logger](i)
		return mq.NewPublisher(conn, log, cfg)
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})

	// repos
	do.Provide(inj, func(i *do.Injector) (repo.ActorRepo, error) {
		return repo.NewActorRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SessionRepo, error) {
		return repo.NewSessionRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.NoteRepo, error) {
		return repo.NewNoteRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ArchiveRepo, error) {
		return repo.NewArchiveRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// services
	do.Provide(inj, func(i *do.Injector) (service.SessionService, error) {
		return service.NewSessionService(
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[repo.ActorRepo](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*mq.Publisher](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.NoteService, error) {
		return service.NewNoteService(
			do.MustInvoke[repo.NoteRepo](i),
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ArchiveService, error) {
		return service.NewArchiveService(
			do.MustInvoke[repo.ArchiveRepo](i),
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[repo.NoteRepo](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*zap.Logger](i),
			do.MustInvoke[*mq.Publisher](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})

	// handlers
	do.Provide(inj, func(i *do.Injector) (*handler.SessionHandler, error) {
		return handler.NewSessionHandler(do.MustInvoke[service.SessionService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.NoteHandler, error) {
		return handler.NewNoteHandler(do.MustInvoke[service.NoteService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ArchiveHandler, error) {
		return handler.NewArchiveHandler(do.MustInvoke[service.ArchiveService](i)), nil
	})

	// retention sweeper
	do.Provide(inj, func(i *do.Injector) (*scheduler.RetentionSweeper, error) {
		return scheduler.NewRetentionSweeper(
			do.MustInvoke[service.ArchiveService](i),
			do.MustInvoke[*redis.Client](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	return inj
}
