package repo

import (
	"context"

	"github.com/havenline/casekeeper/internal/modules/model"
	"gorm.io/gorm"
)

type ActorRepo interface {
	Create(ctx context.Context, a *model.Actor) error
	GetByIdentifier(ctx context.Context, identifier string) (*model.Actor, error)
	GetByTokenHMAC(ctx context.Context, hmac string) (*model.Actor, error)
}

type actorRepo struct {
	db *gorm.DB
}

func NewActorRepo(db *gorm.DB) ActorRepo {
	return &actorRepo{db: db}
}

func (r *actorRepo) Create(ctx context.Context, a *model.Actor) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *actorRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.Actor, error) {
	var a model.Actor
	if err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *actorRepo) GetByTokenHMAC(ctx context.Context, hmac string) (*model.Actor, error) {
	var a model.Actor
	if err := r.db.WithContext(ctx).Where("token_hmac = ?", hmac).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
