package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"github.com/havenline/casekeeper/internal/pkg/utils/secrets"
	"github.com/havenline/casekeeper/internal/pkg/utils/tokens"
)

// SeedActor provisions the configured bootstrap actor when it does not exist
// yet. A no-op without auth.bootstrap_token. The raw token is never stored,
// only its HMAC lookup digest and argon2id PHC hash.
func SeedActor(ctx context.Context, cfg *config.Config, actors repo.ActorRepo, log *zap.Logger) error {
	if cfg.Auth.BootstrapToken == "" {
		return nil
	}
	if cfg.Auth.BootstrapActor == "" {
		return errors.New("auth.bootstrap_actor is required when auth.bootstrap_token is set")
	}

	secret, ok := tokens.ParseToken(cfg.Auth.BootstrapToken, cfg.Auth.ActorBearerTokenPrefix)
	if !ok {
		return fmt.Errorf("auth.bootstrap_token must carry the %q prefix", cfg.Auth.ActorBearerTokenPrefix)
	}

	if _, err := actors.GetByIdentifier(ctx, cfg.Auth.BootstrapActor); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	phc, err := secrets.HashSecret(secret, cfg.Auth.SecretPepper)
	if err != nil {
		return err
	}

	role := cfg.Auth.BootstrapRole
	if role == "" {
		role = model.RoleAdmin
	}
	actor := &model.Actor{
		Identifier:   cfg.Auth.BootstrapActor,
		DisplayName:  cfg.Auth.BootstrapActor,
		Role:         role,
		TokenHMAC:    tokens.HMAC256Hex(cfg.Auth.SecretPepper, secret),
		TokenHashPHC: phc,
	}
	if err := actors.Create(ctx, actor); err != nil {
		return err
	}

	log.Info("bootstrap actor provisioned",
		zap.String("identifier", actor.Identifier),
		zap.String("role", actor.Role))
	return nil
}
