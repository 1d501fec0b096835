package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/modules/repo"
	"github.com/havenline/casekeeper/internal/modules/serializer"
	"github.com/havenline/casekeeper/internal/pkg/utils/secrets"
	"github.com/havenline/casekeeper/internal/pkg/utils/tokens"
)

// ActorAuth returns a middleware that authenticates requests using actor
// bearer tokens. It validates the token, resolves the actor through the
// repo, and sets the actor in the context.
func ActorAuth(cfg *config.Config, actors repo.ActorRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}
		raw := strings.TrimPrefix(auth, "Bearer ")

		secret, ok := tokens.ParseToken(raw, cfg.Auth.ActorBearerTokenPrefix)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		lookup := tokens.HMAC256Hex(cfg.Auth.SecretPepper, secret)

		actor, err := actors.GetByTokenHMAC(ctx, lookup)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, serializer.DBErr("", err))
			return
		}

		if cfg.Auth.EnableArgon2Verification {
			pass, err := secrets.VerifySecret(secret, cfg.Auth.SecretPepper, actor.TokenHashPHC)
			if err != nil || !pass {
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
				return
			}
		}

		c.Set("actor", actor)
		c.Next()
	}
}
