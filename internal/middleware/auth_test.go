package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/pkg/utils/tokens"
)

// MockActorRepo is a mock implementation of repo.ActorRepo
type MockActorRepo struct {
	mock.Mock
}

func (m *MockActorRepo) Create(ctx context.Context, a *model.Actor) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockActorRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.Actor, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Actor), args.Error(1)
}

func (m *MockActorRepo) GetByTokenHMAC(ctx context.Context, digest string) (*model.Actor, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Actor), args.Error(1)
}

func authConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.ActorBearerTokenPrefix = "ck_actor_"
	cfg.Auth.SecretPepper = "pepper"
	return cfg
}

func authRouter(cfg *config.Config, actors *MockActorRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ActorAuth(cfg, actors))
	r.GET("/whoami", func(c *gin.Context) {
		actor := c.MustGet("actor").(*model.Actor)
		c.String(http.StatusOK, actor.Identifier)
	})
	return r
}

func TestActorAuth(t *testing.T) {
	cfg := authConfig()

	t.Run("resolves a valid token to its actor", func(t *testing.T) {
		actors := new(MockActorRepo)
		lookup := tokens.HMAC256Hex("pepper", "s3cret")
		actors.On("GetByTokenHMAC", mock.Anything, lookup).
			Return(&model.Actor{Identifier: "resp-042", Role: model.RoleLead}, nil)

		r := authRouter(cfg, actors)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer ck_actor_s3cret")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "resp-042", w.Body.String())
		actors.AssertExpectations(t)
	})

	t.Run("unknown token digest is unauthorized", func(t *testing.T) {
		actors := new(MockActorRepo)
		actors.On("GetByTokenHMAC", mock.Anything, mock.Anything).
			Return(nil, gorm.ErrRecordNotFound)

		r := authRouter(cfg, actors)
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer ck_actor_wrong")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing bearer header is unauthorized", func(t *testing.T) {
		r := authRouter(cfg, new(MockActorRepo))
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token without the prefix is unauthorized", func(t *testing.T) {
		r := authRouter(cfg, new(MockActorRepo))
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer plain-token")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
