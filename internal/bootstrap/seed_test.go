package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/havenline/casekeeper/internal/config"
	"github.com/havenline/casekeeper/internal/modules/model"
	"github.com/havenline/casekeeper/internal/pkg/utils/secrets"
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

func seedConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Auth.ActorBearerTokenPrefix = "ck_actor_"
	cfg.Auth.SecretPepper = "pepper"
	cfg.Auth.BootstrapActor = "ops-admin"
	cfg.Auth.BootstrapToken = "ck_actor_bootstrap-secret"
	return cfg
}

func TestSeedActor(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op without a bootstrap token", func(t *testing.T) {
		cfg := seedConfig()
		cfg.Auth.BootstrapToken = ""
		actors := new(MockActorRepo)

		require.NoError(t, SeedActor(ctx, cfg, actors, zap.NewNop()))
		actors.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("rejects a token without the bearer prefix", func(t *testing.T) {
		cfg := seedConfig()
		cfg.Auth.BootstrapToken = "raw-secret"

		err := SeedActor(ctx, cfg, new(MockActorRepo), zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("skips when the actor already exists", func(t *testing.T) {
		cfg := seedConfig()
		actors := new(MockActorRepo)
		actors.On("GetByIdentifier", mock.Anything, "ops-admin").
			Return(&model.Actor{Identifier: "ops-admin"}, nil)

		require.NoError(t, SeedActor(ctx, cfg, actors, zap.NewNop()))
		actors.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("provisions the actor with token digests only", func(t *testing.T) {
		cfg := seedConfig()
		actors := new(MockActorRepo)
		actors.On("GetByIdentifier", mock.Anything, "ops-admin").
			Return(nil, gorm.ErrRecordNotFound)

		var created *model.Actor
		actors.On("Create", mock.Anything, mock.AnythingOfType("*model.Actor")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*model.Actor)
			}).Return(nil)

		require.NoError(t, SeedActor(ctx, cfg, actors, zap.NewNop()))
		require.NotNil(t, created)

		assert.Equal(t, model.RoleAdmin, created.Role, "role defaults to admin")
		assert.Equal(t, tokens.HMAC256Hex("pepper", "bootstrap-secret"), created.TokenHMAC)

		pass, err := secrets.VerifySecret("bootstrap-secret", "pepper", created.TokenHashPHC)
		require.NoError(t, err)
		assert.True(t, pass, "stored PHC verifies the bootstrap secret")
		actors.AssertExpectations(t)
	})
}
