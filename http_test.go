package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	auth "github.com/sessionworks/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// stubAuthService lets handler tests script the boundary without a database.
type stubAuthService struct {
	authenticate func(ctx context.Context, email, password string, meta auth.DeviceMeta) (*auth.AuthResult, error)
	listActive   func(ctx context.Context, userID uuid.UUID) ([]*auth.Session, error)
}

func (s *stubAuthService) Authenticate(ctx context.Context, email, password string, meta auth.DeviceMeta) (*auth.AuthResult, error) {
	return s.authenticate(ctx, email, password, meta)
}

func (s *stubAuthService) Register(ctx context.Context, input auth.RegisterInput) (*auth.AuthResult, error) {
	return nil, auth.ErrEmailAlreadyRegistered
}

func (s *stubAuthService) RefreshSession(ctx context.Context, refreshToken string) (*auth.AuthResult, error) {
	return nil, auth.ErrRefreshTokenInvalid
}

func (s *stubAuthService) Logout(ctx context.Context, input auth.LogoutInput) error {
	return nil
}

func (s *stubAuthService) LogoutAll(ctx context.Context, input auth.LogoutAllInput) (int, error) {
	return 0, nil
}

func (s *stubAuthService) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*auth.Session, error) {
	return s.listActive(ctx, userID)
}

func TestSessionsEndpoint(t *testing.T) {
	t.Run("missing userId", func(t *testing.T) {
		controller := auth.NewHTTPController(&stubAuthService{})

		ctx := router.NewMockContext()

		var payload map[string]string
		ctx.On("JSON", http.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.Sessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, "user_id_required", payload["error"])
	})

	t.Run("malformed userId", func(t *testing.T) {
		controller := auth.NewHTTPController(&stubAuthService{})

		ctx := router.NewMockContext()
		ctx.QueriesM["userId"] = "not-a-uuid"

		var payload map[string]string
		ctx.On("JSON", http.StatusBadRequest, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.Sessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, auth.CodeValidationError, payload["error"])
	})

	t.Run("lists sessions", func(t *testing.T) {
		userID := uuid.New()
		sessions := []*auth.Session{
			{ID: uuid.New(), UserID: userID, Status: auth.SessionStatusActive},
		}

		controller := auth.NewHTTPController(&stubAuthService{
			listActive: func(_ context.Context, gotUserID uuid.UUID) ([]*auth.Session, error) {
				assert.Equal(t, userID, gotUserID)
				return sessions, nil
			},
		})

		ctx := router.NewMockContext()
		ctx.QueriesM["userId"] = userID.String()
		ctx.On("Context").Return(context.Background())

		var payload map[string]any
		ctx.On("JSON", http.StatusOK, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]any)
		}).Return(nil)

		err := controller.Sessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, sessions, payload["sessions"])
	})

	t.Run("service failure renders sanitized classification", func(t *testing.T) {
		userID := uuid.New()

		controller := auth.NewHTTPController(&stubAuthService{
			listActive: func(context.Context, uuid.UUID) ([]*auth.Session, error) {
				return nil, auth.ErrSessionNotFound
			},
		})

		ctx := router.NewMockContext()
		ctx.QueriesM["userId"] = userID.String()
		ctx.On("Context").Return(context.Background())

		var payload map[string]string
		ctx.On("JSON", http.StatusNotFound, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]string)
		}).Return(nil)

		err := controller.Sessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, auth.CodeSessionNotFound, payload["error"])
		assert.Equal(t, "Session not found", payload["message"])
	})
}

func TestPayloadValidation(t *testing.T) {
	t.Run("register", func(t *testing.T) {
		assert.NoError(t, auth.RegisterPayload{Email: "user@example.com", Password: "long-enough"}.Validate())
		assert.Error(t, auth.RegisterPayload{Email: "", Password: "long-enough"}.Validate())
		assert.Error(t, auth.RegisterPayload{Email: "nope", Password: "long-enough"}.Validate())
		assert.Error(t, auth.RegisterPayload{Email: "user@example.com", Password: ""}.Validate())
	})

	t.Run("login", func(t *testing.T) {
		assert.NoError(t, auth.LoginPayload{Email: "user@example.com", Password: "x"}.Validate())
		assert.Error(t, auth.LoginPayload{Email: "user@example.com"}.Validate())
		assert.Error(t, auth.LoginPayload{Password: "x"}.Validate())
	})

	t.Run("refresh", func(t *testing.T) {
		assert.NoError(t, auth.RefreshPayload{RefreshToken: "opaque"}.Validate())
		assert.Error(t, auth.RefreshPayload{}.Validate())
	})

	t.Run("logout", func(t *testing.T) {
		assert.NoError(t, auth.LogoutPayload{SessionID: uuid.New().String()}.Validate())
		assert.Error(t, auth.LogoutPayload{SessionID: "not-a-uuid"}.Validate())
		assert.Error(t, auth.LogoutPayload{}.Validate())
	})

	t.Run("logout all", func(t *testing.T) {
		assert.NoError(t, auth.LogoutAllPayload{UserID: uuid.New().String()}.Validate())
		assert.Error(t, auth.LogoutAllPayload{UserID: "not-a-uuid"}.Validate())
	})
}
