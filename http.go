package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// HTTPController exposes the AuthService over JSON routes:
//
//	POST /auth/register    create an account, optionally with a session
//	POST /auth/login       authenticate and issue tokens
//	POST /auth/refresh     rotate a refresh token
//	POST /auth/logout      end one session (204)
//	POST /auth/logout-all  end every session for a user (204)
//	GET  /auth/sessions    list active sessions for a user
type HTTPController struct {
	service AuthService
	logger  Logger
}

// HTTPControllerOption customizes the controller.
type HTTPControllerOption func(*HTTPController)

// WithHTTPLogger overrides the controller logger.
func WithHTTPLogger(logger Logger) HTTPControllerOption {
	return func(c *HTTPController) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewHTTPController wraps an AuthService for transport registration.
func NewHTTPController(service AuthService, opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		service: service,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// RegisterAuthRoutes mounts the auth endpoints on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], service AuthService, opts ...HTTPControllerOption) {
	controller := NewHTTPController(service, opts...)

	app.Post("/auth/register", controller.Register).SetName("auth.register")
	app.Post("/auth/login", controller.Login).SetName("auth.login")
	app.Post("/auth/refresh", controller.Refresh).SetName("auth.refresh")
	app.Post("/auth/logout", controller.Logout).SetName("auth.logout")
	app.Post("/auth/logout-all", controller.LogoutAll).SetName("auth.logout-all")
	app.Get("/auth/sessions", controller.Sessions).SetName("auth.sessions")
}

// RegisterPayload is the /auth/register request body.
type RegisterPayload struct {
	Email        string     `json:"email" form:"email"`
	Password     string     `json:"password" form:"password"`
	IssueSession *bool      `json:"issueSession,omitempty" form:"issue_session"`
	Meta         DeviceMeta `json:"deviceMeta,omitempty"`
}

func (r RegisterPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 1024)),
	)
}

// LoginPayload is the /auth/login request body.
type LoginPayload struct {
	Email    string     `json:"email" form:"email"`
	Password string     `json:"password" form:"password"`
	Meta     DeviceMeta `json:"deviceMeta,omitempty"`
}

func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

// RefreshPayload is the /auth/refresh request body.
type RefreshPayload struct {
	RefreshToken string `json:"refreshToken" form:"refresh_token"`
}

func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// LogoutPayload is the /auth/logout request body.
type LogoutPayload struct {
	SessionID string `json:"sessionId" form:"session_id"`
	UserID    string `json:"userId,omitempty" form:"user_id"`
	Reason    string `json:"reason,omitempty" form:"reason"`
}

func (r LogoutPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SessionID, validation.Required, is.UUIDv4),
	)
}

// LogoutAllPayload is the /auth/logout-all request body.
type LogoutAllPayload struct {
	UserID           string `json:"userId" form:"user_id"`
	ExcludeSessionID string `json:"excludeSessionId,omitempty" form:"exclude_session_id"`
	Reason           string `json:"reason,omitempty" form:"reason"`
}

func (r LogoutAllPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, is.UUIDv4),
	)
}

func (c *HTTPController) Register(ctx router.Context) error {
	payload := RegisterPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	issueSession := true
	if payload.IssueSession != nil {
		issueSession = *payload.IssueSession
	}

	result, err := c.service.Register(ctx.Context(), RegisterInput{
		Email:        payload.Email,
		Password:     payload.Password,
		IssueSession: issueSession,
		Meta:         payload.Meta,
	})
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

func (c *HTTPController) Login(ctx router.Context) error {
	payload := LoginPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	result, err := c.service.Authenticate(ctx.Context(), payload.Email, payload.Password, payload.Meta)
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

func (c *HTTPController) Refresh(ctx router.Context) error {
	payload := RefreshPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	result, err := c.service.RefreshSession(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, result)
}

func (c *HTTPController) Logout(ctx router.Context) error {
	payload := LogoutPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return c.respondError(ctx, validationError(err))
	}

	input := LogoutInput{
		SessionID: sessionID,
		Reason:    payload.Reason,
	}

	if payload.UserID != "" {
		userID, err := uuid.Parse(payload.UserID)
		if err != nil {
			return c.respondError(ctx, validationError(err))
		}
		input.UserID = &userID
	}

	if err := c.service.Logout(ctx.Context(), input); err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (c *HTTPController) LogoutAll(ctx router.Context) error {
	payload := LogoutAllPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.respondError(ctx, validationError(err))
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		return c.respondError(ctx, validationError(err))
	}

	input := LogoutAllInput{
		UserID: userID,
		Reason: payload.Reason,
	}

	if payload.ExcludeSessionID != "" {
		excludeID, err := uuid.Parse(payload.ExcludeSessionID)
		if err != nil {
			return c.respondError(ctx, validationError(err))
		}
		input.ExcludeSessionID = &excludeID
	}

	if _, err := c.service.LogoutAll(ctx.Context(), input); err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (c *HTTPController) Sessions(ctx router.Context) error {
	rawUserID := ctx.Query("userId")
	if rawUserID == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{
			"error": "user_id_required",
		})
	}

	userID, err := uuid.Parse(rawUserID)
	if err != nil {
		return c.respondError(ctx, validationError(err))
	}

	sessions, err := c.service.ListActiveSessions(ctx.Context(), userID)
	if err != nil {
		return c.respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"sessions": sessions,
	})
}

// respondError logs the full error server-side and renders only the
// sanitized classification. Stack traces and internal identifiers never
// reach the client.
func (c *HTTPController) respondError(ctx router.Context, err error) error {
	classified := Classify(err)

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		c.logger.Error(
			"auth request failed",
			"code", classified.Code,
			"severity", classified.Severity,
			"threat", classified.Threat,
			"error", richErr.Message,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
	} else {
		c.logger.Error("auth request failed", "code", classified.Code, "error", err)
	}

	return ctx.JSON(classified.Status, map[string]string{
		"error":   classified.Code,
		"message": classified.Message,
	})
}
