package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwai-club/kwai/internal/web/auth"
	webcontext "github.com/kwai-club/kwai/internal/web/context"
	"github.com/kwai-club/kwai/internal/web/middleware"
	"github.com/kwai-club/kwai/internal/web/request"
	"github.com/kwai-club/kwai/internal/web/resource"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/internal/web/router"
)

// LoginForm is the url-encoded login request. The username is the email
// address of the user.
type LoginForm struct {
	Username string `schema:"username" validate:"required,email"`
	Password string `schema:"password" validate:"required,max=72"`
}

// TokenResponse is returned by a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Handler serves the /auth endpoints.
type Handler struct {
	repo   Repository
	tokens *auth.TokenService
	render *resource.Renderer
	parser *request.Parser
	logger *zap.Logger
	now    func() time.Time

	throttle middleware.Middleware
}

func NewHandler(repo Repository, tokens *auth.TokenService, render *resource.Renderer, parser *request.Parser, logger *zap.Logger) *Handler {
	return &Handler{
		repo:   repo,
		tokens: tokens,
		render: render,
		parser: parser,
		logger: logger,
		now:    time.Now,
	}
}

// ThrottleLogin guards the login route with mw, typically a rate limit.
func (h *Handler) ThrottleLogin(mw middleware.Middleware) *Handler {
	h.throttle = mw
	return h
}

// Routes registers the auth routes on r. Login is public; the current user
// requires a token.
func (h *Handler) Routes(r *router.Router, authenticate middleware.Middleware) {
	r.Route("/auth", func(r *router.Router) {
		login := r
		if h.throttle != nil {
			login = r.With("ratelimit", h.throttle)
		}
		login.Post("/login", h.render.Handle(h.login)).
			Named("auth.login")
		r.With("auth", authenticate).Get("/me", h.render.Handle(h.me)).
			Named("auth.me").
			WithResource(UserType, router.OpShow)
	})
}

// loginFailed is the single answer to every failed login, so a client
// cannot tell an unknown email from a wrong password.
func loginFailed() *response.HTTPError {
	return response.Unauthorized("invalid email or password")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	var form LoginForm
	if err := h.parser.ParseForm(w, r, &form); err != nil {
		var valErrs validator.ValidationErrors
		if errors.As(err, &valErrs) {
			return loginFailed().Wrap(err)
		}
		return err
	}

	user, err := h.repo.GetByEmail(r.Context(), form.Username)
	if errors.Is(err, ErrUserNotFound) {
		auth.SpendPasswordCheck(form.Password)
		return loginFailed()
	}
	if err != nil {
		return err
	}
	if !auth.CheckPassword(form.Password, user.Password) {
		return loginFailed()
	}

	token, err := h.tokens.GenerateToken(user.UUID.String(), user.Email)
	if err != nil {
		return err
	}
	if err := h.repo.UpdateLastLogin(r.Context(), user.ID, h.now()); err != nil {
		h.logger.Warn("failed to record login", zap.String("user", user.UUID.String()), zap.Error(err))
	}

	w.Header().Set("Cache-Control", "no-store")
	return response.RenderJSON(w, http.StatusOK, "application/json", TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(h.tokens.TTL().Seconds()),
	})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) error {
	id, err := uuid.Parse(webcontext.GetCurrentUser(r.Context()))
	if err != nil {
		return response.Unauthorized("invalid token subject").Wrap(err)
	}
	user, err := h.repo.GetByUUID(r.Context(), id)
	if errors.Is(err, ErrUserNotFound) {
		return response.Unauthorized("user no longer exists").Wrap(err)
	}
	if err != nil {
		return err
	}
	return h.render.One(w, r, http.StatusOK, UserType, user)
}
