package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/thea-app/thea/internal/platform/httpx"
	"github.com/thea-app/thea/internal/shared"
)

// Handler manages authentication endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	sessions  *SessionStore
	validator *validator.Validate
	secure    bool
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *SessionStore, secure bool) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		sessions:  sessions,
		validator: validator.New(),
		secure:    secure,
	}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Group(func(r chi.Router) {
		r.Use(Middleware(h.sessions))
		r.Get("/me", h.me)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		httpx.RespondError(w, err)
		return
	}

	actor := shared.Actor{
		ID:           user.ID,
		Username:     user.Username,
		Role:         user.Role,
		EnterpriseID: user.EnterpriseID,
	}
	token, err := h.sessions.Create(r.Context(), actor)
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.sessions.ttl),
	})
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"token": token, "user": actor},
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := tokenFromRequest(r); token != "" {
		if err := h.sessions.Delete(r.Context(), token); err != nil {
			h.logger.Warn("delete session", slog.Any("error", err))
		}
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": actor})
}
