package masterdata

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/thea-app/thea/internal/platform/httpx"
	"github.com/thea-app/thea/internal/shared"
)

// Handler manages master data endpoints.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validator: validator.New()}
}

// MountClientRoutes registers client routes.
func (h *Handler) MountClientRoutes(r chi.Router) {
	r.Get("/", h.listClients)
	r.Post("/", h.createClient)
	r.Get("/{id}", h.getClient)
}

// MountSupplierRoutes registers supplier routes.
func (h *Handler) MountSupplierRoutes(r chi.Router) {
	r.Get("/", h.listSuppliers)
	r.Post("/", h.createSupplier)
	r.Get("/{id}", h.getSupplier)
}

// MountProjectRoutes registers project routes.
func (h *Handler) MountProjectRoutes(r chi.Router) {
	r.Get("/", h.listProjects)
	r.Post("/", h.createProject)
	r.Get("/{id}", h.getProject)
}

type createPartyRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=255"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	clients, err := h.repo.ListClients(r.Context(), actor.EnterpriseID)
	if err != nil {
		h.logger.Error("list clients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": clients})
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req createPartyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	client, err := h.repo.CreateClient(r.Context(), CreateClientInput{
		EnterpriseID: actor.EnterpriseID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
	})
	if err != nil {
		h.logger.Error("create client", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": client})
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	client, err := h.repo.GetClient(r.Context(), actor.EnterpriseID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": client})
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	suppliers, err := h.repo.ListSuppliers(r.Context(), actor.EnterpriseID)
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": suppliers})
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req createPartyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	supplier, err := h.repo.CreateSupplier(r.Context(), CreateSupplierInput{
		EnterpriseID: actor.EnterpriseID,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
	})
	if err != nil {
		h.logger.Error("create supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": supplier})
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	supplier, err := h.repo.GetSupplier(r.Context(), actor.EnterpriseID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": supplier})
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	projects, err := h.repo.ListProjects(r.Context(), actor.EnterpriseID)
	if err != nil {
		h.logger.Error("list projects", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": projects})
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	var req createProjectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	project, err := h.repo.CreateProject(r.Context(), CreateProjectInput{
		EnterpriseID: actor.EnterpriseID,
		Name:         req.Name,
		Description:  req.Description,
	})
	if err != nil {
		h.logger.Error("create project", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "data": project})
}

func (h *Handler) getProject(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	project, err := h.repo.GetProject(r.Context(), actor.EnterpriseID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "data": project})
}
