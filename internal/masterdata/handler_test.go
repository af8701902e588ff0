package masterdata

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/thea-app/thea/internal/shared"
)

type memRepo struct {
	clients   map[string]Client
	suppliers map[string]Supplier
	projects  map[string]Project
}

func newMemRepo() *memRepo {
	return &memRepo{
		clients:   map[string]Client{},
		suppliers: map[string]Supplier{},
		projects:  map[string]Project{},
	}
}

func (m *memRepo) CreateClient(_ context.Context, input CreateClientInput) (Client, error) {
	c := Client{
		ID:           uuid.NewString(),
		EnterpriseID: input.EnterpriseID,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		CreatedAt:    time.Now(),
	}
	m.clients[c.ID] = c
	return c, nil
}

func (m *memRepo) GetClient(_ context.Context, enterpriseID, id string) (Client, error) {
	c, ok := m.clients[id]
	if !ok || c.EnterpriseID != enterpriseID {
		return Client{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memRepo) ListClients(_ context.Context, enterpriseID string) ([]Client, error) {
	var out []Client
	for _, c := range m.clients {
		if c.EnterpriseID == enterpriseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memRepo) CreateSupplier(_ context.Context, input CreateSupplierInput) (Supplier, error) {
	s := Supplier{
		ID:           uuid.NewString(),
		EnterpriseID: input.EnterpriseID,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		CreatedAt:    time.Now(),
	}
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *memRepo) GetSupplier(_ context.Context, enterpriseID, id string) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok || s.EnterpriseID != enterpriseID {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) ListSuppliers(_ context.Context, enterpriseID string) ([]Supplier, error) {
	var out []Supplier
	for _, s := range m.suppliers {
		if s.EnterpriseID == enterpriseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memRepo) CreateProject(_ context.Context, input CreateProjectInput) (Project, error) {
	p := Project{
		ID:           uuid.NewString(),
		EnterpriseID: input.EnterpriseID,
		Name:         input.Name,
		Description:  input.Description,
		CreatedAt:    time.Now(),
	}
	m.projects[p.ID] = p
	return p, nil
}

func (m *memRepo) GetProject(_ context.Context, enterpriseID, id string) (Project, error) {
	p, ok := m.projects[id]
	if !ok || p.EnterpriseID != enterpriseID {
		return Project{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) ListProjects(_ context.Context, enterpriseID string) ([]Project, error) {
	var out []Project
	for _, p := range m.projects {
		if p.EnterpriseID == enterpriseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func testRouter(repo Repository, actor shared.Actor) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, repo)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), &actor)))
		})
	})
	r.Route("/api/clients", h.MountClientRoutes)
	r.Route("/api/suppliers", h.MountSupplierRoutes)
	r.Route("/api/projects", h.MountProjectRoutes)
	return r
}

func TestCreateAndGetClient(t *testing.T) {
	repo := newMemRepo()
	actor := shared.Actor{ID: "user-1", Role: shared.RoleUser, EnterpriseID: "ent-1"}
	router := testRouter(repo, actor)

	req := httptest.NewRequest(http.MethodPost, "/api/clients/", strings.NewReader(`{"name":"Acme Retail","email":"billing@acme.test"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusCreated, res.Code)

	var payload struct {
		Success bool   `json:"success"`
		Data    Client `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.Equal(t, "Acme Retail", payload.Data.Name)
	require.Equal(t, "ent-1", payload.Data.EnterpriseID)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/clients/"+payload.Data.ID, nil))
	require.Equal(t, http.StatusOK, res.Code)
}

func TestCreateClientValidatesBody(t *testing.T) {
	router := testRouter(newMemRepo(), shared.Actor{ID: "user-1", EnterpriseID: "ent-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/clients/", strings.NewReader(`{"email":"not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMasterDataScopedToEnterprise(t *testing.T) {
	repo := newMemRepo()
	supplier, err := repo.CreateSupplier(context.Background(), CreateSupplierInput{
		EnterpriseID: "ent-1",
		Name:         "Initech Supplies",
	})
	require.NoError(t, err)

	outsider := shared.Actor{ID: "user-9", Role: shared.RoleAdmin, EnterpriseID: "ent-2"}
	router := testRouter(repo, outsider)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/suppliers/"+supplier.ID, nil))
	require.Equal(t, http.StatusNotFound, res.Code)

	res = httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/suppliers/", nil))
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Data []Supplier `json:"data"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.Empty(t, payload.Data)
}

func TestCreateProject(t *testing.T) {
	repo := newMemRepo()
	router := testRouter(repo, shared.Actor{ID: "user-1", EnterpriseID: "ent-1"})

	req := httptest.NewRequest(http.MethodPost, "/api/projects/", strings.NewReader(`{"name":"Warehouse Expansion","description":"Q3 build-out"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusCreated, res.Code)
	require.Len(t, repo.projects, 1)
}
