package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/thea-app/thea/internal/shared"
)

func sessionFixture(t *testing.T) (*SessionStore, string) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewSessionStore(client, time.Hour)
	token, err := store.Create(context.Background(), shared.Actor{
		ID: "user-1", Username: "dana", Role: shared.RoleUser, EnterpriseID: "ent-1",
	})
	require.NoError(t, err)
	return store, token
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	store, token := sessionFixture(t)

	var seen *shared.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	Middleware(store)(next).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, seen)
	require.Equal(t, "user-1", seen.ID)
}

func TestMiddlewareAcceptsSessionCookie(t *testing.T) {
	store, token := sessionFixture(t)

	var seen *shared.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	res := httptest.NewRecorder()
	Middleware(store)(next).ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, seen)
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	store, _ := sessionFixture(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := httptest.NewRecorder()
	Middleware(store)(next).ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	res = httptest.NewRecorder()
	Middleware(store)(next).ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireRole(shared.RoleAdmin, shared.RoleVerifier)(next)

	verifier := &shared.Actor{ID: "user-2", Role: shared.RoleVerifier}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), verifier))
	res := httptest.NewRecorder()
	guarded.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	plain := &shared.Actor{ID: "user-3", Role: shared.RoleUser}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithActor(req.Context(), plain))
	res = httptest.NewRecorder()
	guarded.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	res = httptest.NewRecorder()
	guarded.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
