package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thea-app/thea/internal/shared"
)

type stubRepo struct {
	users map[string]*User
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	return nil, shared.ErrNotFound
}

func (s *stubRepo) FindByID(_ context.Context, id string) (*User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthenticate(t *testing.T) {
	repo := &stubRepo{users: map[string]*User{
		"dana@thea.local": {
			ID:           "user-1",
			Username:     "dana",
			Email:        "dana@thea.local",
			PasswordHash: hashPassword(t, "s3cret"),
			Role:         shared.RoleUser,
			EnterpriseID: "ent-1",
			IsActive:     true,
		},
		"gone@thea.local": {
			ID:           "user-2",
			Email:        "gone@thea.local",
			PasswordHash: hashPassword(t, "s3cret"),
			IsActive:     false,
		},
	}}
	svc := NewService(repo)

	user, err := svc.Authenticate(context.Background(), "dana@thea.local", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)

	_, err = svc.Authenticate(context.Background(), "dana@thea.local", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@thea.local", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "gone@thea.local", "s3cret")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewSessionStore(client, 12*time.Hour)
	actor := shared.Actor{ID: "user-1", Username: "dana", Role: shared.RoleUser, EnterpriseID: "ent-1"}

	token, err := store.Create(context.Background(), actor)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, 12*time.Hour, mr.TTL("session:"+token))

	got, err := store.Get(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, actor, *got)

	require.NoError(t, store.Delete(context.Background(), token))
	_, err = store.Get(context.Background(), token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewSessionStore(client, time.Minute)
	token, err := store.Create(context.Background(), shared.Actor{ID: "user-1"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(context.Background(), token)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
