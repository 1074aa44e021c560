package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/arena/internal/adapters/auth"
	"github.com/dkeye/arena/internal/domain"
)

func newAuthEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Token {
		case "good":
			_ = json.NewEncoder(w).Encode(domain.Identity{ID: "u1", Name: "Alice"})
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
		case "slow":
			time.Sleep(2 * time.Second)
			_ = json.NewEncoder(w).Encode(domain.Identity{ID: "u1", Name: "Alice"})
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
}

func TestHTTPVerifier_ValidToken(t *testing.T) {
	srv := newAuthEndpoint(t)
	defer srv.Close()

	v := auth.NewHTTPVerifier(srv.URL)
	id, err := v.Verify(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, domain.IdentityID("u1"), id.ID)
	assert.Equal(t, "Alice", id.Name)
	assert.False(t, id.Anonymous())
}

func TestHTTPVerifier_InvalidTokenIsAnonymous(t *testing.T) {
	srv := newAuthEndpoint(t)
	defer srv.Close()

	v := auth.NewHTTPVerifier(srv.URL)
	id, err := v.Verify(context.Background(), "nope")
	require.NoError(t, err)
	assert.True(t, id.Anonymous())
}

func TestHTTPVerifier_EmptyTokenSkipsCall(t *testing.T) {
	v := auth.NewHTTPVerifier("http://127.0.0.1:1") // would fail if dialed
	id, err := v.Verify(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, id.Anonymous())
}

func TestHTTPVerifier_ServerErrorIsError(t *testing.T) {
	srv := newAuthEndpoint(t)
	defer srv.Close()

	v := auth.NewHTTPVerifier(srv.URL)
	_, err := v.Verify(context.Background(), "boom")
	assert.Error(t, err)
}

func TestHTTPVerifier_HonorsContextDeadline(t *testing.T) {
	srv := newAuthEndpoint(t)
	defer srv.Close()

	v := auth.NewHTTPVerifier(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := v.Verify(ctx, "slow")
	assert.Error(t, err)
}

func TestStaticVerifier(t *testing.T) {
	v := auth.StaticVerifier{
		"tok-a": {ID: "alice", Name: "Alice"},
	}

	id, err := v.Verify(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.Equal(t, domain.IdentityID("alice"), id.ID)

	id, err = v.Verify(context.Background(), "unknown")
	require.NoError(t, err)
	assert.True(t, id.Anonymous())
}
