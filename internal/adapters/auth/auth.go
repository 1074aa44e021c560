// Package auth resolves credential tokens to identities. Token validation is
// a collaborator, not something this service owns: the HTTP verifier defers
// to an external endpoint, the static one serves dev mode and tests.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dkeye/arena/internal/domain"
)

// HTTPVerifier posts the token to a verification endpoint and expects the
// identity back. Any non-OK status short of a server error means "nobody",
// which the gateway treats as an authentication failure.
type HTTPVerifier struct {
	URL    string
	Client *http.Client
}

func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{
		URL:    url,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, nil
	}

	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return domain.Identity{}, fmt.Errorf("marshal token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.URL, bytes.NewReader(body))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.Client.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var id domain.Identity
		if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
			return domain.Identity{}, fmt.Errorf("decode identity: %w", err)
		}
		return id, nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return domain.Identity{}, fmt.Errorf("verify token: endpoint returned %d", resp.StatusCode)
	default:
		// Invalid or expired token: anonymous, not an error.
		return domain.Identity{}, nil
	}
}

// StaticVerifier resolves tokens from a fixed map.
type StaticVerifier map[string]domain.Identity

func (v StaticVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	return v[token], nil
}
