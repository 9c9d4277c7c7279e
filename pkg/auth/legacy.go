package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lamb-project/lamb-core/pkg/httpclient"
)

// LegacyVerifier delegates to the legacy (pre-native-JWT) identity service.
// It is tried only after NativeVerifier fails, per the transitional
// fallback chain: the legacy path exists so installations that have not
// migrated their issued tokens yet keep working, and can be retired by
// simply dropping this verifier from the chain.
type LegacyVerifier struct {
	baseURL string
	client  *httpclient.Client
}

// NewLegacyVerifier builds a verifier that asks the legacy identity
// service at baseURL (e.g. the OWI-compatible /api/v1/auths/ endpoint)
// whether a token is valid.
func NewLegacyVerifier(baseURL string) *LegacyVerifier {
	return &LegacyVerifier{
		baseURL: baseURL,
		client:  httpclient.New(httpclient.WithMaxRetries(0)),
	}
}

type legacyIdentityResponse struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	ID    string `json:"id"`
}

// Verify calls the legacy identity service and treats a 200 response as a
// synthetic payload carrying {email, role, sub}.
func (v *LegacyVerifier) Verify(ctx context.Context, tokenString string) (*TokenPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/api/v1/auths/", nil)
	if err != nil {
		return nil, fmt.Errorf("legacy verifier: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenString)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: legacy identity service unreachable: %v", ErrInvalidToken, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidToken
	}

	var identity legacyIdentityResponse
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("legacy verifier: decode response: %w", err)
	}
	if identity.Email == "" {
		return nil, ErrInvalidToken
	}

	return &TokenPayload{
		Subject: identity.ID,
		Email:   identity.Email,
		Role:    identity.Role,
	}, nil
}
