package auth

import "context"

// VerifierChain tries each TokenVerifier in order and returns the first
// payload resolved. This is the "pluggable TokenVerifier list" the design
// calls for so the legacy verifier can be dropped without touching the
// builder: construct the chain with only NativeVerifier once the legacy
// identity service is retired.
type VerifierChain struct {
	verifiers []TokenVerifier
}

// NewVerifierChain builds a chain that tries verifiers in the given order.
func NewVerifierChain(verifiers ...TokenVerifier) *VerifierChain {
	return &VerifierChain{verifiers: verifiers}
}

// Verify tries each verifier in turn, returning the first successful
// payload. If every verifier fails, it returns the last error seen.
func (c *VerifierChain) Verify(ctx context.Context, token string) (*TokenPayload, error) {
	var lastErr error
	for _, v := range c.verifiers {
		payload, err := v.Verify(ctx, token)
		if err == nil {
			return payload, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = ErrInvalidToken
	}
	return nil, lastErr
}
