package auth

import "errors"

// Sentinel errors returned by verifiers; the builder classifies these into
// the pipeline-wide error taxonomy (pkg/lambcore/errors) when it gives up
// on the whole chain.
var (
	// ErrInvalidToken is returned by a verifier that recognizes the token's
	// shape but cannot validate it (bad signature, expired, malformed).
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotRecognized is returned by a verifier that does not know how to
	// handle this token at all; the chain moves on to the next verifier
	// rather than failing the request.
	ErrNotRecognized = errors.New("token not recognized by this verifier")
)
