package relay

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// tokenVerifier validates an auth token and maps it to a user identity
type tokenVerifier interface {
	Verify(token string) (userID string, err error)
}

// stubVerifier accepts any non-empty token and derives a stable user id
// from it, so the same token always maps to the same user.
//
// TODO: replace with real signature verification against the identity
// service once its public keys are published; until then the documented
// contract is exactly "non-empty token succeeds".
type stubVerifier struct{}

func (stubVerifier) Verify(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("empty token")
	}
	return fmt.Sprintf("user-%016x", xxhash.Sum64String(token)), nil
}
