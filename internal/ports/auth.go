package ports

import (
	"time"

	"github.com/google/uuid"
)

type AuthClaims struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

// TokenVerifier validates bearer tokens issued by the authentication service.
type TokenVerifier interface {
	Verify(raw string) (AuthClaims, error)
}
