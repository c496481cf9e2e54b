package driven

import "github.com/custodia-labs/sercha-tube/internal/core/domain"

// AuthAdapter handles bearer token cryptographic operations.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
