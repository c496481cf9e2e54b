package domain

// AuthContext contains the authenticated caller for request context
type AuthContext struct {
	Subject string `json:"sub"`
	Scope   string `json:"scope,omitempty"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	Scope     string `json:"scope,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
