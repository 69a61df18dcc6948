// Package auth contiene los DTOs del surface de autenticación.
package auth

// Grant types soportados por POST /v1/auth/token.
const (
	GrantPassword     = "password"
	GrantRefreshToken = "refresh_token"
)

// TokenRequest es el request de emisión. Los campos pueden llegar por form,
// query o JSON (en ese orden de precedencia).
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse es el par emitido.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"` // siempre "Bearer"
	ExpiresIn    int64  `json:"expires_in"` // segundos
	RefreshToken string `json:"refresh_token"`
}
