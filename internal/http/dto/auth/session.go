package auth

// LogoutRequest es el body opcional de POST /v1/auth/logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// MeResponse es la introspección de GET /v1/auth/me.
// Cuando Active es false, el resto de los campos queda en cero.
type MeResponse struct {
	Active bool     `json:"active"`
	Sub    string   `json:"sub,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Exp    int64    `json:"exp,omitempty"`
	Iat    int64    `json:"iat,omitempty"`
	Email  string   `json:"email,omitempty"`
}
