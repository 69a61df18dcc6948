package cache

// Layout lógico de keys del Revocation Store. Los namespaces son agnósticos
// del backend; el Prefix de la Config se antepone a todos.
const (
	// refresh:{tokenId} -> RefreshTokenRecord (JSON)
	KeyRefresh = "refresh:"

	// user:tokens:{userId} -> set de refresh token ids vigentes
	KeyUserTokens = "user:tokens:"

	// jwt:revoked:{jti} -> marker de access token revocado
	KeyRevokedJTI = "jwt:revoked:"

	// apikey:id:{id} -> ApiKeyRecord (JSON)
	KeyAPIKeyID = "apikey:id:"

	// apikey:hash:{hash} -> id del record (lookup O(1) en validación)
	KeyAPIKeyHash = "apikey:hash:"

	// apikey:user:{userId} -> set de key ids del owner
	KeyAPIKeyUser = "apikey:user:"
)

// RefreshKey arma la key de un refresh token.
func RefreshKey(tokenID string) string { return KeyRefresh + tokenID }

// UserTokensKey arma la key del índice de refresh tokens de un usuario.
func UserTokensKey(userID string) string { return KeyUserTokens + userID }

// RevokedJTIKey arma la key del marker de blacklist de un jti.
func RevokedJTIKey(jti string) string { return KeyRevokedJTI + jti }

// APIKeyIDKey arma la key de un ApiKeyRecord por id.
func APIKeyIDKey(id string) string { return KeyAPIKeyID + id }

// APIKeyHashKey arma la key del índice por hash.
func APIKeyHashKey(hash string) string { return KeyAPIKeyHash + hash }

// APIKeyUserKey arma la key del índice de keys de un owner.
func APIKeyUserKey(userID string) string { return KeyAPIKeyUser + userID }
