// Package token implementa el núcleo stateless de credenciales: codec firmado
// (HS256, clave simétrica compartida), emisión de access tokens, blacklist de
// jti y el ciclo de vida de refresh tokens sobre el Revocation Store.
package token

import "time"

// Claims es el claim set de un access token. Inmutable una vez firmado;
// nunca se persiste: la validez se computa de firma + expiry + blacklist.
type Claims struct {
	Subject  string   // sub: user id
	Email    string   // email
	Roles    []string // roles
	JTI      string   // jti: único por emisión
	Issuer   string   // iss
	IssuedAt time.Time
	Expiry   time.Time
}

// Expired indica si el token ya pasó su expiración natural.
func (c *Claims) Expired(now time.Time) bool {
	return !c.Expiry.After(now)
}
