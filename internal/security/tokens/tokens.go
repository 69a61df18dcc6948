// Package tokens genera secretos opacos de alta entropía y sus hashes.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// APIKeyPrefix identifica visualmente los secretos de API keys ("ak_...").
// El prefijo no aporta entropía, solo facilita detectar leaks en código/logs.
const APIKeyPrefix = "ak_"

// GenerateOpaqueToken genera un token opaco aleatorio (base64url sin padding).
func GenerateOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateAPIKeySecret genera el secreto crudo de una API key con prefijo.
func GenerateAPIKeySecret(nBytes int) (string, error) {
	t, err := GenerateOpaqueToken(nBytes)
	if err != nil {
		return "", err
	}
	return APIKeyPrefix + t, nil
}

// SHA256Base64URL devuelve sha256(input) en base64url sin padding.
// Es el único formato en el que un secreto toca el store.
func SHA256Base64URL(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
