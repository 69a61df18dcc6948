package token

import (
	"errors"
	"fmt"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Errores de decodificación. Decode garantiza retornar exactamente uno de
// estos (o un wrap de ellos) ante un token rechazado.
var (
	ErrMalformed    = errors.New("token: malformed")
	ErrBadSignature = errors.New("token: bad signature")
	ErrExpired      = errors.New("token: expired")
)

// Codec codifica/decodifica claims a/desde un JWT compacto firmado con HS256.
// Función pura: sin I/O, sin estado mutable.
type Codec struct {
	secret []byte
	issuer string
}

// NewCodec crea un codec con la clave simétrica compartida.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token: signing secret too short (need >= 32 bytes, got %d)", len(secret))
	}
	return &Codec{secret: secret, issuer: issuer}, nil
}

// wireClaims es la representación JWT de Claims.
type wireClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwtv5.RegisteredClaims
}

// Encode firma el claim set. Determinístico salvo por el jti que provee el caller.
func (c *Codec) Encode(claims Claims) (string, error) {
	wc := wireClaims{
		Email: claims.Email,
		Roles: claims.Roles,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Issuer:    claims.Issuer,
			Subject:   claims.Subject,
			ID:        claims.JTI,
			IssuedAt:  jwtv5.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwtv5.NewNumericDate(claims.Expiry),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, wc)
	tk.Header["typ"] = "JWT"
	return tk.SignedString(c.secret)
}

// Decode verifica firma y expiración y devuelve las claims.
func (c *Codec) Decode(raw string) (*Claims, error) {
	var wc wireClaims
	_, err := jwtv5.ParseWithClaims(raw, &wc,
		func(t *jwtv5.Token) (any, error) { return c.secret, nil },
		jwtv5.WithValidMethods([]string{"HS256"}),
		jwtv5.WithIssuer(c.issuer),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwtv5.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwtv5.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		case errors.Is(err, jwtv5.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			// issuer incorrecto, nbf futuro, etc: tratarlo como firma/contenido inválido
			return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
		}
	}
	return fromWire(&wc), nil
}

// DecodeUnverified extrae claims SIN verificar firma ni expiración.
//
// Existe únicamente para el path de logout → blacklist: un logout puede llegar
// con un token ya expirado y aun así necesitamos su jti y expiry. Jamás debe
// usarse para una decisión de autorización.
func (c *Codec) DecodeUnverified(raw string) (*Claims, error) {
	var wc wireClaims
	parser := jwtv5.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &wc); err != nil {
		return nil, ErrMalformed
	}
	return fromWire(&wc), nil
}

func fromWire(wc *wireClaims) *Claims {
	cl := &Claims{
		Subject: wc.Subject,
		Email:   wc.Email,
		Roles:   wc.Roles,
		JTI:     wc.ID,
		Issuer:  wc.Issuer,
	}
	if wc.IssuedAt != nil {
		cl.IssuedAt = wc.IssuedAt.Time
	}
	if wc.ExpiresAt != nil {
		cl.Expiry = wc.ExpiresAt.Time
	}
	return cl
}
