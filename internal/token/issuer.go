package token

import (
	"time"

	"github.com/google/uuid"
)

// Issuer emite access tokens firmados. Puro respecto a estado externo:
// sin I/O, la única aleatoriedad es el jti.
type Issuer struct {
	codec     *Codec
	issuer    string
	accessTTL time.Duration

	// now es inyectable para tests.
	now func() time.Time
}

// NewIssuer crea un issuer con el TTL configurado (ej: 15m).
func NewIssuer(codec *Codec, issuer string, accessTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	return &Issuer{
		codec:     codec,
		issuer:    issuer,
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// AccessTTL devuelve el TTL configurado (expuesto para expires_in).
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// Issued es el resultado de una emisión.
type Issued struct {
	Token  string
	JTI    string
	Expiry time.Time
}

// Issue construye el claim set con un jti fresco y delega en el codec.
func (i *Issuer) Issue(userID, email string, roles []string) (Issued, error) {
	now := i.now().UTC().Truncate(time.Second)
	jti := uuid.NewString()

	claims := Claims{
		Subject:  userID,
		Email:    email,
		Roles:    roles,
		JTI:      jti,
		Issuer:   i.issuer,
		IssuedAt: now,
		Expiry:   now.Add(i.accessTTL),
	}

	signed, err := i.codec.Encode(claims)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, JTI: jti, Expiry: claims.Expiry}, nil
}
