// Package core define los tipos del user store. El user store es un
// colaborador externo de solo lectura: este servicio consulta credenciales y
// roles, jamás los escribe.
package core

import "errors"

// ErrNotFound se retorna cuando el usuario no existe.
var ErrNotFound = errors.New("store: not found")

// Status de cuenta.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User es el registro mínimo que este servicio necesita del user store.
type User struct {
	ID    string
	Email string
	Roles []string
	// Status: "active" | "disabled". Cualquier valor distinto de active
	// bloquea login y refresh.
	Status string
	// PasswordHash es el PHC argon2id; nil si la cuenta no tiene password
	// (ej: cuentas provisionadas externamente).
	PasswordHash *string
}

// Active indica si la cuenta puede autenticarse.
func (u *User) Active() bool { return u.Status == StatusActive }
