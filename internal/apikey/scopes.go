package apikey

import "regexp"

// Allow-list cerrado de scopes. Un scope fuera de esta lista se rechaza en
// la creación de la key, no en el enforcement: los typos fallan temprano.
const (
	ScopeCoursesRead      = "courses:read"
	ScopeCoursesWrite     = "courses:write"
	ScopeEnrollmentsRead  = "enrollments:read"
	ScopeEnrollmentsWrite = "enrollments:write"
	ScopeUsersRead        = "users:read"
	ScopeReportsRead      = "reports:read"
)

// AllowedScopes es el conjunto completo de scopes otorgables.
var AllowedScopes = map[string]struct{}{
	ScopeCoursesRead:      {},
	ScopeCoursesWrite:     {},
	ScopeEnrollmentsRead:  {},
	ScopeEnrollmentsWrite: {},
	ScopeUsersRead:        {},
	ScopeReportsRead:      {},
}

// Scope name rules (para validar formato antes del allow-list):
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName retorna true si el nombre matchea el patrón permitido.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// ScopeAllowed retorna true si el scope tiene formato válido y pertenece
// al allow-list.
func ScopeAllowed(name string) bool {
	if !ValidScopeName(name) {
		return false
	}
	_, ok := AllowedScopes[name]
	return ok
}

// HasScope verifica pertenencia en un set de scopes otorgados.
func HasScope(granted []string, want string) bool {
	for _, s := range granted {
		if s == want {
			return true
		}
	}
	return false
}
