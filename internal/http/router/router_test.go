package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alumbra-io/aulakey/internal/apikey"
	"github.com/alumbra-io/aulakey/internal/cache"
	apikeyctrl "github.com/alumbra-io/aulakey/internal/http/controllers/apikey"
	authctrl "github.com/alumbra-io/aulakey/internal/http/controllers/auth"
	healthctrl "github.com/alumbra-io/aulakey/internal/http/controllers/health"
	apikeysvc "github.com/alumbra-io/aulakey/internal/http/services/apikey"
	authsvc "github.com/alumbra-io/aulakey/internal/http/services/auth"
	"github.com/alumbra-io/aulakey/internal/store/core"
	storememory "github.com/alumbra-io/aulakey/internal/store/memory"
	"github.com/alumbra-io/aulakey/internal/token"
)

const testHash = "stored-hash"

func newTestHandler(t *testing.T) http.Handler {
	return newTestHandlerDownstream(t, nil)
}

func newTestHandlerDownstream(t *testing.T, downstream http.Handler) http.Handler {
	t.Helper()

	store, err := cache.New(cache.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "aulakey-test")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	users := storememory.New()
	hash := testHash
	users.Put(&core.User{
		ID:           "u1",
		Email:        "ana@campus.edu",
		Roles:        []string{"STUDENT"},
		Status:       core.StatusActive,
		PasswordHash: &hash,
	})
	users.Put(&core.User{
		ID:           "u2",
		Email:        "beto@campus.edu",
		Roles:        []string{"STUDENT"},
		Status:       core.StatusActive,
		PasswordHash: &hash,
	})

	blacklist := token.NewBlacklist(store)
	keys := apikey.NewManager(store)

	authService := authsvc.NewService(authsvc.Deps{
		Users:     users,
		Verify:    func(plain, h string) bool { return plain == "secret" && h == testHash },
		Issuer:    token.NewIssuer(codec, "aulakey-test", 15*time.Minute),
		Codec:     codec,
		Refresh:   token.NewRefreshManager(store, time.Hour),
		Blacklist: blacklist,
	})

	return New(Deps{
		Token:      authctrl.NewTokenController(authService),
		Session:    authctrl.NewSessionController(authService),
		APIKeys:    apikeyctrl.NewController(apikeysvc.NewService(keys)),
		Health:     healthctrl.NewController(users, store),
		Keys:       keys,
		Codec:      codec,
		Blacklist:  blacklist,
		Downstream: downstream,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) (access, refresh string) {
	t.Helper()
	return loginAs(t, h, "ana@campus.edu")
}

func loginAs(t *testing.T, h http.Handler, email string) (access, refresh string) {
	t.Helper()
	rec := doJSON(t, h, "POST", "/v1/auth/token",
		`{"grant_type":"password","username":"`+email+`","password":"secret"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decodificando login: %v", err)
	}
	return resp.AccessToken, resp.RefreshToken
}

func TestRouter_HealthAndNotFound(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, "GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: status = %d", rec.Code)
	}

	rec = doJSON(t, h, "GET", "/no-existe", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("404: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		t.Fatal("el 404 debería ser JSON")
	}
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	h := newTestHandler(t)

	rec := doJSON(t, h, "GET", "/v1/api-keys", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sin credenciales: status = %d", rec.Code)
	}
}

func TestRouter_APIKeyLifecycle(t *testing.T) {
	h := newTestHandler(t)
	access, _ := login(t, h)
	bearer := map[string]string{"Authorization": "Bearer " + access}

	// Crear
	rec := doJSON(t, h, "POST", "/v1/api-keys",
		`{"name":"integración lms","scopes":["courses:read","reports:read"]}`, bearer)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		RawKey string `json:"rawKey"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decodificando create: %v", err)
	}
	if !strings.HasPrefix(created.RawKey, "ak_") {
		t.Fatalf("rawKey = %q", created.RawKey)
	}

	// Listar: aparece y sin secreto
	rec = doJSON(t, h, "GET", "/v1/api-keys", "", bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), created.RawKey) {
		t.Fatal("el listado nunca debe incluir el secreto crudo")
	}
	if !strings.Contains(rec.Body.String(), created.ID) {
		t.Fatal("la key creada debería listarse")
	}

	// Validar por header y por query
	rec = doJSON(t, h, "GET", "/v1/api-keys/validate", "", map[string]string{"X-API-Key": created.RawKey})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"valid":true`) {
		t.Fatalf("validate: status = %d body = %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, "GET", "/v1/api-keys/validate?key="+created.RawKey, "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"valid":true`) {
		t.Fatalf("validate por query: status = %d body = %s", rec.Code, rec.Body.String())
	}

	// Usar la key como credencial en una ruta protegida
	rec = doJSON(t, h, "GET", "/v1/api-keys", "", map[string]string{"X-API-Key": created.RawKey})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("gestión con key: status = %d, requiere sesión de usuario", rec.Code)
	}

	// Revocar
	rec = doJSON(t, h, "DELETE", "/v1/api-keys/"+created.ID, "", bearer)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}

	// La key revocada deja de validar
	rec = doJSON(t, h, "GET", "/v1/api-keys/validate", "", map[string]string{"X-API-Key": created.RawKey})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"valid":false`) {
		t.Fatalf("validate post-revoke: status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_RevokeForeignKeyForbidden(t *testing.T) {
	h := newTestHandler(t)

	accessAna, _ := login(t, h)
	rec := doJSON(t, h, "POST", "/v1/api-keys",
		`{"name":"reportes","scopes":["reports:read"]}`,
		map[string]string{"Authorization": "Bearer " + accessAna})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decodificando create: %v", err)
	}

	// Otro usuario no puede revocar la key: 403, no 404
	accessBeto, _ := loginAs(t, h, "beto@campus.edu")
	beto := map[string]string{"Authorization": "Bearer " + accessBeto}
	rec = doJSON(t, h, "DELETE", "/v1/api-keys/"+created.ID, "", beto)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete ajeno: status = %d body = %s", rec.Code, rec.Body.String())
	}

	// Una key inexistente sigue siendo 404
	rec = doJSON(t, h, "DELETE", "/v1/api-keys/no-existe", "", beto)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete inexistente: status = %d", rec.Code)
	}

	// El dueño sí puede
	rec = doJSON(t, h, "DELETE", "/v1/api-keys/"+created.ID, "",
		map[string]string{"Authorization": "Bearer " + accessAna})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete propio: status = %d", rec.Code)
	}
}

func TestRouter_LogoutRevokesAccess(t *testing.T) {
	h := newTestHandler(t)
	access, refresh := login(t, h)
	bearer := map[string]string{"Authorization": "Bearer " + access}

	// La ruta protegida funciona antes del logout
	rec := doJSON(t, h, "GET", "/v1/api-keys", "", bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("pre-logout: status = %d", rec.Code)
	}

	rec = doJSON(t, h, "POST", "/v1/auth/logout", `{"refresh_token":"`+refresh+`"}`, bearer)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status = %d", rec.Code)
	}

	// El mismo bearer ahora rebota en el borde
	rec = doJSON(t, h, "GET", "/v1/api-keys", "", bearer)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("post-logout: status = %d, el jti está blacklisteado", rec.Code)
	}

	// Y el refresh ya no rota
	rec = doJSON(t, h, "POST", "/v1/auth/token",
		`{"grant_type":"refresh_token","refresh_token":"`+refresh+`"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh post-logout: status = %d", rec.Code)
	}
}

func TestRouter_DownstreamGetsIdentityHeaders(t *testing.T) {
	var got http.Header
	downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})
	h := newTestHandlerDownstream(t, downstream)

	// Sin credencial el borde corta antes de llegar al upstream
	rec := doJSON(t, h, "GET", "/v1/campus/courses", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sin credencial: status = %d", rec.Code)
	}
	if got != nil {
		t.Fatal("el upstream no debería recibir requests sin identidad")
	}

	access, _ := login(t, h)
	rec = doJSON(t, h, "GET", "/v1/campus/courses", "", map[string]string{"Authorization": "Bearer " + access})
	if rec.Code != http.StatusOK {
		t.Fatalf("con bearer: status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got.Get("X-User-Id") != "u1" {
		t.Fatalf("X-User-Id = %q", got.Get("X-User-Id"))
	}
	if got.Get("X-Roles") != "STUDENT" {
		t.Fatalf("X-Roles = %q", got.Get("X-Roles"))
	}
	if got.Get("X-Authenticated-By") != "JWT" {
		t.Fatalf("X-Authenticated-By = %q", got.Get("X-Authenticated-By"))
	}
	if got.Get("Authorization") != "" {
		t.Fatal("el Authorization no debe cruzar el borde")
	}
}

func TestRouter_ClientIdentityHeadersIgnored(t *testing.T) {
	h := newTestHandler(t)

	// Mandar headers de identidad sin credencial real no abre nada
	rec := doJSON(t, h, "GET", "/v1/api-keys", "", map[string]string{
		"X-User-Id":          "u1",
		"X-Roles":            "ADMIN",
		"X-Authenticated-By": "JWT",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, los headers del cliente no son credencial", rec.Code)
	}
}
