package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alumbra-io/aulakey/internal/apikey"
	"github.com/alumbra-io/aulakey/internal/cache"
	"github.com/alumbra-io/aulakey/internal/identity"
	"github.com/alumbra-io/aulakey/internal/rate"
	"github.com/alumbra-io/aulakey/internal/token"
)

type pipelineFixture struct {
	store cache.Client
	codec *token.Codec
	bl    *token.Blacklist
	keys  *apikey.Manager
}

func newPipeline(t *testing.T) *pipelineFixture {
	t.Helper()
	store, err := cache.New(cache.Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "aulakey-test")
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return &pipelineFixture{
		store: store,
		codec: codec,
		bl:    token.NewBlacklist(store),
		keys:  apikey.NewManager(store),
	}
}

func (f *pipelineFixture) accessToken(t *testing.T, sub, jti string, roles []string) string {
	t.Helper()
	raw, err := f.codec.Encode(token.Claims{
		Subject:  sub,
		Email:    sub + "@campus.edu",
		Roles:    roles,
		JTI:      jti,
		Issuer:   "aulakey-test",
		IssuedAt: time.Now(),
		Expiry:   time.Now().Add(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return raw
}

// echoIdentity captura lo que ve el handler final.
type seen struct {
	id      *identity.Identity
	headers http.Header
}

func captureHandler(out *seen) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out.id = identity.FromContext(r.Context())
		out.headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})
}

func TestStripIdentityHeaders(t *testing.T) {
	var got seen
	h := Chain(captureHandler(&got), StripIdentityHeaders())

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(HeaderUserID, "atacante")
	req.Header.Set(HeaderRoles, "ADMIN")
	req.Header.Set(HeaderAuthenticatedBy, "JWT")

	h.ServeHTTP(httptest.NewRecorder(), req)

	for _, hd := range []string{HeaderUserID, HeaderRoles, HeaderAuthenticatedBy} {
		if got.headers.Get(hd) != "" {
			t.Fatalf("el header %s del cliente debería borrarse", hd)
		}
	}
}

func TestAPIKeyFilter_ValidKey(t *testing.T) {
	f := newPipeline(t)
	created, err := f.keys.Create(context.Background(), "owner-1", "reportes", []string{apikey.ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var got seen
	h := Chain(captureHandler(&got), APIKeyFilter(f.keys))

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(HeaderAPIKey, created.RawSecret)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.id == nil || got.id.Method() != identity.MethodAPIKey {
		t.Fatalf("identity = %+v", got.id)
	}
	if got.headers.Get(HeaderUserID) != "owner-1" {
		t.Fatalf("X-User-Id = %q", got.headers.Get(HeaderUserID))
	}
	if got.headers.Get(HeaderRoles) != identity.RoleAPIClient {
		t.Fatalf("X-Roles = %q", got.headers.Get(HeaderRoles))
	}
	if got.headers.Get(HeaderAuthenticatedBy) != "API_KEY" {
		t.Fatalf("X-Authenticated-By = %q", got.headers.Get(HeaderAuthenticatedBy))
	}
	if got.headers.Get(HeaderAPIKey) != "" {
		t.Fatal("la key cruda no debería seguir viaje")
	}
}

func TestAPIKeyFilter_InvalidKeyDoesNotFallThrough(t *testing.T) {
	f := newPipeline(t)

	called := false
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), APIKeyFilter(f.keys))

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(HeaderAPIKey, "ak_invalida")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, una key mala corta la cadena", rec.Code)
	}
	if called {
		t.Fatal("el handler no debería ejecutarse")
	}
}

func TestAPIKeyFilter_NoHeaderPassesThrough(t *testing.T) {
	f := newPipeline(t)
	var got seen
	h := Chain(captureHandler(&got), APIKeyFilter(f.keys))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	if got.id != nil {
		t.Fatal("sin header no debería haber identidad")
	}
}

func TestJWTFilter_ValidBearer(t *testing.T) {
	f := newPipeline(t)
	raw := f.accessToken(t, "u1", "jti-1", []string{"STUDENT", "TEACHING_ASSISTANT"})

	var got seen
	h := Chain(captureHandler(&got), JWTFilter(f.codec, f.bl))

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.id == nil || got.id.Method() != identity.MethodJWT {
		t.Fatalf("identity = %+v", got.id)
	}
	if got.headers.Get(HeaderUserID) != "u1" {
		t.Fatalf("X-User-Id = %q", got.headers.Get(HeaderUserID))
	}
	if got.headers.Get(HeaderRoles) != "STUDENT,TEACHING_ASSISTANT" {
		t.Fatalf("X-Roles = %q", got.headers.Get(HeaderRoles))
	}
	if got.headers.Get(HeaderAuthenticatedBy) != "JWT" {
		t.Fatalf("X-Authenticated-By = %q", got.headers.Get(HeaderAuthenticatedBy))
	}
	if got.headers.Get("Authorization") != "" {
		t.Fatal("la credencial original no debería seguir viaje")
	}
}

func TestJWTFilter_QueryFallback(t *testing.T) {
	f := newPipeline(t)
	raw := f.accessToken(t, "u1", "jti-q", []string{"STUDENT"})

	var got seen
	h := Chain(captureHandler(&got), JWTFilter(f.codec, f.bl))

	req := httptest.NewRequest("GET", "/x?access_token="+raw, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || got.id == nil {
		t.Fatalf("status = %d id = %v", rec.Code, got.id)
	}
}

func TestJWTFilter_MissingAndInvalid(t *testing.T) {
	f := newPipeline(t)
	h := Chain(http.NotFoundHandler(), JWTFilter(f.codec, f.bl))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("sin token: status = %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer basura")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token inválido: status = %d", rec.Code)
	}
}

func TestJWTFilter_BlacklistedJTI(t *testing.T) {
	f := newPipeline(t)
	raw := f.accessToken(t, "u1", "jti-rev", []string{"STUDENT"})
	if err := f.bl.Add(context.Background(), "jti-rev", time.Now().Add(15*time.Minute)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	called := false
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}), JWTFilter(f.codec, f.bl))

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, un jti revocado es 401", rec.Code)
	}
	if called {
		t.Fatal("el handler no debería ejecutarse con jti revocado")
	}
}

func TestJWTFilter_SkipsWhenKeyAlreadyAuthenticated(t *testing.T) {
	f := newPipeline(t)
	created, err := f.keys.Create(context.Background(), "owner-1", "integración", []string{apikey.ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	var got seen
	h := Chain(captureHandler(&got),
		APIKeyFilter(f.keys),
		JWTFilter(f.codec, f.bl),
		RequireIdentity(),
	)

	// Solo key, sin bearer: el JWTFilter no debe exigir token
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set(HeaderAPIKey, created.RawSecret)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.id == nil || got.id.Method() != identity.MethodAPIKey {
		t.Fatalf("la identidad debería venir de la key: %+v", got.id)
	}
}

func TestRequireScope(t *testing.T) {
	f := newPipeline(t)
	ctx := context.Background()
	created, err := f.keys.Create(ctx, "owner-1", "solo lectura", []string{apikey.ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec0, err := f.keys.Validate(ctx, created.RawSecret)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RequireScope(apikey.ScopeCoursesWrite))

	// API key sin el scope: 403
	req := httptest.NewRequest("POST", "/x", nil)
	req = req.WithContext(identity.ToContext(req.Context(), identity.ViaAPIKey(rec0)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}

	// JWT: los scopes no lo acotan
	req = httptest.NewRequest("POST", "/x", nil)
	claims := &token.Claims{Subject: "u1", Roles: []string{"PROFESSOR"}}
	req = req.WithContext(identity.ToContext(req.Context(), identity.ViaToken(claims)))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, un JWT no se filtra por scope", w.Code)
	}

	// Sin identidad: 401
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestWithRateLimit(t *testing.T) {
	limiter := rate.NewMemoryLimiter(1, time.Minute)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), WithRateLimit(limiter, IPPathRateKey))

	req := httptest.NewRequest("POST", "/v1/auth/token", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("primer hit: status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("segundo hit: status = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("falta Retry-After en la respuesta 429")
	}
}

func TestWithRequestID(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("falta el request id en el contexto")
		}
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/x", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("falta X-Request-ID en la respuesta")
	}

	// Propaga el que manda el cliente
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "rid-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "rid-123" {
		t.Fatalf("X-Request-ID = %q", rec.Header().Get("X-Request-ID"))
	}
}
