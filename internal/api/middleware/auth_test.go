package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bigkaa/user-module/internal/keycloak"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeProvider — подставной userinfo provider.
type fakeProvider struct {
	info  *keycloak.Userinfo
	err   error
	calls int
}

func (p *fakeProvider) Userinfo(_ context.Context, _ string) (*keycloak.Userinfo, error) {
	p.calls++
	return p.info, p.err
}

// okHandler запоминает идентичность из контекста.
func okHandler(got **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

// decodeError разбирает envelope ошибки.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (status, message, code string) {
	t.Helper()
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Ошибка декодирования тела ошибки: %v", err)
	}
	return body.Status, body.Message, body.Error
}

func newTestAuth(provider userinfoProvider) *Auth {
	a, err := NewAuth(provider, false, "", "", testLogger())
	if err != nil {
		panic(err)
	}
	return a
}

func TestAuth_MissingToken(t *testing.T) {
	provider := &fakeProvider{}
	auth := newTestAuth(provider)

	var identity *Identity
	handler := auth.Middleware()(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401", rec.Code)
	}
	status, _, code := decodeError(t, rec)
	if status != "error" || code != "UNAUTHORIZED" {
		t.Errorf("envelope: status=%q code=%q", status, code)
	}
	// До Keycloak дело не дошло
	if provider.calls != 0 {
		t.Errorf("userinfo вызван %d раз, хотели 0", provider.calls)
	}
}

func TestAuth_MalformedHeader(t *testing.T) {
	auth := newTestAuth(&fakeProvider{})

	var identity *Identity
	handler := auth.Middleware()(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401", rec.Code)
	}
}

func TestAuth_SessionExpired(t *testing.T) {
	provider := &fakeProvider{
		err: &keycloak.SessionError{StatusCode: http.StatusUnauthorized, Message: "Token verification failed"},
	}
	auth := newTestAuth(provider)

	var identity *Identity
	handler := auth.Middleware()(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Статус провайдера транслируется наружу, код — SESSION_EXPIRED
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401", rec.Code)
	}
	_, _, code := decodeError(t, rec)
	if code != "SESSION_EXPIRED" {
		t.Errorf("код = %q, ожидается SESSION_EXPIRED", code)
	}
	if identity != nil {
		t.Error("идентичность попала в контекст при истёкшей сессии")
	}
}

func TestAuth_IdentityBuilt(t *testing.T) {
	provider := &fakeProvider{
		info: &keycloak.Userinfo{
			Sub:               "kc-123",
			PreferredUsername: "ivan@test.com",
			Email:             "ivan@test.com",
			UserID:            "b9f3c442-5a00-4f41-a0a5-6f1cbe2ef88d",
			Roles:             "super_admin, user",
		},
	}
	auth := newTestAuth(provider)

	var identity *Identity
	handler := auth.Middleware()(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидается 200", rec.Code)
	}
	if identity == nil {
		t.Fatal("идентичность не попала в контекст")
	}
	if identity.Subject != "kc-123" {
		t.Errorf("Subject = %q, ожидается kc-123", identity.Subject)
	}
	if identity.UserID.String() != "b9f3c442-5a00-4f41-a0a5-6f1cbe2ef88d" {
		t.Errorf("UserID = %q", identity.UserID)
	}
	if len(identity.Roles) != 2 || identity.Roles[0] != "super_admin" {
		t.Errorf("Roles = %v", identity.Roles)
	}
	if !identity.IsAdmin {
		t.Error("IsAdmin = false для super_admin")
	}
	if identity.RawToken != "good-token" {
		t.Errorf("RawToken = %q", identity.RawToken)
	}
}

func TestAuth_EachRequestIntrospected(t *testing.T) {
	provider := &fakeProvider{info: &keycloak.Userinfo{Sub: "kc-1", Roles: "user"}}
	auth := newTestAuth(provider)

	var identity *Identity
	handler := auth.Middleware()(okHandler(&identity))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
		req.Header.Set("Authorization", "Bearer token")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	// Нет кэширования сессий: каждый запрос идёт в userinfo
	if provider.calls != 3 {
		t.Errorf("userinfo вызван %d раз, хотели 3", provider.calls)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		roles      string
		required   []string
		wantStatus int
	}{
		{"совпадающая роль", "admin", []string{"admin", "super_admin"}, http.StatusOK},
		{"одна из нескольких", "user, admin", []string{"admin"}, http.StatusOK},
		{"нет роли", "user", []string{"super_admin"}, http.StatusForbidden},
		{"пустой набор ролей", "", []string{"admin"}, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{info: &keycloak.Userinfo{Sub: "kc-1", Roles: tt.roles}}
			auth := newTestAuth(provider)

			var identity *Identity
			handler := auth.Middleware()(RequireRole(tt.required...)(okHandler(&identity)))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
			req.Header.Set("Authorization", "Bearer token")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидается %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				_, _, code := decodeError(t, rec)
				if code != "FORBIDDEN" {
					t.Errorf("код = %q, ожидается FORBIDDEN", code)
				}
			}
		})
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	// RequireRole без Auth.Middleware() перед ним — 401, а не 403
	var identity *Identity
	handler := RequireRole("admin")(okHandler(&identity))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, ожидается 401", rec.Code)
	}
}
