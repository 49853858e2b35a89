package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupMockKeycloak создаёт mock HTTP-сервер Keycloak.
// tokenHandler обрабатывает запросы к token endpoint.
// adminHandler обрабатывает запросы к Admin REST API.
func setupMockKeycloak(t *testing.T, tokenHandler, adminHandler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()

	// Token endpoint
	mux.HandleFunc("/realms/main/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		if tokenHandler != nil {
			tokenHandler(w, r)
			return
		}
		// Дефолтный ответ: валидная пара токенов на 300 секунд
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(TokenPair{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			TokenType:    "Bearer",
			ExpiresIn:    300,
		})
	})

	// Admin REST API
	mux.HandleFunc("/admin/realms/main/", func(w http.ResponseWriter, r *http.Request) {
		if adminHandler != nil {
			adminHandler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New(
		server.URL,
		"main",
		"user-module",
		"admin@test.com",
		"admin-password",
		server.Client(),
		testLogger(),
	)

	return server, client
}

// TestClient_AdminTokenCaching проверяет кэширование admin-токена.
func TestClient_AdminTokenCaching(t *testing.T) {
	tokenRequests := 0

	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			tokenRequests++
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenPair{
				AccessToken: "cached-token",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	ctx := context.Background()

	// Первый запрос — логин администратора
	token1, err := client.getAdminToken(ctx)
	if err != nil {
		t.Fatalf("Ошибка получения токена: %v", err)
	}
	if token1 != "cached-token" {
		t.Errorf("ожидался cached-token, получен %s", token1)
	}

	// Второй запрос — из кэша (не должен вызывать HTTP)
	token2, err := client.getAdminToken(ctx)
	if err != nil {
		t.Fatalf("Ошибка получения токена: %v", err)
	}
	if token2 != "cached-token" {
		t.Errorf("ожидался cached-token, получен %s", token2)
	}

	if tokenRequests != 1 {
		t.Errorf("ожидался 1 запрос токена, было %d", tokenRequests)
	}
}

// TestClient_AdminTokenRefreshBefore30s проверяет обновление за 30 секунд до истечения.
func TestClient_AdminTokenRefreshBefore30s(t *testing.T) {
	tokenRequests := 0

	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			tokenRequests++
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenPair{
				AccessToken: "new-token",
				TokenType:   "Bearer",
				ExpiresIn:   300,
			})
		},
		nil,
	)

	// Токен истекает через 20 секунд — должен обновиться (< 30s)
	client.adminToken = "expiring-token"
	client.tokenExpiry = time.Now().Add(20 * time.Second)

	token, err := client.getAdminToken(context.Background())
	if err != nil {
		t.Fatalf("Ошибка обновления токена: %v", err)
	}
	if token != "new-token" {
		t.Errorf("ожидался new-token, получен %s", token)
	}
	if tokenRequests != 1 {
		t.Errorf("ожидался 1 запрос токена, было %d", tokenRequests)
	}
}

// TestClient_LoginForm проверяет формат ROPC-запроса.
func TestClient_LoginForm(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("ожидался POST, получен %s", r.Method)
			}
			ct := r.Header.Get("Content-Type")
			if ct != "application/x-www-form-urlencoded" {
				t.Errorf("ожидался Content-Type application/x-www-form-urlencoded, получен %s", ct)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Ошибка парсинга формы: %v", err)
			}
			if r.Form.Get("grant_type") != "password" {
				t.Errorf("ожидался grant_type=password, получен %s", r.Form.Get("grant_type"))
			}
			if r.Form.Get("client_id") != "user-module" {
				t.Errorf("ожидался client_id=user-module, получен %s", r.Form.Get("client_id"))
			}
			if r.Form.Get("username") != "ivan@test.com" {
				t.Errorf("ожидался username=ivan@test.com, получен %s", r.Form.Get("username"))
			}
			if r.Form.Get("password") != "secret" {
				t.Errorf("ожидался password=secret, получен %s", r.Form.Get("password"))
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenPair{
				AccessToken:  "access",
				RefreshToken: "refresh",
				TokenType:    "Bearer",
				ExpiresIn:    300,
			})
		},
		nil,
	)

	tokens, err := client.Login(context.Background(), "ivan@test.com", "secret")
	if err != nil {
		t.Fatalf("Ошибка Login: %v", err)
	}
	if tokens.AccessToken != "access" || tokens.RefreshToken != "refresh" {
		t.Errorf("неожиданная пара токенов: %+v", tokens)
	}
}

// TestClient_LoginError проверяет, что сообщение провайдера сохраняется в ошибке.
func TestClient_LoginError(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid user credentials"}`))
		},
		nil,
	)

	_, err := client.Login(context.Background(), "ivan@test.com", "wrong")
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("ожидалась ошибка со статусом 401, получена: %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid user credentials") {
		t.Errorf("ожидалось сообщение провайдера в ошибке, получена: %v", err)
	}
}

// TestClient_RefreshTokens проверяет обмен refresh-токена.
func TestClient_RefreshTokens(t *testing.T) {
	_, client := setupMockKeycloak(t,
		func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Ошибка парсинга формы: %v", err)
			}
			if r.Form.Get("grant_type") != "refresh_token" {
				t.Errorf("ожидался grant_type=refresh_token, получен %s", r.Form.Get("grant_type"))
			}
			if r.Form.Get("refresh_token") != "old-refresh" {
				t.Errorf("ожидался refresh_token=old-refresh, получен %s", r.Form.Get("refresh_token"))
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(TokenPair{
				AccessToken:  "new-access",
				RefreshToken: "new-refresh",
				ExpiresIn:    300,
			})
		},
		nil,
	)

	tokens, err := client.RefreshTokens(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Ошибка RefreshTokens: %v", err)
	}
	if tokens.AccessToken != "new-access" {
		t.Errorf("ожидался new-access, получен %s", tokens.AccessToken)
	}
}

// TestClient_Userinfo проверяет успешную проверку сессии.
func TestClient_Userinfo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/main/protocol/openid-connect/userinfo", func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer user-token" {
			t.Errorf("ожидался Bearer user-token, получен %s", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Userinfo{
			Sub:               "kc-123",
			PreferredUsername: "ivan@test.com",
			Email:             "ivan@test.com",
			EmailVerified:     true,
			UserID:            "f3b1",
			Roles:             "admin, user",
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New(server.URL, "main", "user-module", "a", "p", server.Client(), testLogger())

	info, err := client.Userinfo(context.Background(), "user-token")
	if err != nil {
		t.Fatalf("Ошибка Userinfo: %v", err)
	}
	if info.Sub != "kc-123" {
		t.Errorf("ожидался sub=kc-123, получен %s", info.Sub)
	}
	if info.Roles != "admin, user" {
		t.Errorf("неожиданные роли: %s", info.Roles)
	}
}

// TestClient_UserinfoSessionExpired проверяет типизированную ошибку сессии.
func TestClient_UserinfoSessionExpired(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/main/protocol/openid-connect/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_token","error_description":"Token verification failed"}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := New(server.URL, "main", "user-module", "a", "p", server.Client(), testLogger())

	_, err := client.Userinfo(context.Background(), "stale-token")
	if err == nil {
		t.Fatal("ожидалась ошибка, получен nil")
	}

	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		t.Fatalf("ожидалась *SessionError, получена: %T (%v)", err, err)
	}
	if sessErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", sessErr.StatusCode)
	}
	if !strings.Contains(sessErr.Message, "Token verification failed") {
		t.Errorf("ожидалось сообщение провайдера, получено: %s", sessErr.Message)
	}
}

// TestClient_CreateUser проверяет представление создаваемого пользователя.
func TestClient_CreateUser(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/users") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth != "Bearer admin-token" {
				t.Errorf("ожидался Bearer admin-token, получен %s", auth)
			}

			var rep userRepresentation
			if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
				t.Fatalf("Ошибка декодирования тела: %v", err)
			}
			if rep.Username != "ivan@test.com" || rep.Email != "ivan@test.com" {
				t.Errorf("ожидался username=email=ivan@test.com, получено %s / %s", rep.Username, rep.Email)
			}
			if rep.Enabled == nil || !*rep.Enabled {
				t.Error("ожидался enabled=true")
			}
			if rep.EmailVerified == nil || *rep.EmailVerified {
				t.Error("ожидался emailVerified=false")
			}
			if got := rep.Attributes["userId"]; len(got) != 1 || got[0] != "local-42" {
				t.Errorf("ожидался атрибут userId=[local-42], получен %v", got)
			}
			if got := rep.Attributes["roles"]; len(got) != 1 || got[0] != "admin" {
				t.Errorf("ожидался атрибут roles=[admin], получен %v", got)
			}

			w.WriteHeader(http.StatusCreated)
		},
	)

	err := client.CreateUser(context.Background(), "admin-token", CreateUserRequest{
		LocalUserID: "local-42",
		FirstName:   "Ivan",
		LastName:    "Petrov",
		Email:       "ivan@test.com",
		Roles:       []string{"admin"},
	})
	if err != nil {
		t.Fatalf("Ошибка CreateUser: %v", err)
	}
}

// TestClient_FetchUserByEmail проверяет поиск по email.
func TestClient_FetchUserByEmail(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/users") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if got := r.URL.Query().Get("username"); got != "ivan@test.com" {
				t.Errorf("ожидался username=ivan@test.com, получен %s", got)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]User{
				{ID: "kc-1", Username: "ivan@test.com", Email: "ivan@test.com", Enabled: true},
			})
		},
	)

	users, err := client.FetchUserByEmail(context.Background(), "token", "ivan@test.com")
	if err != nil {
		t.Fatalf("Ошибка FetchUserByEmail: %v", err)
	}
	if len(users) != 1 || users[0].ID != "kc-1" {
		t.Errorf("неожиданный результат: %+v", users)
	}
}

// TestClient_DeleteUser проверяет удаление учётной записи.
func TestClient_DeleteUser(t *testing.T) {
	deleted := false

	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/users/kc-1") {
				deleted = true
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		},
	)

	if err := client.DeleteUser(context.Background(), "token", "kc-1"); err != nil {
		t.Fatalf("Ошибка DeleteUser: %v", err)
	}
	if !deleted {
		t.Error("запрос DELETE не был выполнен")
	}
}

// TestClient_SendPasswordResetEmail проверяет параметры письма смены пароля.
func TestClient_SendPasswordResetEmail(t *testing.T) {
	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || !strings.Contains(r.URL.Path, "/users/kc-1/execute-actions-email") {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if got := r.URL.Query().Get("lifespan"); got != "43200" {
				t.Errorf("ожидался lifespan=43200, получен %s", got)
			}
			var actions []string
			if err := json.NewDecoder(r.Body).Decode(&actions); err != nil {
				t.Fatalf("Ошибка декодирования тела: %v", err)
			}
			if len(actions) != 1 || actions[0] != "UPDATE_PASSWORD" {
				t.Errorf("ожидался [UPDATE_PASSWORD], получен %v", actions)
			}
			w.WriteHeader(http.StatusNoContent)
		},
	)

	if err := client.SendPasswordResetEmail(context.Background(), "kc-1"); err != nil {
		t.Fatalf("Ошибка SendPasswordResetEmail: %v", err)
	}
}

// TestClient_AssignClientRole проверяет последовательность из трёх запросов:
// резолв клиента realm-management, резолв роли manage-users, назначение.
func TestClient_AssignClientRole(t *testing.T) {
	var steps []string

	_, client := setupMockKeycloak(t, nil,
		func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/clients"):
				if got := r.URL.Query().Get("clientId"); got != "realm-management" {
					t.Errorf("ожидался clientId=realm-management, получен %s", got)
				}
				steps = append(steps, "clients")
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode([]clientRepresentation{
					{ID: "client-uuid", ClientID: "realm-management"},
				})

			case strings.HasSuffix(r.URL.Path, "/clients/client-uuid/roles"):
				if got := r.URL.Query().Get("search"); got != "manage-users" {
					t.Errorf("ожидался search=manage-users, получен %s", got)
				}
				steps = append(steps, "roles")
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode([]roleRepresentation{
					{ID: "role-uuid", Name: "manage-users"},
				})

			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/users/kc-1/role-mappings/clients/client-uuid"):
				steps = append(steps, "mapping")
				var roles []roleRepresentation
				if err := json.NewDecoder(r.Body).Decode(&roles); err != nil {
					t.Fatalf("Ошибка декодирования тела: %v", err)
				}
				if len(roles) != 1 || roles[0].ID != "role-uuid" {
					t.Errorf("неожиданное тело назначения: %+v", roles)
				}
				w.WriteHeader(http.StatusNoContent)

			default:
				t.Errorf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		},
	)

	if err := client.AssignClientRole(context.Background(), "kc-1"); err != nil {
		t.Fatalf("Ошибка AssignClientRole: %v", err)
	}

	want := []string{"clients", "roles", "mapping"}
	if len(steps) != len(want) {
		t.Fatalf("ожидалось %d запросов, было %d: %v", len(want), len(steps), steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("шаг %d: ожидался %s, получен %s", i, want[i], steps[i])
		}
	}
}
