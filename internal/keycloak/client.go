// client.go — HTTP-клиент к Keycloak: Admin REST API и OIDC endpoints.
// Операции: CreateUser, FetchUserByEmail/ByID, Login (ROPC), Userinfo,
// RefreshTokens, RevokeTokens, SendPasswordResetEmail, ResetPassword,
// UpdateUserEmail, DeleteUser, AssignRealmRole, AssignClientRole.
// Административные операции используют кэшированный admin-токен
// (ROPC по учётным данным администратора, обновление за 30s до expiration).
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// managementClient — клиент Keycloak, владеющий ролью manage-users.
	managementClient = "realm-management"
	// manageUsersRole — клиентская роль, выдаваемая super_admin.
	manageUsersRole = "manage-users"
	// passwordMailLifespan — срок действия ссылки из письма смены пароля (12h).
	passwordMailLifespan = 43200
)

// SessionError — ошибка проверки сессии (userinfo вернул не-2xx).
// Middleware авторизации транслирует её в ответ с кодом провайдера.
type SessionError struct {
	StatusCode int
	Message    string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("сессия недействительна (статус %d): %s", e.StatusCode, e.Message)
}

// Client — HTTP-клиент к Keycloak.
type Client struct {
	baseURL  string // Базовый URL Keycloak (без trailing slash)
	realm    string // Имя realm
	clientID string // Client ID (public client, ROPC)

	adminUser     string // Учётные данные администратора realm'а
	adminPassword string

	httpClient *http.Client
	logger     *slog.Logger

	// Кэш admin-токена
	mu          sync.Mutex
	adminToken  string
	tokenExpiry time.Time
}

// New создаёт клиент к Keycloak.
// baseURL — базовый URL Keycloak, realm — имя realm.
// clientID — public client для ROPC-логина.
// adminUser, adminPassword — учётные данные администратора
// для привилегированных операций (reset-password, смена email,
// назначение клиентских ролей).
// httpClient — HTTP-клиент (может содержать TLS конфигурацию).
func New(baseURL, realm, clientID, adminUser, adminPassword string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		realm:         realm,
		clientID:      clientID,
		adminUser:     adminUser,
		adminPassword: adminPassword,
		httpClient:    httpClient,
		logger:        logger.With(slog.String("component", "keycloak_client")),
	}
}

// --- Endpoints ---

// tokenEndpoint возвращает URL OIDC token endpoint.
func (c *Client) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

// userinfoEndpoint возвращает URL OIDC userinfo endpoint.
func (c *Client) userinfoEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.baseURL, c.realm)
}

// logoutEndpoint возвращает URL OIDC logout endpoint.
func (c *Client) logoutEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/logout", c.baseURL, c.realm)
}

// adminBaseURL возвращает базовый URL Admin REST API для realm.
func (c *Client) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, c.realm)
}

// --- Token операции ---

// Login выполняет Resource Owner Password Credentials grant.
// Возвращает access/refresh токены пользователя.
func (c *Client) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	data := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.clientID},
		"username":   {username},
		"password":   {password},
	}
	return c.requestToken(ctx, "Login", data)
}

// RefreshTokens обменивает refresh token на новую пару токенов.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}
	return c.requestToken(ctx, "RefreshTokens", data)
}

// requestToken выполняет запрос к token endpoint с form-encoded телом.
func (c *Client) requestToken(ctx context.Context, op string, data url.Values) (*TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: запрос токена: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(op, resp)
	}

	var tokens TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("%s: декодирование ответа: %w", op, err)
	}
	return &tokens, nil
}

// RevokeTokens завершает сессию: отзывает refresh token через logout endpoint.
func (c *Client) RevokeTokens(ctx context.Context, bearerToken, refreshToken string) error {
	data := url.Values{
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.logoutEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("RevokeTokens: создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("RevokeTokens: запрос: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError("RevokeTokens", resp)
	}
	return nil
}

// Userinfo возвращает identity claims вызывающего по его bearer-токену.
// Не-2xx ответ провайдера — *SessionError (сессия истекла или токен отозван).
func (c *Client) Userinfo(ctx context.Context, bearerToken string) (*Userinfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoEndpoint(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("Userinfo: создание запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Userinfo: запрос: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		msg := errorMessage(body)
		if msg == "" {
			msg = "сессия истекла"
		}
		return nil, &SessionError{StatusCode: resp.StatusCode, Message: msg}
	}

	var info Userinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("Userinfo: декодирование ответа: %w", err)
	}
	return &info, nil
}

// --- Admin token (кэш) ---

// getAdminToken возвращает актуальный admin-токен, обновляя при необходимости.
// Токен обновляется за 30 секунд до истечения; mutex исключает
// параллельные повторные логины.
func (c *Client) getAdminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.adminToken != "" && time.Now().Add(30*time.Second).Before(c.tokenExpiry) {
		return c.adminToken, nil
	}

	tokens, err := c.Login(ctx, c.adminUser, c.adminPassword)
	if err != nil {
		return "", fmt.Errorf("логин администратора: %w", err)
	}

	c.adminToken = tokens.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)

	c.logger.Debug("Admin-токен Keycloak обновлён",
		slog.Time("expires_at", c.tokenExpiry),
	)

	return c.adminToken, nil
}

// --- HTTP helpers ---

// doAuthorized выполняет HTTP-запрос к Admin REST API с указанным токеном.
func (c *Client) doAuthorized(ctx context.Context, token, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.adminBaseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// decodeResponse декодирует JSON ответ в target.
func decodeResponse(op string, resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(op, resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("%s: декодирование ответа: %w", op, err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(op string, resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiError(op, resp)
	}
	return nil
}

// apiError строит ошибку из не-2xx ответа, сохраняя сообщение провайдера.
func apiError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("%s: Keycloak вернул статус %d: %s", op, resp.StatusCode, msg)
}

// errorMessage извлекает машинное сообщение из тела ошибки Keycloak.
func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		if msg := er.message(); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(string(body))
}

// --- Users API ---

// CreateUser создаёт учётную запись в Keycloak.
// Локальный id и имена ролей записываются в атрибуты; email не подтверждён,
// учётная запись включена. Keycloak не возвращает id созданного пользователя
// в теле — вызывающий резолвит его через FetchUserByEmail.
func (c *Client) CreateUser(ctx context.Context, token string, req CreateUserRequest) error {
	enabled := true
	verified := false
	body := userRepresentation{
		Username:        req.Email,
		Email:           req.Email,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Enabled:         &enabled,
		EmailVerified:   &verified,
		RequiredActions: []string{},
		Groups:          []string{},
		Attributes: map[string][]string{
			"userId": {req.LocalUserID},
			"roles":  {strings.Join(req.Roles, ", ")},
		},
	}

	resp, err := c.doAuthorized(ctx, token, http.MethodPost, "/users", body)
	if err != nil {
		return fmt.Errorf("CreateUser: %w", err)
	}
	return checkResponse("CreateUser", resp)
}

// FetchUserByEmail ищет пользователей по email (точное совпадение username).
// Пустой результат — не ошибка; вызывающий проверяет его сам.
func (c *Client) FetchUserByEmail(ctx context.Context, token, email string) ([]User, error) {
	path := "/users?username=" + url.QueryEscape(email)

	resp, err := c.doAuthorized(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("FetchUserByEmail: %w", err)
	}

	var users []User
	if err := decodeResponse("FetchUserByEmail", resp, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FetchUserByID возвращает пользователя по Keycloak ID.
func (c *Client) FetchUserByID(ctx context.Context, token, keycloakID string) (*User, error) {
	resp, err := c.doAuthorized(ctx, token, http.MethodGet, "/users/"+keycloakID, nil)
	if err != nil {
		return nil, fmt.Errorf("FetchUserByID: %w", err)
	}

	var user User
	if err := decodeResponse("FetchUserByID", resp, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser удаляет учётную запись в Keycloak.
func (c *Client) DeleteUser(ctx context.Context, token, keycloakID string) error {
	resp, err := c.doAuthorized(ctx, token, http.MethodDelete, "/users/"+keycloakID, nil)
	if err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	return checkResponse("DeleteUser", resp)
}

// SendPasswordResetEmail инициирует письмо со ссылкой установки пароля
// (required action UPDATE_PASSWORD, срок действия 12 часов).
// Привилегированная операция: использует кэшированный admin-токен,
// что позволяет вызывать её и из саги создания, и из публичного
// сценария восстановления пароля.
func (c *Client) SendPasswordResetEmail(ctx context.Context, keycloakID string) error {
	token, err := c.getAdminToken(ctx)
	if err != nil {
		return fmt.Errorf("SendPasswordResetEmail: %w", err)
	}

	path := fmt.Sprintf("/users/%s/execute-actions-email?lifespan=%d", keycloakID, passwordMailLifespan)

	resp, err := c.doAuthorized(ctx, token, http.MethodPut, path, []string{"UPDATE_PASSWORD"})
	if err != nil {
		return fmt.Errorf("SendPasswordResetEmail: %w", err)
	}
	return checkResponse("SendPasswordResetEmail", resp)
}

// ResetPassword устанавливает новый пароль пользователя.
// Привилегированная операция: использует кэшированный admin-токен.
func (c *Client) ResetPassword(ctx context.Context, keycloakID, newPassword string) error {
	token, err := c.getAdminToken(ctx)
	if err != nil {
		return fmt.Errorf("ResetPassword: %w", err)
	}

	body := credentialRepresentation{
		Type:      "password",
		Value:     newPassword,
		Temporary: false,
	}

	resp, err := c.doAuthorized(ctx, token, http.MethodPut, "/users/"+keycloakID+"/reset-password", body)
	if err != nil {
		return fmt.Errorf("ResetPassword: %w", err)
	}
	return checkResponse("ResetPassword", resp)
}

// UpdateUserEmail меняет email (и username) учётной записи.
// Привилегированная операция: использует кэшированный admin-токен.
func (c *Client) UpdateUserEmail(ctx context.Context, keycloakID, email string) error {
	token, err := c.getAdminToken(ctx)
	if err != nil {
		return fmt.Errorf("UpdateUserEmail: %w", err)
	}

	body := userRepresentation{
		Username: email,
		Email:    email,
	}

	resp, err := c.doAuthorized(ctx, token, http.MethodPut, "/users/"+keycloakID, body)
	if err != nil {
		return fmt.Errorf("UpdateUserEmail: %w", err)
	}
	return checkResponse("UpdateUserEmail", resp)
}

// --- Roles API ---

// AssignRealmRole назначает пользователю роль realm'а.
// Сначала резолвит id роли по имени, затем выполняет назначение.
func (c *Client) AssignRealmRole(ctx context.Context, token, keycloakID, roleName string) error {
	role, err := c.fetchRealmRole(ctx, token, roleName)
	if err != nil {
		return fmt.Errorf("AssignRealmRole: %w", err)
	}

	body := []roleRepresentation{{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Name,
		Composite:   false,
		ClientRole:  false,
		ContainerID: c.realm,
	}}

	resp, err := c.doAuthorized(ctx, token, http.MethodPut, "/users/"+keycloakID+"/role-mappings/realm", body)
	if err != nil {
		return fmt.Errorf("AssignRealmRole: %w", err)
	}
	return checkResponse("AssignRealmRole", resp)
}

// fetchRealmRole резолвит роль realm'а по имени.
func (c *Client) fetchRealmRole(ctx context.Context, token, roleName string) (*roleRepresentation, error) {
	path := "/roles?search=" + url.QueryEscape(roleName)

	resp, err := c.doAuthorized(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var roles []roleRepresentation
	if err := decodeResponse("fetchRealmRole", resp, &roles); err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].Name == roleName {
			return &roles[i], nil
		}
	}
	return nil, fmt.Errorf("роль %s не найдена в realm %s", roleName, c.realm)
}

// AssignClientRole выдаёт пользователю клиентскую роль manage-users
// клиента realm-management (повышенные права super_admin на стороне
// провайдера). Привилегированная операция: admin-токен, затем три
// последовательных запроса — резолв client id, резолв role id, назначение.
func (c *Client) AssignClientRole(ctx context.Context, keycloakID string) error {
	token, err := c.getAdminToken(ctx)
	if err != nil {
		return fmt.Errorf("AssignClientRole: %w", err)
	}

	client, err := c.fetchClient(ctx, token, managementClient)
	if err != nil {
		return fmt.Errorf("AssignClientRole: %w", err)
	}

	role, err := c.fetchClientRole(ctx, token, client.ID, manageUsersRole)
	if err != nil {
		return fmt.Errorf("AssignClientRole: %w", err)
	}

	body := []roleRepresentation{{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Name,
	}}

	path := fmt.Sprintf("/users/%s/role-mappings/clients/%s", keycloakID, client.ID)
	resp, err := c.doAuthorized(ctx, token, http.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("AssignClientRole: %w", err)
	}
	return checkResponse("AssignClientRole", resp)
}

// fetchClient резолвит клиента по clientId.
func (c *Client) fetchClient(ctx context.Context, token, clientID string) (*clientRepresentation, error) {
	path := "/clients?clientId=" + url.QueryEscape(clientID)

	resp, err := c.doAuthorized(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var clients []clientRepresentation
	if err := decodeResponse("fetchClient", resp, &clients); err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("клиент %s не найден", clientID)
	}
	return &clients[0], nil
}

// fetchClientRole резолвит клиентскую роль по имени.
func (c *Client) fetchClientRole(ctx context.Context, token, clientInternalID, roleName string) (*roleRepresentation, error) {
	path := fmt.Sprintf("/clients/%s/roles?search=%s", clientInternalID, url.QueryEscape(roleName))

	resp, err := c.doAuthorized(ctx, token, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var roles []roleRepresentation
	if err := decodeResponse("fetchClientRole", resp, &roles); err != nil {
		return nil, err
	}
	for i := range roles {
		if roles[i].Name == roleName {
			return &roles[i], nil
		}
	}
	return nil, fmt.Errorf("клиентская роль %s не найдена у клиента %s", roleName, clientInternalID)
}

// --- Readiness checker ---

// CheckReady проверяет доступность Keycloak через OIDC discovery endpoint.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wellKnown := fmt.Sprintf("%s/realms/%s/.well-known/openid-configuration", c.baseURL, c.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("Keycloak вернул статус %d", resp.StatusCode)
	}
	return "ok", fmt.Sprintf("realm %s доступен", c.realm)
}
