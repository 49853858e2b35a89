package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/domain/query"
	"github.com/bigkaa/user-module/internal/keycloak"
	"github.com/bigkaa/user-module/internal/repository"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Фейк identity gateway ---

// fakeGateway записывает вызовы операций Keycloak.
type fakeGateway struct {
	createErr      error
	fetchErr       error
	assignErr      error
	emailErr       error
	deleteErr      error
	resetErr       error
	updateEmailErr error

	fetchResult []keycloak.User

	calls      []string
	deletedIDs []string
}

func (g *fakeGateway) CreateUser(_ context.Context, _ string, _ keycloak.CreateUserRequest) error {
	g.calls = append(g.calls, "CreateUser")
	return g.createErr
}

func (g *fakeGateway) FetchUserByEmail(_ context.Context, _, _ string) ([]keycloak.User, error) {
	g.calls = append(g.calls, "FetchUserByEmail")
	return g.fetchResult, g.fetchErr
}

func (g *fakeGateway) DeleteUser(_ context.Context, _, keycloakID string) error {
	g.calls = append(g.calls, "DeleteUser")
	g.deletedIDs = append(g.deletedIDs, keycloakID)
	return g.deleteErr
}

func (g *fakeGateway) SendPasswordResetEmail(_ context.Context, _ string) error {
	g.calls = append(g.calls, "SendPasswordResetEmail")
	return g.emailErr
}

func (g *fakeGateway) AssignClientRole(_ context.Context, _ string) error {
	g.calls = append(g.calls, "AssignClientRole")
	return g.assignErr
}

func (g *fakeGateway) ResetPassword(_ context.Context, _, _ string) error {
	g.calls = append(g.calls, "ResetPassword")
	return g.resetErr
}

func (g *fakeGateway) UpdateUserEmail(_ context.Context, _, _ string) error {
	g.calls = append(g.calls, "UpdateUserEmail")
	return g.updateEmailErr
}

// countCalls возвращает количество вызовов операции op.
func (g *fakeGateway) countCalls(op string) int {
	n := 0
	for _, c := range g.calls {
		if c == op {
			n++
		}
	}
	return n
}

// --- Фейк транзакций ---

// fakeTx выполняет fn без реальной транзакции.
type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

// --- Фейки репозиториев (WithTx возвращают себя) ---

type fakeUserRepo struct {
	createErr error
	store     map[uuid.UUID]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{store: map[uuid.UUID]*model.User{}}
}

func (r *fakeUserRepo) WithTx(_ repository.DBTX) repository.UserRepository { return r }

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.store[u.ID] = u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.store[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetKeycloakID(_ context.Context, id uuid.UUID) (string, error) {
	u, ok := r.store[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return u.KeycloakID, nil
}

func (r *fakeUserRepo) UpdateFields(_ context.Context, id uuid.UUID, upd model.UserUpdate) error {
	u, ok := r.store[id]
	if !ok {
		return repository.ErrNotFound
	}
	if upd.Status != nil {
		u.Status = *upd.Status
	}
	if upd.EmailVerified != nil {
		u.EmailVerified = *upd.EmailVerified
	}
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.store[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.store, id)
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, _ query.Pagination, _ []query.Group, _ []query.Order) ([]*model.User, int, error) {
	return nil, 0, nil
}

type fakeProfileRepo struct {
	createErr error
	store     map[uuid.UUID]*model.UserProfile // ключ — user_id
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{store: map[uuid.UUID]*model.UserProfile{}}
}

func (r *fakeProfileRepo) WithTx(_ repository.DBTX) repository.UserProfileRepository { return r }

func (r *fakeProfileRepo) Create(_ context.Context, p *model.UserProfile) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.store[p.UserID] = p
	return nil
}

func (r *fakeProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	p, ok := r.store[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *fakeProfileRepo) GetByEmail(_ context.Context, email string) (*model.UserProfile, error) {
	for _, p := range r.store {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeProfileRepo) UpdateFields(_ context.Context, userID uuid.UUID, _ model.ProfileUpdate) error {
	if _, ok := r.store[userID]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

type fakeRoleRepo struct {
	createErr error
	store     map[uuid.UUID]*model.Role // ключ — user_id
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{store: map[uuid.UUID]*model.Role{}}
}

func (r *fakeRoleRepo) WithTx(_ repository.DBTX) repository.RoleRepository { return r }

func (r *fakeRoleRepo) Create(_ context.Context, role *model.Role) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.store[role.UserID] = role
	return nil
}

func (r *fakeRoleRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Role, error) {
	role, ok := r.store[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return role, nil
}

func (r *fakeRoleRepo) UpdateNameByUserID(_ context.Context, userID uuid.UUID, name string, _ *uuid.UUID) error {
	role, ok := r.store[userID]
	if !ok {
		return repository.ErrNotFound
	}
	role.Name = name
	return nil
}

type fakeMasterRoleRepo struct {
	names []string
}

func (r *fakeMasterRoleRepo) Create(_ context.Context, _ *model.MasterRole) error { return nil }
func (r *fakeMasterRoleRepo) GetByID(_ context.Context, _ uuid.UUID) (*model.MasterRole, error) {
	return nil, repository.ErrNotFound
}
func (r *fakeMasterRoleRepo) List(_ context.Context) ([]*model.MasterRole, error) { return nil, nil }
func (r *fakeMasterRoleRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	for _, n := range r.names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
func (r *fakeMasterRoleRepo) Count(_ context.Context) (int, error) { return len(r.names), nil }
func (r *fakeMasterRoleRepo) UpdateName(_ context.Context, _ uuid.UUID, _ string, _ *uuid.UUID) error {
	return nil
}
func (r *fakeMasterRoleRepo) Delete(_ context.Context, _ uuid.UUID) error { return nil }

// --- Сборка сервиса ---

type fixture struct {
	svc      *UsersService
	gateway  *fakeGateway
	users    *fakeUserRepo
	profiles *fakeProfileRepo
	roles    *fakeRoleRepo
}

func newFixture() *fixture {
	gw := &fakeGateway{
		fetchResult: []keycloak.User{{ID: "kc-created", Email: "ivan@test.com"}},
	}
	users := newFakeUserRepo()
	profiles := newFakeProfileRepo()
	roles := newFakeRoleRepo()

	svc := NewUsersService(gw, fakeTx{}, users, profiles, roles, &fakeMasterRoleRepo{}, testLogger())
	return &fixture{svc: svc, gateway: gw, users: users, profiles: profiles, roles: roles}
}

func validInput() CreateUserInput {
	return CreateUserInput{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Email:     "ivan@test.com",
		Role:      "user",
		AuthType:  model.AuthTypeLocal,
	}
}

var admin = Caller{UserID: uuid.New(), IsAdmin: true}

// --- Тесты саги создания ---

func TestUsersService_Create_Success(t *testing.T) {
	f := newFixture()

	user, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	if user.KeycloakID != "kc-created" {
		t.Errorf("KeycloakID = %q, хотели kc-created", user.KeycloakID)
	}
	if user.Status != model.StatusActive {
		t.Errorf("Status = %q, хотели active", user.Status)
	}
	if _, ok := f.users.store[user.ID]; !ok {
		t.Error("пользователь не сохранён локально")
	}
	if _, ok := f.profiles.store[user.ID]; !ok {
		t.Error("профиль не сохранён")
	}
	if role, ok := f.roles.store[user.ID]; !ok || role.Name != "user" {
		t.Errorf("роль не сохранена: %+v", role)
	}

	// Созданный пользователь получает письмо установки пароля
	if n := f.gateway.countCalls("SendPasswordResetEmail"); n != 1 {
		t.Errorf("SendPasswordResetEmail вызван %d раз, хотели 1", n)
	}
	// Роль user не даёт клиентскую роль manage-users
	if n := f.gateway.countCalls("AssignClientRole"); n != 0 {
		t.Errorf("AssignClientRole вызван %d раз, хотели 0", n)
	}
	// Компенсация не выполнялась
	if n := f.gateway.countCalls("DeleteUser"); n != 0 {
		t.Errorf("DeleteUser вызван %d раз, хотели 0", n)
	}
}

func TestUsersService_Create_SuperAdminGetsClientRole(t *testing.T) {
	f := newFixture()

	in := validInput()
	in.Role = "super_admin"

	if _, err := f.svc.Create(context.Background(), "token", admin, in); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if n := f.gateway.countCalls("AssignClientRole"); n != 1 {
		t.Errorf("AssignClientRole вызван %d раз, хотели 1", n)
	}
}

func TestUsersService_Create_SSOUserAlsoGetsPasswordEmail(t *testing.T) {
	f := newFixture()

	in := validInput()
	in.AuthType = model.AuthTypeGoogle

	if _, err := f.svc.Create(context.Background(), "token", admin, in); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	// Письмо уходит независимо от способа аутентификации
	if n := f.gateway.countCalls("SendPasswordResetEmail"); n != 1 {
		t.Errorf("SendPasswordResetEmail вызван %d раз, хотели 1", n)
	}
}

func TestUsersService_Create_PasswordEmailFails_FullCompensation(t *testing.T) {
	f := newFixture()
	f.gateway.emailErr = errors.New("smtp не настроен")

	_, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("ожидался ErrOperationFailed, получено: %v", err)
	}
	if n := f.gateway.countCalls("DeleteUser"); n != 1 {
		t.Errorf("DeleteUser вызван %d раз, хотели 1", n)
	}
	if len(f.users.store) != 0 {
		t.Error("локальная запись осталась после компенсации")
	}
}

func TestUsersService_Create_InvalidRole(t *testing.T) {
	f := newFixture()

	in := validInput()
	in.Role = "president"

	_, err := f.svc.Create(context.Background(), "token", admin, in)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидался ErrValidation, получено: %v", err)
	}
	// До Keycloak дело не дошло
	if len(f.gateway.calls) != 0 {
		t.Errorf("ожидалось 0 вызовов gateway, было: %v", f.gateway.calls)
	}
}

func TestUsersService_Create_CatalogRoleAllowed(t *testing.T) {
	gw := &fakeGateway{fetchResult: []keycloak.User{{ID: "kc-1"}}}
	users := newFakeUserRepo()
	svc := NewUsersService(gw, fakeTx{}, users, newFakeProfileRepo(), newFakeRoleRepo(),
		&fakeMasterRoleRepo{names: []string{"auditor"}}, testLogger())

	in := validInput()
	in.Role = "auditor"

	if _, err := svc.Create(context.Background(), "token", admin, in); err != nil {
		t.Fatalf("Create() с ролью из справочника: %v", err)
	}
}

func TestUsersService_Create_RemoteFails_NoCompensation(t *testing.T) {
	f := newFixture()
	f.gateway.createErr = errors.New("keycloak недоступен")

	_, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("ожидался ErrOperationFailed, получено: %v", err)
	}

	// Удалённого состояния нет — компенсировать нечего
	if n := f.gateway.countCalls("DeleteUser"); n != 0 {
		t.Errorf("DeleteUser вызван %d раз, хотели 0", n)
	}
	if len(f.users.store) != 0 {
		t.Error("локальная запись создана при сбое Keycloak")
	}
}

func TestUsersService_Create_LocalFails_CompensatesOnce(t *testing.T) {
	f := newFixture()
	cause := errors.New("нет места на диске")
	f.users.createErr = cause

	_, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("ожидался ErrOperationFailed, получено: %v", err)
	}
	// Исходная причина сохранена в цепочке
	if !errors.Is(err, cause) {
		t.Errorf("исходная ошибка потеряна: %v", err)
	}

	// Компенсация — ровно одно удаление созданной учётной записи
	if n := f.gateway.countCalls("DeleteUser"); n != 1 {
		t.Fatalf("DeleteUser вызван %d раз, хотели 1", n)
	}
	if f.gateway.deletedIDs[0] != "kc-created" {
		t.Errorf("компенсация удалила %q, хотели kc-created", f.gateway.deletedIDs[0])
	}
	if len(f.users.store) != 0 {
		t.Error("локальная запись осталась после отката")
	}
}

func TestUsersService_Create_CompensationFailureKeepsOriginalError(t *testing.T) {
	f := newFixture()
	cause := errors.New("сбой транзакции")
	f.users.createErr = cause
	f.gateway.deleteErr = errors.New("удаление тоже не прошло")

	_, err := f.svc.Create(context.Background(), "token", admin, validInput())
	// Наружу уходит исходная ошибка, а не ошибка компенсации
	if !errors.Is(err, cause) {
		t.Fatalf("ожидалась исходная ошибка, получено: %v", err)
	}
}

func TestUsersService_Create_AssignRoleFails_FullCompensation(t *testing.T) {
	f := newFixture()
	f.gateway.assignErr = errors.New("нет прав manage-users")

	in := validInput()
	in.Role = "super_admin"

	_, err := f.svc.Create(context.Background(), "token", admin, in)
	if !errors.Is(err, ErrOperationFailed) {
		t.Fatalf("ожидался ErrOperationFailed, получено: %v", err)
	}

	if n := f.gateway.countCalls("DeleteUser"); n != 1 {
		t.Errorf("DeleteUser вызван %d раз, хотели 1", n)
	}
	if len(f.users.store) != 0 {
		t.Error("локальная запись осталась после компенсации")
	}
}

// --- Тесты обновления ---

func TestUsersService_Update_CrossUserForbidden(t *testing.T) {
	f := newFixture()

	caller := Caller{UserID: uuid.New(), IsAdmin: false}
	otherID := uuid.New()

	title := "CTO"
	_, err := f.svc.Update(context.Background(), caller, otherID, UpdateUserInput{
		Profile: model.ProfileUpdate{Title: &title},
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ожидался ErrForbidden, получено: %v", err)
	}
	// Отказ до каких-либо записей
	if len(f.gateway.calls) != 0 {
		t.Errorf("ожидалось 0 вызовов gateway, было: %v", f.gateway.calls)
	}
}

func TestUsersService_Update_NonAdminCannotChangeRole(t *testing.T) {
	f := newFixture()

	callerID := uuid.New()
	caller := Caller{UserID: callerID, IsAdmin: false}

	role := "admin"
	_, err := f.svc.Update(context.Background(), caller, callerID, UpdateUserInput{Role: &role})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ожидался ErrForbidden, получено: %v", err)
	}
}

func TestUsersService_Update_InvalidRoleRejected(t *testing.T) {
	f := newFixture()

	user, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	role := "president"
	_, err = f.svc.Update(context.Background(), admin, user.ID, UpdateUserInput{Role: &role})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидался ErrValidation, получено: %v", err)
	}
	// Роль не изменилась
	if got := f.roles.store[user.ID].Name; got != "user" {
		t.Errorf("роль = %q, хотели user", got)
	}
}

func TestUsersService_Update_CatalogRoleAllowed(t *testing.T) {
	gw := &fakeGateway{fetchResult: []keycloak.User{{ID: "kc-1", Email: "ivan@test.com"}}}
	users := newFakeUserRepo()
	roles := newFakeRoleRepo()
	svc := NewUsersService(gw, fakeTx{}, users, newFakeProfileRepo(), roles,
		&fakeMasterRoleRepo{names: []string{"auditor"}}, testLogger())

	user, err := svc.Create(context.Background(), "token", admin, validInput())
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Роль из справочника проходит и при обновлении
	role := "auditor"
	if _, err := svc.Update(context.Background(), admin, user.ID, UpdateUserInput{Role: &role}); err != nil {
		t.Fatalf("Update() с ролью из справочника: %v", err)
	}
	if got := roles.store[user.ID].Name; got != "auditor" {
		t.Errorf("роль = %q, хотели auditor", got)
	}
}

func TestUsersService_Update_NotFound(t *testing.T) {
	f := newFixture()

	title := "CTO"
	_, err := f.svc.Update(context.Background(), admin, uuid.New(), UpdateUserInput{
		Profile: model.ProfileUpdate{Title: &title},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидался ErrNotFound, получено: %v", err)
	}
}

// --- Тесты удаления ---

func TestUsersService_Delete_NotFound(t *testing.T) {
	f := newFixture()

	err := f.svc.Delete(context.Background(), "token", uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидался ErrNotFound, получено: %v", err)
	}
	if n := f.gateway.countCalls("DeleteUser"); n != 0 {
		t.Errorf("DeleteUser вызван %d раз, хотели 0", n)
	}
}

func TestUsersService_Delete_Success(t *testing.T) {
	f := newFixture()

	user, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	if err := f.svc.Delete(context.Background(), "token", user.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if len(f.users.store) != 0 {
		t.Error("локальная запись не удалена")
	}
	if f.gateway.deletedIDs[len(f.gateway.deletedIDs)-1] != "kc-created" {
		t.Error("учётная запись Keycloak не удалена")
	}
}

func TestUsersService_Delete_RemoteFailureStillSucceeds(t *testing.T) {
	f := newFixture()

	user, err := f.svc.Create(context.Background(), "token", admin, validInput())
	if err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Keycloak недоступен: локальное удаление уже прошло, операция успешна
	f.gateway.deleteErr = errors.New("keycloak недоступен")

	if err := f.svc.Delete(context.Background(), "token", user.ID); err != nil {
		t.Fatalf("Delete() при сбое Keycloak: %v", err)
	}
	if len(f.users.store) != 0 {
		t.Error("локальная запись не удалена")
	}
	// Попытка удалённого удаления была
	if n := f.gateway.countCalls("DeleteUser"); n != 1 {
		t.Errorf("DeleteUser вызван %d раз, хотели 1", n)
	}
}

// --- Тесты смены пароля ---

func TestUsersService_UpdatePassword_SelfOnly(t *testing.T) {
	f := newFixture()

	caller := Caller{UserID: uuid.New(), IsAdmin: false}
	err := f.svc.UpdatePassword(context.Background(), caller, uuid.New(), "correct-horse")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ожидался ErrForbidden, получено: %v", err)
	}
}

func TestUsersService_UpdatePassword_AdminCannotChangeOthers(t *testing.T) {
	f := newFixture()

	// Даже администратору чужой пароль недоступен
	err := f.svc.UpdatePassword(context.Background(), admin, uuid.New(), "correct-horse")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("ожидался ErrForbidden, получено: %v", err)
	}
	if n := f.gateway.countCalls("ResetPassword"); n != 0 {
		t.Errorf("ResetPassword вызван %d раз, хотели 0", n)
	}
}

func TestUsersService_UpdatePassword_TooShort(t *testing.T) {
	f := newFixture()

	callerID := uuid.New()
	caller := Caller{UserID: callerID, IsAdmin: false}
	err := f.svc.UpdatePassword(context.Background(), caller, callerID, "short")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидался ErrValidation, получено: %v", err)
	}
}

// --- Тесты AuthService ---

func TestAuthService_Login_BadCredentials(t *testing.T) {
	authSvc := NewAuthService(&failingAuthGateway{}, newFakeUserRepo(), newFakeProfileRepo(), testLogger())

	_, err := authSvc.Login(context.Background(), "ivan@test.com", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("ожидался ErrUnauthorized, получено: %v", err)
	}
}

func TestAuthService_SendUpdatePasswordEmail_AlreadyVerified(t *testing.T) {
	users := newFakeUserRepo()
	profiles := newFakeProfileRepo()

	userID := uuid.New()
	users.store[userID] = &model.User{ID: userID, KeycloakID: "kc-1", EmailVerified: true}
	profiles.store[userID] = &model.UserProfile{UserID: userID, Email: "ivan@test.com"}

	authSvc := NewAuthService(&failingAuthGateway{}, users, profiles, testLogger())

	err := authSvc.SendUpdatePasswordEmail(context.Background(), "ivan@test.com")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидался ErrValidation, получено: %v", err)
	}
}

func TestAuthService_SendUpdatePasswordEmail_UnknownEmail(t *testing.T) {
	authSvc := NewAuthService(&failingAuthGateway{}, newFakeUserRepo(), newFakeProfileRepo(), testLogger())

	err := authSvc.SendUpdatePasswordEmail(context.Background(), "nobody@test.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидался ErrNotFound, получено: %v", err)
	}
}

// failingAuthGateway — все операции аутентификации падают.
type failingAuthGateway struct{}

func (failingAuthGateway) Login(_ context.Context, _, _ string) (*keycloak.TokenPair, error) {
	return nil, errors.New("invalid_grant")
}
func (failingAuthGateway) RefreshTokens(_ context.Context, _ string) (*keycloak.TokenPair, error) {
	return nil, errors.New("invalid_grant")
}
func (failingAuthGateway) RevokeTokens(_ context.Context, _, _ string) error {
	return errors.New("сбой")
}
func (failingAuthGateway) SendPasswordResetEmail(_ context.Context, _ string) error {
	return errors.New("сбой")
}
