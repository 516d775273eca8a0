package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"tasktracker/internal/auth"
	dom "tasktracker/internal/domain"
	"tasktracker/internal/repo"
	"tasktracker/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// In-memory repos mirroring the Postgres owner-scope contract.

type memUserRepo struct {
	nextID int64
	users  map[string]dom.User
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (dom.User, error) {
	u, ok := r.users[username]
	if !ok {
		return dom.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (r *memUserRepo) Create(_ context.Context, username, passwordHash string, role dom.Role) (dom.User, error) {
	u := dom.User{ID: r.nextID, Username: username, PasswordHash: passwordHash, Role: role, IsActive: true}
	r.nextID++
	r.users[username] = u
	return u, nil
}

type memTaskRepo struct {
	nextID int64
	tasks  map[int64]dom.Task
}

func (r *memTaskRepo) Create(_ context.Context, t dom.Task) (dom.Task, error) {
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now().UTC()
	r.tasks[t.ID] = t
	return t, nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id int64, ownerScope *int64) (dom.Task, error) {
	t, ok := r.tasks[id]
	if !ok || (ownerScope != nil && t.OwnerID != *ownerScope) {
		return dom.Task{}, pgx.ErrNoRows
	}
	return t, nil
}

func (r *memTaskRepo) List(_ context.Context, f repo.ListFilter) ([]dom.Task, error) {
	var out []dom.Task
	for id := int64(1); id < r.nextID; id++ {
		t, ok := r.tasks[id]
		if !ok {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.OwnerID != nil && t.OwnerID != *f.OwnerID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *memTaskRepo) Update(_ context.Context, id int64, ownerScope *int64, patch dom.Task) (dom.Task, error) {
	t, ok := r.tasks[id]
	if !ok || (ownerScope != nil && t.OwnerID != *ownerScope) {
		return dom.Task{}, pgx.ErrNoRows
	}
	t.Title = patch.Title
	t.Description = patch.Description
	t.Status = patch.Status
	r.tasks[id] = t
	return t, nil
}

func (r *memTaskRepo) Delete(_ context.Context, id int64) (bool, error) {
	if _, ok := r.tasks[id]; !ok {
		return false, nil
	}
	delete(r.tasks, id)
	return true, nil
}

// memRevocations is an in-memory auth.RevocationStore.
type memRevocations struct {
	revoked map[string]bool
}

func (r *memRevocations) Revoke(_ context.Context, jti string, _ time.Time) error {
	r.revoked[jti] = true
	return nil
}

func (r *memRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return r.revoked[jti], nil
}

type testEnv struct {
	router  *gin.Engine
	tokens  *auth.JWTService
	users   *memUserRepo
	tasks   *memTaskRepo
	revoked *memRevocations
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &memUserRepo{nextID: 1, users: map[string]dom.User{}}
	tasks := &memTaskRepo{nextID: 1, tasks: map[int64]dom.Task{}}
	revoked := &memRevocations{revoked: map[string]bool{}}
	tokens := auth.NewJWTService("test-secret", 30*time.Minute)

	userSvc := service.NewUserService(users)
	taskSvc := service.NewTaskService(tasks)
	authHandler := NewAuthHandler(tokens, revoked, userSvc)
	taskHandler := NewTaskHandler(taskSvc)

	r := gin.New()
	r.POST("/register", authHandler.Register)
	r.POST("/token", authHandler.Token)
	protected := r.Group("", auth.RequireAuth(tokens, users, revoked))
	protected.POST("/logout", authHandler.Logout)
	protected.POST("/tasks", taskHandler.Create)
	protected.GET("/tasks", taskHandler.List)
	protected.GET("/tasks/:id", taskHandler.GetByID)
	protected.PUT("/tasks/:id", taskHandler.Update)
	protected.DELETE("/tasks/:id", taskHandler.Delete)

	return &testEnv{router: r, tokens: tokens, users: users, tasks: tasks, revoked: revoked}
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// seedUser registers through the service path so the stored hash is real.
func (e *testEnv) seedUser(t *testing.T, username string, role dom.Role) string {
	t.Helper()
	_, err := service.NewUserService(e.users).Register(context.Background(), username, "pw-"+username)
	require.NoError(t, err)
	if role == dom.RoleAdmin {
		u := e.users.users[username]
		u.Role = dom.RoleAdmin
		e.users.users[username] = u
	}
	token, err := e.tokens.Issue(username)
	require.NoError(t, err)
	return token
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/register", "", `{"username":"alice","password":"pw1"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
		IsActive bool   `json:"is_active"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.Username)
	require.Equal(t, "user", resp.Role)
	require.True(t, resp.IsActive)
}

func TestTokenEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", dom.RoleUser)

	form := url.Values{"username": {"alice"}, "password": {"pw-alice"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)

	// the minted token works against a protected route
	w = env.do(t, http.MethodGet, "/tasks", resp.AccessToken, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTokenEndpoint_BadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", dom.RoleUser)

	form := url.Values{"username": {"alice"}, "password": {"nope"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/tasks", "/tasks/1"} {
		w := env.do(t, http.MethodGet, path, "", "")
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := env.do(t, http.MethodGet, "/tasks", "garbage-token", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExpiredTokenIsUnauthenticatedNotNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", dom.RoleUser)

	expired := auth.NewJWTService("test-secret", -time.Minute)
	token, err := expired.Issue("alice")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/tasks/1", token, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "alice", dom.RoleUser)

	// token works before logout
	w := env.do(t, http.MethodGet, "/tasks", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/logout", token, "")
	require.Equal(t, http.StatusNoContent, w.Code)

	// the denylisted jti is rejected everywhere afterwards
	w = env.do(t, http.MethodGet, "/tasks", token, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = env.do(t, http.MethodPost, "/logout", token, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// a freshly issued token for the same user is unaffected
	fresh, err := env.tokens.Issue("alice")
	require.NoError(t, err)
	w = env.do(t, http.MethodGet, "/tasks", fresh, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestInactiveUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedUser(t, "alice", dom.RoleUser)

	u := env.users.users["alice"]
	u.IsActive = false
	env.users.users["alice"] = u

	w := env.do(t, http.MethodGet, "/tasks", token, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateIgnoresClientSuppliedOwner(t *testing.T) {
	env := newTestEnv(t)
	aliceTok := env.seedUser(t, "alice", dom.RoleUser)
	env.seedUser(t, "bob", dom.RoleUser)

	// owner_id in the body is not part of the contract and is dropped
	w := env.do(t, http.MethodPost, "/tasks", aliceTok, `{"title":"Buy milk","owner_id":2}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		OwnerID int64  `json:"owner_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, int64(1), resp.OwnerID)
	require.Equal(t, "new", resp.Status)
}

func TestForeignAndMissingTasksLookTheSame(t *testing.T) {
	env := newTestEnv(t)
	aliceTok := env.seedUser(t, "alice", dom.RoleUser)
	bobTok := env.seedUser(t, "bob", dom.RoleUser)

	w := env.do(t, http.MethodPost, "/tasks", aliceTok, `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	foreign := env.do(t, http.MethodGet, "/tasks/1", bobTok, "")
	missing := env.do(t, http.MethodGet, "/tasks/9999", bobTok, "")

	require.Equal(t, http.StatusNotFound, foreign.Code)
	require.Equal(t, http.StatusNotFound, missing.Code)
	require.Equal(t, missing.Body.String(), foreign.Body.String())
}

func TestPartialUpdateViaHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceTok := env.seedUser(t, "alice", dom.RoleUser)

	w := env.do(t, http.MethodPost, "/tasks", aliceTok, `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPut, "/tasks/1", aliceTok, `{"status":"in progress"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Buy milk", resp.Title)
	require.Equal(t, "in progress", resp.Status)

	w = env.do(t, http.MethodPut, "/tasks/1", aliceTok, `{"status":"started"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	env := newTestEnv(t)
	aliceTok := env.seedUser(t, "alice", dom.RoleUser)
	adminTok := env.seedUser(t, "admin", dom.RoleAdmin)

	w := env.do(t, http.MethodPost, "/tasks", aliceTok, `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	// non-admin: forbidden even for an own task, and the row survives
	w = env.do(t, http.MethodDelete, "/tasks/1", aliceTok, "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, env.tasks.tasks, int64(1))

	w = env.do(t, http.MethodDelete, "/tasks/1", adminTok, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodDelete, "/tasks/1", adminTok, "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFiltersViaHTTP(t *testing.T) {
	env := newTestEnv(t)
	aliceTok := env.seedUser(t, "alice", dom.RoleUser)
	bobTok := env.seedUser(t, "bob", dom.RoleUser)
	adminTok := env.seedUser(t, "admin", dom.RoleAdmin)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/tasks", aliceTok, `{"title":"Buy milk"}`).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/tasks", bobTok, `{"title":"Walk dog","status":"done"}`).Code)

	type listResp struct {
		Items []struct {
			OwnerID int64  `json:"owner_id"`
			Status  string `json:"status"`
		} `json:"items"`
	}

	// bob requesting alice's tasks gets only his own
	var lr listResp
	w := env.do(t, http.MethodGet, "/tasks?owner_id=1", bobTok, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	require.Len(t, lr.Items, 1)
	require.Equal(t, int64(2), lr.Items[0].OwnerID)

	// admin sees both, and may filter by status
	lr = listResp{}
	w = env.do(t, http.MethodGet, "/tasks", adminTok, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	require.Len(t, lr.Items, 2)

	lr = listResp{}
	w = env.do(t, http.MethodGet, "/tasks?status=done", adminTok, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lr))
	require.Len(t, lr.Items, 1)
	require.Equal(t, "done", lr.Items[0].Status)
}
