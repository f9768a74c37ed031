package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"myme/internal/account"
)

func newUserRouter(store *MockStore, dir *account.MemoryDirectory, callerID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewService(store, dir, "test-secret"))

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	protected := r.Group("/")
	protected.Use(func(c *gin.Context) {
		c.Set("user_id", callerID)
		c.Set("user_role", "user")
		c.Next()
	})
	protected.GET("/me", h.GetMe)
	protected.GET("/businesses", h.ListMyBusinesses)
	return r
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Register(t *testing.T) {
	store := new(MockStore)
	store.On("Exists", mock.Anything, "new@example.com", "911223344").Return(false, nil)
	store.On("Exists", mock.Anything, "taken@example.com", "911223344").Return(true, nil)
	store.On("Create", mock.Anything, mock.Anything).Return(nil)
	r := newUserRouter(store, account.NewMemoryDirectory(), uuid.New())

	w := post(r, "/auth/register", `{"name":"New","email":"new@example.com","phone_number":"0911223344","password":"password123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotContains(t, w.Body.String(), "password_hash")

	assert.Equal(t, http.StatusConflict, post(r, "/auth/register", `{"name":"New","email":"taken@example.com","phone_number":"0911223344","password":"password123"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/register", `{"name":"New","email":"new@example.com","phone_number":"555","password":"password123"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/register", `{"name":"New","email":"not-an-email","phone_number":"0911223344","password":"short"}`).Code)
}

func TestHandler_Login(t *testing.T) {
	store := new(MockStore)
	store.On("FindByPhone", mock.Anything, "911223344").Return(credentials(t, "password123", true), nil)
	r := newUserRouter(store, account.NewMemoryDirectory(), uuid.New())

	assert.Equal(t, http.StatusOK, post(r, "/auth/login", `{"phone_number":"0911223344","password":"password123"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/auth/login", `{"phone_number":"0911223344","password":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(r, "/auth/login", `{}`).Code)
}

func TestHandler_GetMe(t *testing.T) {
	dir := account.NewMemoryDirectory()
	u := dir.AddUser("Liya", "liya@example.com", "0944556677")

	w := httptest.NewRecorder()
	newUserRouter(new(MockStore), dir, u.ID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Liya")

	w = httptest.NewRecorder()
	newUserRouter(new(MockStore), dir, uuid.New()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
