package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/shoepos/internal/domain/user"
	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/jwt"
	"github.com/xiebiao/shoepos/pkg/logger"
	"github.com/xiebiao/shoepos/pkg/response"
)

func newTestRouter(t *testing.T) (*gin.Engine, *user.Store, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	local := cache.NewMemoryStore()
	client := remote.NewMemory()
	log := logger.Nop()
	queue := store.NewQueue(local, client, log)
	users := user.NewStore(local, client, queue, log)
	require.NoError(t, users.Load(context.Background()))

	manager := jwt.NewManager("test-secret", time.Hour, 24*time.Hour)
	mw := NewAuthMiddleware(manager, users)

	r := gin.New()
	protected := r.Group("/api")
	protected.Use(mw.RequireAuth())
	protected.GET("/me", func(c *gin.Context) {
		response.Success(c, gin.H{"userId": GetUserID(c), "role": GetRole(c)})
	})
	protected.GET("/users", mw.RequirePermission(user.PermUserView), func(c *gin.Context) {
		response.Success(c, nil)
	})

	return r, users, manager
}

func tokenFor(t *testing.T, users *user.Store, manager *jwt.Manager, username, password string) string {
	t.Helper()
	u, err := users.Authenticate(context.Background(), username, password)
	require.NoError(t, err)
	pair, err := manager.GenerateToken(u.ID, u.Username, u.Name, u.Role)
	require.NoError(t, err)
	return pair.AccessToken
}

func doGet(r *gin.Engine, path, token string) response.Response {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func TestRequireAuth(t *testing.T) {
	r, users, manager := newTestRouter(t)

	t.Run("缺少Token", func(t *testing.T) {
		resp := doGet(r, "/api/me", "")
		require.Equal(t, apperrors.ErrCodeUnauthorized, resp.Code)
	})

	t.Run("Token格式错误", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Basic abc")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var resp response.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, apperrors.ErrCodeInvalidToken, resp.Code)
	})

	t.Run("有效Token放行并注入用户信息", func(t *testing.T) {
		token := tokenFor(t, users, manager, "admin", "admin123")
		resp := doGet(r, "/api/me", token)
		require.Equal(t, 0, resp.Code)
	})

	t.Run("已禁用账号的Token立即失效", func(t *testing.T) {
		token := tokenFor(t, users, manager, "staff", "staff123")

		var staffID string
		for _, u := range users.List() {
			if u.Username == "staff" {
				staffID = u.ID
			}
		}
		_, _, err := users.ToggleStatus(context.Background(), staffID)
		require.NoError(t, err)

		resp := doGet(r, "/api/me", token)
		require.Equal(t, apperrors.ErrCodeUserDisabled, resp.Code)
	})
}

func TestRequirePermission(t *testing.T) {
	r, users, manager := newTestRouter(t)

	t.Run("店员访问用户管理被拒", func(t *testing.T) {
		token := tokenFor(t, users, manager, "staff", "staff123")
		resp := doGet(r, "/api/users", token)
		require.Equal(t, apperrors.ErrCodeForbidden, resp.Code)
	})

	t.Run("老板访问用户管理放行", func(t *testing.T) {
		token := tokenFor(t, users, manager, "admin", "admin123")
		resp := doGet(r, "/api/users", token)
		require.Equal(t, 0, resp.Code)
	})
}
