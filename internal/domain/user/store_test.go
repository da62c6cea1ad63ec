package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mem := cache.NewMemoryStore()
	client := remote.NewMemory()
	queue := store.NewQueue(mem, client, zap.NewNop())
	s := NewStore(mem, client, queue, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestDefaultSeeding(t *testing.T) {
	s := newTestStore(t)

	users := s.List()
	require.Len(t, users, 3, "空库首次加载种入三个默认账号")

	roles := map[string]bool{}
	for _, u := range users {
		roles[u.Role] = true
		assert.Empty(t, u.Password, "列表不携带密码哈希")
	}
	assert.True(t, roles[RoleAdmin])
	assert.True(t, roles[RoleManager])
	assert.True(t, roles[RoleStaff])
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("默认管理员可登录", func(t *testing.T) {
		s := newTestStore(t)
		u, err := s.Authenticate(ctx, "admin", "admin123")
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, u.Role)
		assert.NotZero(t, u.LastLoginTime)
		assert.Empty(t, u.Password)

		cur, ok := s.CurrentUser()
		require.True(t, ok)
		assert.Equal(t, "admin", cur.Username)
	})

	t.Run("密码错误", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Authenticate(ctx, "admin", "wrong")
		assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)
	})

	t.Run("用户名不存在与密码错误不可区分", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Authenticate(ctx, "nobody", "admin123")
		assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)
	})

	t.Run("禁用账号拒绝登录", func(t *testing.T) {
		s := newTestStore(t)
		u, _, err := s.Add(ctx, User{Username: "xiaowang", Name: "小王"}, "abc12345")
		require.NoError(t, err)
		_, _, err = s.ToggleStatus(ctx, u.ID)
		require.NoError(t, err)

		_, err = s.Authenticate(ctx, "xiaowang", "abc12345")
		assert.ErrorIs(t, err, apperrors.ErrUserDisabled)
	})

	t.Run("登出清除登录态", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Authenticate(ctx, "admin", "admin123")
		require.NoError(t, err)
		s.Logout()
		_, ok := s.CurrentUser()
		assert.False(t, ok)
	})
}

func TestAddUser(t *testing.T) {
	ctx := context.Background()

	t.Run("用户名唯一", func(t *testing.T) {
		s := newTestStore(t)
		_, _, err := s.Add(ctx, User{Username: "admin"}, "x1234567")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDuplicateEntry))
	})

	t.Run("默认角色为店员且密码被哈希", func(t *testing.T) {
		s := newTestStore(t)
		u, _, err := s.Add(ctx, User{Username: "xiaoli", Name: "小李"}, "li123456")
		require.NoError(t, err)
		assert.Equal(t, RoleStaff, u.Role)

		// 能用明文密码登录，说明存的是哈希而不是明文比较失败
		got, err := s.Authenticate(ctx, "xiaoli", "li123456")
		require.NoError(t, err)
		assert.Equal(t, "小李", got.Name)
	})
}

func TestUserGuards(t *testing.T) {
	ctx := context.Background()

	adminID := func(s *Store) string {
		for _, u := range s.List() {
			if u.Role == RoleAdmin {
				return u.ID
			}
		}
		return ""
	}

	t.Run("管理员不可删除", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Delete(ctx, adminID(s), "someone-else")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("不能删除自己", func(t *testing.T) {
		s := newTestStore(t)
		u, _, err := s.Add(ctx, User{Username: "xiaozhang"}, "zh123456")
		require.NoError(t, err)
		_, err = s.Delete(ctx, u.ID, u.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("管理员不可禁用", func(t *testing.T) {
		s := newTestStore(t)
		_, _, err := s.ToggleStatus(ctx, adminID(s))
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})

	t.Run("管理员角色不可变更", func(t *testing.T) {
		s := newTestStore(t)
		_, _, err := s.Update(ctx, adminID(s), func(cur User) (User, error) {
			cur.Role = RoleStaff
			return cur, nil
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
	})
}

func TestPasswords(t *testing.T) {
	ctx := context.Background()

	t.Run("修改密码需验证旧密码", func(t *testing.T) {
		s := newTestStore(t)
		u, _, err := s.Add(ctx, User{Username: "xiaoliu"}, "old12345")
		require.NoError(t, err)

		err = s.ChangePassword(ctx, u.ID, "wrong", "new12345")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidPassword))

		require.NoError(t, s.ChangePassword(ctx, u.ID, "old12345", "new12345"))
		_, err = s.Authenticate(ctx, "xiaoliu", "new12345")
		assert.NoError(t, err)
	})

	t.Run("重置密码不验证旧密码", func(t *testing.T) {
		s := newTestStore(t)
		u, _, err := s.Add(ctx, User{Username: "xiaozhao"}, "old12345")
		require.NoError(t, err)

		require.NoError(t, s.ResetPassword(ctx, u.ID, "reset123"))
		_, err = s.Authenticate(ctx, "xiaozhao", "reset123")
		assert.NoError(t, err)
	})

	t.Run("过短的新密码被拒绝", func(t *testing.T) {
		s := newTestStore(t)
		u, _, err := s.Add(ctx, User{Username: "xiaosun"}, "old12345")
		require.NoError(t, err)
		assert.Error(t, s.ResetPassword(ctx, u.ID, "123"))
	})
}

func TestPermissions(t *testing.T) {
	t.Run("管理员拥有一切", func(t *testing.T) {
		assert.True(t, HasPermission(RoleAdmin, PermUserDelete))
		assert.True(t, HasPermission(RoleAdmin, PermDataClear))
	})

	t.Run("店长不能管用户", func(t *testing.T) {
		assert.True(t, HasPermission(RoleManager, PermSalesDelete))
		assert.True(t, HasPermission(RoleManager, PermStatsProfit))
		assert.False(t, HasPermission(RoleManager, PermUserAdd))
	})

	t.Run("店员只有日常权限", func(t *testing.T) {
		assert.True(t, HasPermission(RoleStaff, PermSalesAdd))
		assert.False(t, HasPermission(RoleStaff, PermSalesDelete))
		assert.False(t, HasPermission(RoleStaff, PermStatsProfit))
	})

	t.Run("未知角色一无所有", func(t *testing.T) {
		assert.False(t, HasPermission("ghost", PermSalesView))
	})
}
