package user

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// currentUserKey 登录态在本地缓存里的键
const currentUserKey = "currentUser"

// Store 用户存储
type Store struct {
	col   *store.Collection[User]
	cache cache.Store
	log   *zap.Logger
}

// NewStore 创建用户存储
func NewStore(c cache.Store, client remote.Client, queue *store.Queue, log *zap.Logger) *Store {
	return &Store{
		col:   store.NewCollection(collectionConfig(), c, client, queue, log),
		cache: c,
		log:   log.With(zap.String("store", "user")),
	}
}

// Load 加载用户集合，空库时种入默认账号
// 首次部署没有任何用户时店里要能直接登录，默认密码留给管理员改
func (s *Store) Load(ctx context.Context) error {
	if err := s.col.Load(ctx); err != nil {
		return err
	}
	if s.col.Len() == 0 {
		s.seedDefaults(ctx)
	}
	return nil
}

func (s *Store) seedDefaults(ctx context.Context) {
	defaults := []struct {
		username, password, name, role string
	}{
		{"admin", "admin123", "系统管理员", RoleAdmin},
		{"manager", "manager123", "店长", RoleManager},
		{"staff", "staff123", "店员", RoleStaff},
	}
	for _, d := range defaults {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.DefaultCost)
		if err != nil {
			s.log.Error("生成默认账号密码失败", zap.Error(err))
			continue
		}
		u := User{
			Username:   d.username,
			Password:   string(hash),
			Name:       d.name,
			Role:       d.role,
			Status:     StatusActive,
			CreateTime: time.Now().UnixMilli(),
		}
		if _, _, err := s.col.Add(ctx, u); err != nil {
			s.log.Error("种入默认账号失败", zap.String("username", d.username), zap.Error(err))
		}
	}
	s.log.Info("已种入默认账号", zap.Int("count", len(defaults)))
}

// List 全部用户（不带密码哈希）
func (s *Store) List() []User {
	items := s.col.Items()
	out := make([]User, len(items))
	for i, u := range items {
		out[i] = u.Sanitized()
	}
	return out
}

// Get 按id取用户（不带密码哈希）
func (s *Store) Get(id string) (User, error) {
	u, ok := s.col.Get(id)
	if !ok {
		return User{}, apperrors.ErrUserNotFound
	}
	return u.Sanitized(), nil
}

func (s *Store) getByUsername(username string) (User, bool) {
	found := s.col.Find(func(u User) bool { return u.Username == username })
	if len(found) == 0 {
		return User{}, false
	}
	return found[0], true
}

// Authenticate 校验用户名密码
// 禁用账号即使密码正确也拒绝；成功后更新最近登录时间并写登录态
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, ok := s.getByUsername(username)
	if !ok {
		return User{}, apperrors.ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return User{}, apperrors.ErrInvalidPassword
	}
	if !u.Active() {
		return User{}, apperrors.ErrUserDisabled
	}

	updated, _, err := s.col.Update(ctx, u.ID, func(cur User) (User, error) {
		cur.LastLoginTime = time.Now().UnixMilli()
		return cur, nil
	})
	if err != nil {
		return User{}, err
	}
	s.setCurrentUser(updated)
	return updated.Sanitized(), nil
}

// Logout 清除登录态
func (s *Store) Logout() {
	s.cache.RemoveItem(currentUserKey)
}

// CurrentUser 本地缓存里的登录态
func (s *Store) CurrentUser() (User, bool) {
	raw, ok := s.cache.GetItem(currentUserKey)
	if !ok || raw == "" {
		return User{}, false
	}
	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return User{}, false
	}
	return u, true
}

func (s *Store) setCurrentUser(u User) {
	data, err := json.Marshal(u.Sanitized())
	if err != nil {
		return
	}
	s.cache.SetItem(currentUserKey, string(data))
}

// Add 新增用户，用户名在工作集内唯一
func (s *Store) Add(ctx context.Context, u User, plainPassword string) (User, dualwrite.Outcome, error) {
	if u.Username == "" {
		return User{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "用户名不能为空")
	}
	if _, exists := s.getByUsername(u.Username); exists {
		return User{}, 0, apperrors.New(apperrors.ErrCodeDuplicateEntry, "用户名已存在")
	}
	if u.Role == "" {
		u.Role = RoleStaff
	}
	if plainPassword == "" {
		plainPassword = "123456"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, 0, apperrors.Wrap(err, "密码加密失败")
	}
	u.Password = string(hash)
	u.Status = StatusActive
	if u.CreateTime == 0 {
		u.CreateTime = time.Now().UnixMilli()
	}

	added, outcome, err := s.col.Add(ctx, u)
	if err != nil {
		return User{}, outcome, err
	}
	return added.Sanitized(), outcome, nil
}

// Update 更新用户资料
// 管理员的角色不可被改掉，密码与状态有专门入口
func (s *Store) Update(ctx context.Context, id string, apply func(User) (User, error)) (User, dualwrite.Outcome, error) {
	u, outcome, err := s.col.Update(ctx, id, func(cur User) (User, error) {
		next, err := apply(cur)
		if err != nil {
			return cur, err
		}
		next.ID = cur.ID
		next.CreateTime = cur.CreateTime
		next.Password = cur.Password
		next.Status = cur.Status
		next.LastLoginTime = cur.LastLoginTime
		if cur.Role == RoleAdmin && next.Role != RoleAdmin {
			return cur, apperrors.New(apperrors.ErrCodeForbidden, "不能变更管理员的角色")
		}
		return next, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return User{}, 0, apperrors.ErrUserNotFound
		}
		return User{}, outcome, err
	}
	return u.Sanitized(), outcome, nil
}

// Delete 删除用户
// 管理员账号和自己都不可删
func (s *Store) Delete(ctx context.Context, id, operatorID string) (dualwrite.Outcome, error) {
	u, ok := s.col.Get(id)
	if !ok {
		return 0, apperrors.ErrUserNotFound
	}
	if u.Role == RoleAdmin {
		return 0, apperrors.New(apperrors.ErrCodeForbidden, "不能删除管理员账号")
	}
	if id == operatorID {
		return 0, apperrors.New(apperrors.ErrCodeForbidden, "不能删除自己的账号")
	}
	return s.col.Delete(ctx, id)
}

// ToggleStatus 启用/禁用
// 管理员账号不可禁用
func (s *Store) ToggleStatus(ctx context.Context, id string) (User, dualwrite.Outcome, error) {
	u, outcome, err := s.col.Update(ctx, id, func(cur User) (User, error) {
		if cur.Role == RoleAdmin {
			return cur, apperrors.New(apperrors.ErrCodeForbidden, "不能禁用管理员账号")
		}
		if cur.Status == StatusActive {
			cur.Status = StatusDisabled
		} else {
			cur.Status = StatusActive
		}
		return cur, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return User{}, 0, apperrors.ErrUserNotFound
		}
		return User{}, outcome, err
	}
	return u.Sanitized(), outcome, nil
}

// ChangePassword 本人修改密码，需要验证旧密码
func (s *Store) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return apperrors.New(apperrors.ErrCodeInvalidParams, "新密码至少6位")
	}
	_, _, err := s.col.Update(ctx, id, func(cur User) (User, error) {
		if err := bcrypt.CompareHashAndPassword([]byte(cur.Password), []byte(oldPassword)); err != nil {
			return cur, apperrors.New(apperrors.ErrCodeInvalidPassword, "原密码错误")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return cur, apperrors.Wrap(err, "密码加密失败")
		}
		cur.Password = string(hash)
		return cur, nil
	})
	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return apperrors.ErrUserNotFound
	}
	return err
}

// ResetPassword 管理员重置他人密码，不验证旧密码
func (s *Store) ResetPassword(ctx context.Context, id, newPassword string) error {
	if len(newPassword) < 6 {
		return apperrors.New(apperrors.ErrCodeInvalidParams, "新密码至少6位")
	}
	_, _, err := s.col.Update(ctx, id, func(cur User) (User, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return cur, apperrors.Wrap(err, "密码加密失败")
		}
		cur.Password = string(hash)
		return cur, nil
	})
	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		return apperrors.ErrUserNotFound
	}
	return err
}
