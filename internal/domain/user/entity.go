// Package user 用户账号与登录
package user

import (
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
)

// 角色
const (
	RoleAdmin   = "admin"   // 管理员，全部权限
	RoleManager = "manager" // 店长，不能管理用户
	RoleStaff   = "staff"   // 店员，基本销售权限
)

// RoleName 角色中文名
func RoleName(role string) string {
	switch role {
	case RoleAdmin:
		return "管理员"
	case RoleManager:
		return "店长"
	case RoleStaff:
		return "店员"
	default:
		return role
	}
}

// 账号状态
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User 用户
// Password保存bcrypt哈希，任何出口（JSON响应、日志）都不应携带
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Password      string `json:"password,omitempty"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	Phone         string `json:"phone"`
	Status        string `json:"status"`
	CreateTime    int64  `json:"createTime"`
	LastLoginTime int64  `json:"lastLoginTime"`
}

// Sanitized 去掉密码哈希的副本，响应序列化用
func (u User) Sanitized() User {
	u.Password = ""
	return u
}

// Active 账号是否可登录
func (u User) Active() bool {
	return u.Status == StatusActive
}

func toRow(u User) remote.Row {
	return remote.Row{
		"id":              u.ID,
		"username":        u.Username,
		"password":        u.Password,
		"name":            u.Name,
		"role":            u.Role,
		"phone":           u.Phone,
		"status":          u.Status,
		"create_time":     u.CreateTime,
		"last_login_time": u.LastLoginTime,
	}
}

func fromRow(r remote.Row) User {
	u := User{
		ID:            remote.Str(r, "id"),
		Username:      remote.Str(r, "username"),
		Password:      remote.Str(r, "password"),
		Name:          remote.Str(r, "name"),
		Role:          remote.Str(r, "role"),
		Phone:         remote.Str(r, "phone"),
		Status:        remote.Str(r, "status"),
		LastLoginTime: int64(remote.Float(r, "last_login_time", 0)),
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	if v := int64(remote.Float(r, "create_time", 0)); v > 0 {
		u.CreateTime = v
	} else {
		u.CreateTime = remote.Millis(r, "created_at")
	}
	return u
}

// collectionConfig 合并策略：最近登录时间、密码哈希、状态都以本地
// 为准（它们只会在本机被改动）
func collectionConfig() store.Config[User] {
	return store.Config[User]{
		Name:      "users",
		Table:     "users",
		IDOf:      func(u User) string { return u.ID },
		WithID:    func(u User, id string) User { u.ID = id; return u },
		CreatedAt: func(u User) int64 { return u.CreateTime },
		ToRow:     toRow,
		FromRow:   fromRow,
		PreferLocal: func(local, rm User) bool {
			return local.LastLoginTime != rm.LastLoginTime ||
				local.Password != rm.Password ||
				local.Status != rm.Status
		},
	}
}
