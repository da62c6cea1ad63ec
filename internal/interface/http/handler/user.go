package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/oplog"
	"github.com/xiebiao/shoepos/internal/domain/user"
	"github.com/xiebiao/shoepos/internal/interface/http/dto"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/jwt"
	"github.com/xiebiao/shoepos/pkg/response"
)

// UserHandler 用户与登录HTTP处理器
type UserHandler struct {
	users      *user.Store
	jwtManager *jwt.Manager
	logs       *oplog.Store
}

// NewUserHandler 创建用户处理器
func NewUserHandler(users *user.Store, jwtManager *jwt.Manager, logs *oplog.Store) *UserHandler {
	return &UserHandler{users: users, jwtManager: jwtManager, logs: logs}
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	tokens, err := h.jwtManager.GenerateToken(u.ID, u.Username, u.Name, u.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(oplog.Operator{UserID: u.ID, Username: u.Username}, oplog.Entry{
		OperationType: oplog.OpLogin,
		TargetType:    "user",
		TargetID:      u.ID,
		TargetName:    u.Name,
		Details:       u.Username + " 登录",
	})

	response.Success(c, gin.H{
		"user":        u.Sanitized(),
		"tokens":      tokens,
		"permissions": user.Permissions(u.Role),
	})
}

// Logout 登出
// POST /api/v1/auth/logout
func (h *UserHandler) Logout(c *gin.Context) {
	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpLogout,
		TargetType:    "user",
		TargetID:      middleware.GetUserID(c),
		Details:       middleware.GetUsername(c) + " 登出",
	})

	h.users.Logout()
	response.Success(c, nil)
}

// RefreshToken 用Refresh Token换取新的Access Token
// POST /api/v1/auth/refresh
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"accessToken": accessToken})
}

// Profile 当前登录用户信息
// GET /api/v1/auth/profile
func (h *UserHandler) Profile(c *gin.Context) {
	u, err := h.users.Get(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"user":        u.Sanitized(),
		"permissions": user.Permissions(u.Role),
	})
}

// ChangePassword 修改自己的密码
// POST /api/v1/auth/change-password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), middleware.GetUserID(c), req.OldPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}

// List 员工账号列表
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	response.Success(c, h.users.List())
}

// Create 新增员工账号
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	u, outcome, err := h.users.Add(c.Request.Context(), user.User{
		Username: req.Username,
		Name:     req.Name,
		Role:     req.Role,
		Phone:    req.Phone,
	}, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpAdd,
		TargetType:    "user",
		TargetID:      u.ID,
		TargetName:    u.Name,
		Details:       "新增账号 " + u.Username + "（" + user.RoleName(u.Role) + "）",
	})

	response.SuccessSynced(c, u.Sanitized(), outcome.Synced())
}

// Update 编辑员工账号
// PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	u, outcome, err := h.users.Update(c.Request.Context(), c.Param("id"), func(cur user.User) (user.User, error) {
		cur.Name = req.Name
		if req.Role != "" {
			cur.Role = req.Role
		}
		cur.Phone = req.Phone
		return cur, nil
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "user",
		TargetID:      u.ID,
		TargetName:    u.Name,
		Details:       "编辑账号 " + u.Username,
	})

	response.SuccessSynced(c, u.Sanitized(), outcome.Synced())
}

// Delete 删除员工账号
// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	u, err := h.users.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.users.Delete(c.Request.Context(), id, middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpDelete,
		TargetType:    "user",
		TargetID:      id,
		TargetName:    u.Name,
		Details:       "删除账号 " + u.Username,
	})

	response.SuccessSynced(c, nil, outcome.Synced())
}

// ToggleStatus 启用/禁用员工账号
// POST /api/v1/users/:id/toggle-status
func (h *UserHandler) ToggleStatus(c *gin.Context) {
	u, outcome, err := h.users.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	detail := "启用账号 "
	if !u.Active() {
		detail = "禁用账号 "
	}
	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "user",
		TargetID:      u.ID,
		TargetName:    u.Name,
		Details:       detail + u.Username,
	})

	response.SuccessSynced(c, u.Sanitized(), outcome.Synced())
}

// ResetPassword 管理员重置员工密码
// POST /api/v1/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	if err := h.users.ResetPassword(c.Request.Context(), c.Param("id"), req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "user",
		TargetID:      c.Param("id"),
		Details:       "重置密码",
	})

	response.Success(c, nil)
}
