package dto

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=100"`
}

// RefreshTokenRequest 刷新Token请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// CreateUserRequest 新增员工账号请求
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=2,max=50"`
	Password string `json:"password" binding:"omitempty,min=6,max=100"`
	Name     string `json:"name" binding:"required,max=50"`
	Role     string `json:"role" binding:"omitempty,oneof=admin manager staff"`
	Phone    string `json:"phone" binding:"max=20"`
}

// UpdateUserRequest 编辑员工账号请求
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"required,max=50"`
	Role  string `json:"role" binding:"omitempty,oneof=admin manager staff"`
	Phone string `json:"phone" binding:"max=20"`
}

// ChangePasswordRequest 修改自己密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=100"`
}

// ResetPasswordRequest 管理员重置密码请求
type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=6,max=100"`
}
