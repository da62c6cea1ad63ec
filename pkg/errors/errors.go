package errors

import (
	"errors"
	"fmt"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（不要直接暴露HTTP状态码）
// 2. Message是用户友好的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给客户端（防止泄露敏感信息）
type AppError struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 用户友好的错误提示
	Err     error  `json:"-"`       // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（如数据库错误、网络错误）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// WrapCode 按指定错误码包装底层错误
// 用途：远端写入失败时需要保留RemoteUnavailable语义，同时携带传输层原因
func WrapCode(code int, err error, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 4xxxx: 客户端错误（参数错误、业务规则校验失败）
// - 5xxxx: 服务端错误（远端存储异常、缓存异常）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal          = 50000 // 内部错误
	ErrCodeCacheError        = 50001 // 本地缓存错误
	ErrCodeRemoteUnavailable = 50003 // 远端存储不可用（网络/认证失败）

	// 认证授权错误（40100-40199）
	ErrCodeUnauthorized    = 40100 // 未登录
	ErrCodeInvalidToken    = 40101 // Token无效
	ErrCodeTokenExpired    = 40102 // Token过期
	ErrCodeInvalidPassword = 40103 // 密码错误
	ErrCodeForbidden       = 40104 // 无权限
	ErrCodeUserDisabled    = 40105 // 账号已禁用

	// 资源错误（40400-40499）
	ErrCodeNotFound        = 40400 // 资源不存在(通用)
	ErrCodeUserNotFound    = 40401 // 用户不存在
	ErrCodeProductNotFound = 40402 // 商品不存在
	ErrCodeSaleNotFound    = 40403 // 销售单不存在
	ErrCodeMemberNotFound  = 40404 // 会员不存在

	// 业务规则错误（40000-40099）
	ErrCodeBusinessError       = 40000 // 业务错误(通用)
	ErrCodeInsufficientStock   = 40001 // 库存不足
	ErrCodeInsufficientBalance = 40002 // 会员余额不足
	ErrCodeDuplicateEntry      = 40009 // 重复记录(唯一约束冲突)

	// 参数错误（40900-40999）
	ErrCodeInvalidParams = 40900 // 参数错误
	ErrCodeBindError     = 40901 // 参数绑定失败
)

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal          = New(ErrCodeInternal, "系统内部错误")
	ErrCacheError        = New(ErrCodeCacheError, "本地缓存错误")
	ErrRemoteUnavailable = New(ErrCodeRemoteUnavailable, "云端服务不可用")

	// 认证授权
	ErrUnauthorized    = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken    = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired    = New(ErrCodeTokenExpired, "Token已过期")
	ErrInvalidPassword = New(ErrCodeInvalidPassword, "用户名或密码错误")
	ErrForbidden       = New(ErrCodeForbidden, "无权限访问")
	ErrUserDisabled    = New(ErrCodeUserDisabled, "账号已被禁用，请联系管理员")

	// 资源不存在
	ErrNotFound        = New(ErrCodeNotFound, "记录不存在")
	ErrUserNotFound    = New(ErrCodeUserNotFound, "用户不存在")
	ErrProductNotFound = New(ErrCodeProductNotFound, "商品不存在")
	ErrSaleNotFound    = New(ErrCodeSaleNotFound, "销售单不存在")
	ErrMemberNotFound  = New(ErrCodeMemberNotFound, "会员不存在")

	// 业务规则
	ErrInsufficientStock   = New(ErrCodeInsufficientStock, "库存不足")
	ErrInsufficientBalance = New(ErrCodeInsufficientBalance, "会员余额不足")
	ErrDuplicateEntry      = New(ErrCodeDuplicateEntry, "记录已存在")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
)

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（如果不是AppError则包装成Internal错误）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// IsCode 判断错误是否携带指定业务错误码
// 说明：同一错误码可能由不同包各自New出来（如各领域的NotFound），
// 按Code判断比errors.Is对哨兵逐个比对更稳定
func IsCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRemoteUnavailable 判断是否为远端不可用错误
// 加载/写入路径据此决定"吸收降级"还是"回滚上抛"
func IsRemoteUnavailable(err error) bool {
	return IsCode(err, ErrCodeRemoteUnavailable)
}
