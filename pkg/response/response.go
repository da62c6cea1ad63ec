package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// Response 统一响应结构
// 设计说明：
// 1. Code是业务错误码（非HTTP状态码），方便客户端判断错误类型
// 2. Message是用户友好的提示信息
// 3. Synced标记数据是否已同步到云端：离线降级成功时为false，
//    前端据此展示"已保存（待同步）"软提示。同步成功、仅本地保存、
//    被拒绝是三种不同结果
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Synced  *bool       `json:"synced,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应（Code=0表示成功）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessSynced 成功响应并标注同步状态
// synced=false表示操作已在本地生效，但云端写入失败（稍后补同步）
func SuccessSynced(c *gin.Context, data interface{}, synced bool) {
	msg := "success"
	if !synced {
		msg = "已保存到本地，云端同步待恢复"
	}
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: msg,
		Synced:  &synced,
		Data:    data,
	})
}

// Error 错误响应（自动处理AppError）
func Error(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	c.JSON(http.StatusOK, Response{
		Code:    appErr.Code,
		Message: appErr.Message,
		Data:    nil,
	})
}

// ErrorWithCode 自定义错误码和消息
func ErrorWithCode(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}
