package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/oplog"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/response"
)

// OpLogHandler 操作日志HTTP处理器
type OpLogHandler struct {
	logs *oplog.Store
}

// NewOpLogHandler 创建操作日志处理器
func NewOpLogHandler(logs *oplog.Store) *OpLogHandler {
	return &OpLogHandler{logs: logs}
}

// List 操作日志列表，支持按操作类型/用户/对象过滤
// GET /api/v1/oplogs?type=sale&userId=xx&targetType=product
func (h *OpLogHandler) List(c *gin.Context) {
	opType := c.Query("type")
	userID := c.Query("userId")
	targetType := c.Query("targetType")

	if opType == "" && userID == "" && targetType == "" {
		response.Success(c, h.logs.List())
		return
	}

	response.Success(c, h.logs.Filter(func(e oplog.Entry) bool {
		if opType != "" && e.OperationType != opType {
			return false
		}
		if userID != "" && e.UserID != userID {
			return false
		}
		if targetType != "" && e.TargetType != targetType {
			return false
		}
		return true
	}))
}

// ClearOld 清理早于N天的历史日志
// POST /api/v1/oplogs/clear?days=90
func (h *OpLogHandler) ClearOld(c *gin.Context) {
	days := parseIntQuery(c.Query("days"), 90, 3650)
	if days <= 0 {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "days必须为正整数")
		return
	}

	removed := h.logs.ClearOld(c.Request.Context(), days)
	response.Success(c, gin.H{"removed": removed})
}
