package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/response"
)

// SyncHandler 离线队列补同步HTTP处理器
// 后台有定时Flush，这里额外提供手动触发入口（前端"立即同步"按钮）
type SyncHandler struct {
	queue *store.Queue
}

// NewSyncHandler 创建补同步处理器
func NewSyncHandler(queue *store.Queue) *SyncHandler {
	return &SyncHandler{queue: queue}
}

// Status 当前待同步队列状态
// GET /api/v1/sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	response.Success(c, gin.H{
		"pending": h.queue.Len(),
	})
}

// Flush 立即尝试补同步
// POST /api/v1/sync/flush
func (h *SyncHandler) Flush(c *gin.Context) {
	err := h.queue.Flush(c.Request.Context())
	if err != nil {
		// 云端仍不可达不算请求失败，带着剩余条数正常返回
		response.Success(c, gin.H{
			"pending": h.queue.Len(),
			"synced":  false,
		})
		return
	}
	response.Success(c, gin.H{
		"pending": h.queue.Len(),
		"synced":  true,
	})
}
