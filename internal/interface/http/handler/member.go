package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/member"
	"github.com/xiebiao/shoepos/internal/domain/oplog"
	"github.com/xiebiao/shoepos/internal/interface/http/dto"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/response"
)

// MemberHandler 会员HTTP处理器
type MemberHandler struct {
	members *member.Store
	logs    *oplog.Store
}

// NewMemberHandler 创建会员处理器
func NewMemberHandler(members *member.Store, logs *oplog.Store) *MemberHandler {
	return &MemberHandler{members: members, logs: logs}
}

// List 会员列表，支持keyword按姓名/手机号搜索
// GET /api/v1/members?keyword=xx
func (h *MemberHandler) List(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword != "" {
		response.Success(c, h.members.Search(keyword))
		return
	}
	response.Success(c, h.members.List())
}

// Get 会员详情，优先按ID，支持phone查询参数
// GET /api/v1/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	m, err := h.members.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, m)
}

// GetByPhone 按手机号查会员（收银台刷会员用）
// GET /api/v1/members/by-phone/:phone
func (h *MemberHandler) GetByPhone(c *gin.Context) {
	m, err := h.members.GetByPhone(c.Param("phone"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, m)
}

// Create 新增会员
// POST /api/v1/members
func (h *MemberHandler) Create(c *gin.Context) {
	var req dto.SaveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	m, outcome, err := h.members.Add(c.Request.Context(), member.Member{
		Phone:    req.Phone,
		Name:     req.Name,
		Discount: req.Discount,
		Level:    req.Level,
		Notes:    req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpAdd,
		TargetType:    "member",
		TargetID:      m.ID,
		TargetName:    m.Name,
		Details:       "新增会员 " + m.Phone,
	})

	response.SuccessSynced(c, m, outcome.Synced())
}

// Update 编辑会员资料（余额与累计额不在此修改）
// PUT /api/v1/members/:id
func (h *MemberHandler) Update(c *gin.Context) {
	var req dto.SaveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	m, outcome, err := h.members.Update(c.Request.Context(), c.Param("id"), func(cur member.Member) (member.Member, error) {
		cur.Phone = req.Phone
		cur.Name = req.Name
		if req.Discount > 0 {
			cur.Discount = req.Discount
		}
		if req.Level != "" {
			cur.Level = req.Level
		}
		cur.Notes = req.Notes
		return cur, nil
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "member",
		TargetID:      m.ID,
		TargetName:    m.Name,
		Details:       "编辑会员资料",
	})

	response.SuccessSynced(c, m, outcome.Synced())
}

// Delete 删除会员
// DELETE /api/v1/members/:id
func (h *MemberHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	m, err := h.members.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.members.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpDelete,
		TargetType:    "member",
		TargetID:      id,
		TargetName:    m.Name,
		Details:       "删除会员 " + m.Phone,
	})

	response.SuccessSynced(c, nil, outcome.Synced())
}

// Recharge 会员充值
// POST /api/v1/members/:id/recharge
func (h *MemberHandler) Recharge(c *gin.Context) {
	var req dto.RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	m, outcome, err := h.members.Recharge(c.Request.Context(), c.Param("id"), req.Amount, req.PaymentMethod, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "member",
		TargetID:      m.ID,
		TargetName:    m.Name,
		Details:       fmt.Sprintf("充值%.2f元，余额%.2f元", req.Amount, m.Balance),
	})

	response.SuccessSynced(c, m, outcome.Synced())
}
