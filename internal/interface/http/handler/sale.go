package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/oplog"
	"github.com/xiebiao/shoepos/internal/domain/sale"
	"github.com/xiebiao/shoepos/internal/interface/http/dto"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/response"
)

// SaleHandler 销售与进货HTTP处理器
type SaleHandler struct {
	sales *sale.Store
	logs  *oplog.Store
}

// NewSaleHandler 创建销售处理器
func NewSaleHandler(sales *sale.Store, logs *oplog.Store) *SaleHandler {
	return &SaleHandler{sales: sales, logs: logs}
}

// List 销售单列表
// GET /api/v1/sales
func (h *SaleHandler) List(c *gin.Context) {
	response.Success(c, h.sales.List())
}

// Get 销售单详情
// GET /api/v1/sales/:id
func (h *SaleHandler) Get(c *gin.Context) {
	s, err := h.sales.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, s)
}

// Create 收银开单
// POST /api/v1/sales
func (h *SaleHandler) Create(c *gin.Context) {
	var req dto.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	items := make([]sale.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, sale.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Size:        it.Size,
			SalePrice:   it.SalePrice,
			Quantity:    it.Quantity,
		})
	}

	s, outcome, err := h.sales.AddSale(c.Request.Context(), sale.Sale{
		Items:         items,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
		MemberID:      req.MemberID,
		Remark:        req.Remark,
		Salesperson:   middleware.GetUsername(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpSale,
		TargetType:    "sale",
		TargetID:      s.ID,
		TargetName:    s.OrderID,
		Details:       fmt.Sprintf("开单%d件，实收%.2f元（%s）", s.Quantity(), s.ActualAmount, s.PaymentMethod),
	})

	response.SuccessSynced(c, s, outcome.Synced())
}

// Delete 撤销销售单（冲正库存与会员余额）
// DELETE /api/v1/sales/:id
func (h *SaleHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	s, err := h.sales.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.sales.DeleteSale(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpDelete,
		TargetType:    "sale",
		TargetID:      id,
		TargetName:    s.OrderID,
		Details:       fmt.Sprintf("撤销销售单，冲正%d件库存", s.Quantity()),
	})

	response.SuccessSynced(c, nil, outcome.Synced())
}

// ListPurchases 进货记录列表
// GET /api/v1/purchases
func (h *SaleHandler) ListPurchases(c *gin.Context) {
	response.Success(c, h.sales.Purchases())
}

// CreatePurchase 进货入库
// POST /api/v1/purchases
func (h *SaleHandler) CreatePurchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	p, outcome, err := h.sales.AddPurchase(c.Request.Context(), sale.Purchase{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		CostPrice: req.CostPrice,
		Supplier:  req.Supplier,
		Notes:     req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpStockIn,
		TargetType:    "purchase",
		TargetID:      p.ID,
		TargetName:    p.ProductName,
		Details:       fmt.Sprintf("进货%d件，单价%.2f元", p.Quantity, p.CostPrice),
	})

	response.SuccessSynced(c, p, outcome.Synced())
}

// DeletePurchase 撤销进货记录（回退库存）
// DELETE /api/v1/purchases/:id
func (h *SaleHandler) DeletePurchase(c *gin.Context) {
	id := c.Param("id")

	outcome, err := h.sales.DeletePurchase(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpDelete,
		TargetType:    "purchase",
		TargetID:      id,
		Details:       "撤销进货记录",
	})

	response.SuccessSynced(c, nil, outcome.Synced())
}
