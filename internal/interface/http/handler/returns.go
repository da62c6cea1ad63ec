package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/oplog"
	"github.com/xiebiao/shoepos/internal/domain/returns"
	"github.com/xiebiao/shoepos/internal/interface/http/dto"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/response"
)

// ReturnHandler 退换货HTTP处理器
type ReturnHandler struct {
	returns *returns.Store
	logs    *oplog.Store
}

// NewReturnHandler 创建退换货处理器
func NewReturnHandler(rs *returns.Store, logs *oplog.Store) *ReturnHandler {
	return &ReturnHandler{returns: rs, logs: logs}
}

// List 退换货记录列表
// GET /api/v1/returns
func (h *ReturnHandler) List(c *gin.Context) {
	response.Success(c, h.returns.List())
}

// Create 登记退货/换货
// POST /api/v1/returns
func (h *ReturnHandler) Create(c *gin.Context) {
	var req dto.CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	rec := returns.Record{
		Type:           req.Type,
		OriginalSaleID: req.OriginalSaleID,
		OriginalProduct: returns.ProductRef{
			ProductID:   req.OriginalProduct.ProductID,
			ProductName: req.OriginalProduct.ProductName,
			Quantity:    req.OriginalProduct.Quantity,
			SalePrice:   req.OriginalProduct.SalePrice,
		},
		Reason: req.Reason,
		Amount: req.Amount,
	}
	if req.NewProduct != nil {
		rec.NewProduct = &returns.ProductRef{
			ProductID:   req.NewProduct.ProductID,
			ProductName: req.NewProduct.ProductName,
			Quantity:    req.NewProduct.Quantity,
			SalePrice:   req.NewProduct.SalePrice,
		}
	}

	saved, outcome, err := h.returns.Add(c.Request.Context(), rec)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpReturn,
		TargetType:    "return",
		TargetID:      saved.ID,
		TargetName:    saved.OriginalProduct.ProductName,
		Details:       fmt.Sprintf("%s %d件，退款%.2f元", typeLabel(saved.Type), saved.OriginalProduct.Quantity, saved.Amount),
	})

	response.SuccessSynced(c, saved, outcome.Synced())
}

// Delete 撤销退换货记录（反向冲正库存）
// DELETE /api/v1/returns/:id
func (h *ReturnHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.returns.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.returns.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpDelete,
		TargetType:    "return",
		TargetID:      id,
		TargetName:    rec.OriginalProduct.ProductName,
		Details:       "撤销" + typeLabel(rec.Type) + "记录",
	})

	response.SuccessSynced(c, nil, outcome.Synced())
}

// ReturnedQuantity 某销售单某商品已退数量（前端校验可退上限用）
// GET /api/v1/returns/quantity?saleId=xx&productId=yy
func (h *ReturnHandler) ReturnedQuantity(c *gin.Context) {
	saleID := c.Query("saleId")
	productID := c.Query("productId")
	if saleID == "" || productID == "" {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "缺少saleId或productId")
		return
	}
	response.Success(c, gin.H{
		"quantity": h.returns.ReturnedQuantity(saleID, productID),
	})
}

func typeLabel(t string) string {
	if t == returns.TypeExchange {
		return "换货"
	}
	return "退货"
}
