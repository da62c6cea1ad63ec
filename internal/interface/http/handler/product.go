package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/oplog"
	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/interface/http/dto"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/response"
)

// ProductHandler 商品HTTP处理器
type ProductHandler struct {
	products *product.Store
	logs     *oplog.Store
}

// NewProductHandler 创建商品处理器
func NewProductHandler(products *product.Store, logs *oplog.Store) *ProductHandler {
	return &ProductHandler{products: products, logs: logs}
}

// List 商品列表，支持keyword模糊搜索
// GET /api/v1/products?keyword=xx
func (h *ProductHandler) List(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword != "" {
		response.Success(c, h.products.Search(keyword))
		return
	}
	response.Success(c, h.products.List())
}

// Get 商品详情
// GET /api/v1/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.products.Get(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// LowStock 低库存商品列表
// GET /api/v1/products/low-stock
func (h *ProductHandler) LowStock(c *gin.Context) {
	response.Success(c, h.products.LowStockList())
}

// Create 新增商品
// POST /api/v1/products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.SaveProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	p, outcome, err := h.products.Add(c.Request.Context(), product.Product{
		Name:      req.Name,
		Code:      req.Code,
		Brand:     req.Brand,
		Category:  req.Category,
		Color:     req.Color,
		Size:      req.Size,
		CostPrice: req.CostPrice,
		SalePrice: req.SalePrice,
		Stock:     req.Stock,
		MinStock:  req.MinStock,
		Supplier:  req.Supplier,
		Image:     req.Image,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpAdd,
		TargetType:    "product",
		TargetID:      p.ID,
		TargetName:    p.Name,
		Details:       fmt.Sprintf("新增商品，库存%d", p.Stock),
	})

	response.SuccessSynced(c, p, outcome.Synced())
}

// Update 编辑商品
// PUT /api/v1/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	var req dto.SaveProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	p, outcome, err := h.products.Update(c.Request.Context(), c.Param("id"), func(cur product.Product) (product.Product, error) {
		cur.Name = req.Name
		cur.Code = req.Code
		cur.Brand = req.Brand
		cur.Category = req.Category
		cur.Color = req.Color
		cur.Size = req.Size
		cur.CostPrice = req.CostPrice
		cur.SalePrice = req.SalePrice
		cur.Stock = req.Stock
		cur.MinStock = req.MinStock
		cur.Supplier = req.Supplier
		cur.Image = req.Image
		return cur, nil
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "product",
		TargetID:      p.ID,
		TargetName:    p.Name,
		Details:       "编辑商品档案",
	})

	response.SuccessSynced(c, p, outcome.Synced())
}

// Delete 删除商品
// DELETE /api/v1/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	p, err := h.products.Get(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	outcome, err := h.products.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpDelete,
		TargetType:    "product",
		TargetID:      id,
		TargetName:    p.Name,
		Details:       "删除商品",
	})

	response.SuccessSynced(c, nil, outcome.Synced())
}

// AdjustStock 手工调整库存
// POST /api/v1/products/:id/stock
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	var req dto.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	p, outcome, err := h.products.AdjustStock(c.Request.Context(), c.Param("id"), req.Quantity, product.Direction(req.Direction))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.logs.Append(middleware.Operator(c), oplog.Entry{
		OperationType: oplog.OpUpdate,
		TargetType:    "product",
		TargetID:      p.ID,
		TargetName:    p.Name,
		Details:       fmt.Sprintf("手工%s库存%d件，原因：%s", directionLabel(req.Direction), req.Quantity, req.Reason),
	})

	response.SuccessSynced(c, p, outcome.Synced())
}

// StockValue 库存资金汇总
// GET /api/v1/products/stock-value
func (h *ProductHandler) StockValue(c *gin.Context) {
	response.Success(c, gin.H{
		"totalStockValue": h.products.TotalStockValue(),
		"productCount":    len(h.products.List()),
	})
}

func directionLabel(d string) string {
	if d == string(product.Decrease) {
		return "调减"
	}
	return "调增"
}

// parseLimit 解析limit查询参数，越界时退回默认值
func parseLimit(c *gin.Context, def, max int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > max {
		return def
	}
	return n
}
