package dto

// SaveProductRequest 新增/编辑商品请求
type SaveProductRequest struct {
	Name      string  `json:"name" binding:"required,max=100"`
	Code      string  `json:"code" binding:"max=50"`
	Brand     string  `json:"brand" binding:"max=50"`
	Category  string  `json:"category" binding:"max=50"`
	Color     string  `json:"color" binding:"max=50"`
	Size      string  `json:"size" binding:"max=20"`
	CostPrice float64 `json:"costPrice" binding:"min=0"`
	SalePrice float64 `json:"salePrice" binding:"min=0"`
	Stock     int     `json:"stock" binding:"min=0"`
	MinStock  int     `json:"minStock" binding:"min=0"`
	Supplier  string  `json:"supplier" binding:"max=100"`
	Image     string  `json:"image" binding:"max=500"`
}

// AdjustStockRequest 手工调整库存请求
type AdjustStockRequest struct {
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Direction string `json:"direction" binding:"required,oneof=increase decrease"`
	Reason    string `json:"reason" binding:"max=200"`
}

// PurchaseRequest 进货入库请求
type PurchaseRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	CostPrice float64 `json:"costPrice" binding:"min=0"`
	Supplier  string  `json:"supplier" binding:"max=100"`
	Notes     string  `json:"notes" binding:"max=500"`
}
