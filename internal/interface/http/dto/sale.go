package dto

// SaleItemRequest 销售单商品行
// 成本价由服务端从商品档案快照，不信任客户端
type SaleItemRequest struct {
	ProductID   string  `json:"productId" binding:"required"`
	ProductName string  `json:"productName" binding:"max=100"`
	Size        string  `json:"size" binding:"max=20"`
	SalePrice   float64 `json:"salePrice" binding:"min=0"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
}

// CreateSaleRequest 收银开单请求
type CreateSaleRequest struct {
	Items         []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	Discount      float64           `json:"discount" binding:"omitempty,gt=0,lte=1"`
	PaymentMethod string            `json:"paymentMethod" binding:"required"`
	MemberID      string            `json:"memberId"`
	Remark        string            `json:"remark" binding:"max=500"`
}
