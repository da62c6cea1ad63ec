package dto

// ReturnProductRef 退换货涉及的商品
type ReturnProductRef struct {
	ProductID   string  `json:"productId" binding:"required"`
	ProductName string  `json:"productName" binding:"max=100"`
	Quantity    int     `json:"quantity" binding:"required,min=1"`
	SalePrice   float64 `json:"salePrice" binding:"min=0"`
}

// CreateReturnRequest 登记退货/换货请求
// Type=exchange时NewProduct必填
type CreateReturnRequest struct {
	Type            string            `json:"type" binding:"required,oneof=return exchange"`
	OriginalSaleID  string            `json:"originalSaleId" binding:"required"`
	OriginalProduct ReturnProductRef  `json:"originalProduct" binding:"required"`
	NewProduct      *ReturnProductRef `json:"newProduct"`
	Reason          string            `json:"reason" binding:"max=500"`
	Amount          float64           `json:"amount"`
}
