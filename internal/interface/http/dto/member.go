package dto

// SaveMemberRequest 新增/编辑会员请求
type SaveMemberRequest struct {
	Phone    string  `json:"phone" binding:"required,max=20"`
	Name     string  `json:"name" binding:"required,max=50"`
	Discount float64 `json:"discount" binding:"omitempty,gt=0,lte=1"`
	Level    string  `json:"level" binding:"max=20"`
	Notes    string  `json:"notes" binding:"max=500"`
}

// RechargeRequest 会员充值请求
type RechargeRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"paymentMethod" binding:"max=20"`
	Notes         string  `json:"notes" binding:"max=200"`
}
