// Package sale 销售与进货
//
// 销售单建档后不可修改，只能整单删除；删除要把一单造成的全部副作用
// （库存扣减、会员余额扣款）原路退回
package sale

import (
	"encoding/json"
	"math"

	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
)

// 支付方式
const (
	PayCash          = "现金"
	PayWeChat        = "微信"
	PayAlipay        = "支付宝"
	PayMemberBalance = "会员余额"
)

// Item 销售单行
type Item struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Size        string  `json:"size"`
	SalePrice   float64 `json:"salePrice"`
	CostPrice   float64 `json:"costPrice"` // 成交时的加权平均进价快照
	Quantity    int     `json:"quantity"`
}

// Sale 销售单
type Sale struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"orderId"` // 人类可读单号
	Items         []Item  `json:"items"`
	TotalAmount   float64 `json:"totalAmount"`  // 折前合计
	TotalCost     float64 `json:"totalCost"`    // 成本合计
	Profit        float64 `json:"profit"`       // 实收 - 成本
	Discount      float64 `json:"discount"`     // 1.0表示无折扣
	ActualAmount  float64 `json:"actualAmount"` // 实收金额
	Salesperson   string  `json:"salesperson"`
	PaymentMethod string  `json:"paymentMethod"`
	MemberID      string  `json:"memberId"` // 余额支付时必填
	Remark        string  `json:"remark"`
	CreateTime    int64   `json:"createTime"`
}

// Quantity 整单件数
func (s Sale) Quantity() int {
	var n int
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// Purchase 进货单
type Purchase struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	CostPrice   float64 `json:"costPrice"` // 本次进货单价
	TotalAmount float64 `json:"totalAmount"`
	Supplier    string  `json:"supplier"`
	Notes       string  `json:"notes"`
	CreateTime  int64   `json:"createTime"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// 行项目在远端压成一个JSON文本列，远端schema不为每单行项目建表

func saleToRow(s Sale) remote.Row {
	items, _ := json.Marshal(s.Items)
	return remote.Row{
		"id":             s.ID,
		"order_id":       s.OrderID,
		"items":          string(items),
		"total_amount":   s.TotalAmount,
		"total_cost":     s.TotalCost,
		"profit":         s.Profit,
		"discount":       s.Discount,
		"actual_amount":  s.ActualAmount,
		"salesperson":    s.Salesperson,
		"payment_method": s.PaymentMethod,
		"member_id":      s.MemberID,
		"remark":         s.Remark,
		"create_time":    s.CreateTime,
	}
}

func saleFromRow(r remote.Row) Sale {
	var items []Item
	if raw := remote.Str(r, "items"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	s := Sale{
		ID:            remote.Str(r, "id"),
		OrderID:       remote.Str(r, "order_id"),
		Items:         items,
		TotalAmount:   remote.Float(r, "total_amount", 0),
		TotalCost:     remote.Float(r, "total_cost", 0),
		Profit:        remote.Float(r, "profit", 0),
		Discount:      remote.Float(r, "discount", 1.0),
		ActualAmount:  remote.Float(r, "actual_amount", 0),
		Salesperson:   remote.Str(r, "salesperson"),
		PaymentMethod: remote.Str(r, "payment_method"),
		MemberID:      remote.Str(r, "member_id"),
		Remark:        remote.Str(r, "remark"),
	}
	if v := int64(remote.Float(r, "create_time", 0)); v > 0 {
		s.CreateTime = v
	} else {
		s.CreateTime = remote.Millis(r, "created_at")
	}
	return s
}

func purchaseToRow(p Purchase) remote.Row {
	return remote.Row{
		"id":           p.ID,
		"product_id":   p.ProductID,
		"product_name": p.ProductName,
		"quantity":     p.Quantity,
		"cost_price":   p.CostPrice,
		"total_amount": p.TotalAmount,
		"supplier":     p.Supplier,
		"notes":        p.Notes,
		"create_time":  p.CreateTime,
	}
}

func purchaseFromRow(r remote.Row) Purchase {
	p := Purchase{
		ID:          remote.Str(r, "id"),
		ProductID:   remote.Str(r, "product_id"),
		ProductName: remote.Str(r, "product_name"),
		Quantity:    remote.Int(r, "quantity", 0),
		CostPrice:   remote.Float(r, "cost_price", 0),
		TotalAmount: remote.Float(r, "total_amount", 0),
		Supplier:    remote.Str(r, "supplier"),
		Notes:       remote.Str(r, "notes"),
	}
	if v := int64(remote.Float(r, "create_time", 0)); v > 0 {
		p.CreateTime = v
	} else {
		p.CreateTime = remote.Millis(r, "created_at")
	}
	return p
}

// 销售与进货单建档后不再修改，同id冲突没有"本地领先"的情形，合并
// 一律取远端

func salesConfig() store.Config[Sale] {
	return store.Config[Sale]{
		Name:      "sales",
		Table:     "sales",
		IDOf:      func(s Sale) string { return s.ID },
		WithID:    func(s Sale, id string) Sale { s.ID = id; return s },
		CreatedAt: func(s Sale) int64 { return s.CreateTime },
		ToRow:     saleToRow,
		FromRow:   saleFromRow,
	}
}

func purchasesConfig() store.Config[Purchase] {
	return store.Config[Purchase]{
		Name:      "purchases",
		Table:     "purchases",
		IDOf:      func(p Purchase) string { return p.ID },
		WithID:    func(p Purchase, id string) Purchase { p.ID = id; return p },
		CreatedAt: func(p Purchase) int64 { return p.CreateTime },
		ToRow:     purchaseToRow,
		FromRow:   purchaseFromRow,
	}
}
