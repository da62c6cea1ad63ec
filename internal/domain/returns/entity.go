// Package returns 退换货
//
// 一条记录最多涉及两条库存腿：退回的商品入库，换出的商品出库。
// 删除记录时两条腿对称反转
package returns

import (
	"encoding/json"

	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
)

// 记录类型
const (
	TypeReturn   = "return"
	TypeExchange = "exchange"
)

// ProductRef 记录里指向商品的一条腿
type ProductRef struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	SalePrice   float64 `json:"salePrice"`
}

// Record 退换货记录
type Record struct {
	ID              string      `json:"id"`
	Type            string      `json:"type"` // return | exchange
	Time            int64       `json:"time"`
	OriginalSaleID  string      `json:"originalSaleId"`
	OriginalProduct ProductRef  `json:"originalProduct"`
	NewProduct      *ProductRef `json:"newProduct,omitempty"` // 仅换货
	Reason          string      `json:"reason"`
	Amount          float64     `json:"amount"` // 退给顾客的金额，换货补差时可为负
}

func toRow(r Record) remote.Row {
	orig, _ := json.Marshal(r.OriginalProduct)
	row := remote.Row{
		"id":               r.ID,
		"type":             r.Type,
		"time":             r.Time,
		"original_sale_id": r.OriginalSaleID,
		"original_product": string(orig),
		"reason":           r.Reason,
		"amount":           r.Amount,
	}
	if r.NewProduct != nil {
		np, _ := json.Marshal(r.NewProduct)
		row["new_product"] = string(np)
	}
	return row
}

func fromRow(row remote.Row) Record {
	r := Record{
		ID:             remote.Str(row, "id"),
		Type:           remote.Str(row, "type"),
		OriginalSaleID: remote.Str(row, "original_sale_id"),
		Reason:         remote.Str(row, "reason"),
		Amount:         remote.Float(row, "amount", 0),
	}
	if raw := remote.Str(row, "original_product"); raw != "" {
		_ = json.Unmarshal([]byte(raw), &r.OriginalProduct)
	}
	if raw := remote.Str(row, "new_product"); raw != "" {
		var np ProductRef
		if json.Unmarshal([]byte(raw), &np) == nil {
			r.NewProduct = &np
		}
	}
	if v := int64(remote.Float(row, "time", 0)); v > 0 {
		r.Time = v
	} else {
		r.Time = remote.Millis(row, "time")
	}
	return r
}

// 退换货记录建档后不修改，合并不需要本地优先规则
func collectionConfig() store.Config[Record] {
	return store.Config[Record]{
		Name:      "returns",
		Table:     "returns",
		IDOf:      func(r Record) string { return r.ID },
		WithID:    func(r Record, id string) Record { r.ID = id; return r },
		CreatedAt: func(r Record) int64 { return r.Time },
		ToRow:     toRow,
		FromRow:   fromRow,
	}
}
