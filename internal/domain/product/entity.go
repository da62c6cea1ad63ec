// Package product 商品目录与库存台账
//
// 商品是库存不变量的唯一持有者：销售、进货、退换货都通过本包的库存
// 操作改动stock，任何一方都不直接改商品集合
package product

import (
	"math"

	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
)

// Product 商品
type Product struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Code       string  `json:"code"` // 货号/SKU
	Brand      string  `json:"brand"`
	Category   string  `json:"category"`
	Color      string  `json:"color"`
	Size       string  `json:"size"`
	CostPrice  float64 `json:"costPrice"` // 加权平均进价，进货时重算
	SalePrice  float64 `json:"salePrice"`
	Stock      int     `json:"stock"`
	MinStock   int     `json:"minStock"` // 低库存预警线
	Supplier   string  `json:"supplier"`
	Image      string  `json:"image"`
	CreateTime int64   `json:"createTime"`
}

// StockValue 该商品占用的库存资金
func (p Product) StockValue() float64 {
	return round2(p.CostPrice * float64(p.Stock))
}

// LowStock 是否达到预警线
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// toRow 内存形态 → 远端snake_case行
func toRow(p Product) remote.Row {
	return remote.Row{
		"id":          p.ID,
		"name":        p.Name,
		"code":        p.Code,
		"brand":       p.Brand,
		"category":    p.Category,
		"color":       p.Color,
		"size":        p.Size,
		"cost_price":  p.CostPrice,
		"sale_price":  p.SalePrice,
		"stock":       p.Stock,
		"min_stock":   p.MinStock,
		"supplier":    p.Supplier,
		"image":       p.Image,
		"create_time": p.CreateTime,
	}
}

// fromRow 远端行 → 内存形态，数值字段带默认值安全解析
func fromRow(r remote.Row) Product {
	return Product{
		ID:         remote.Str(r, "id"),
		Name:       remote.Str(r, "name"),
		Code:       remote.Str(r, "code"),
		Brand:      remote.Str(r, "brand"),
		Category:   remote.Str(r, "category"),
		Color:      remote.Str(r, "color"),
		Size:       remote.Str(r, "size"),
		CostPrice:  remote.Float(r, "cost_price", 0),
		SalePrice:  remote.Float(r, "sale_price", 0),
		Stock:      remote.Int(r, "stock", 0),
		MinStock:   remote.Int(r, "min_stock", 0),
		Supplier:   remote.Str(r, "supplier"),
		Image:      remote.Str(r, "image"),
		CreateTime: createTime(r),
	}
}

func createTime(r remote.Row) int64 {
	if v := int64(remote.Float(r, "create_time", 0)); v > 0 {
		return v
	}
	return remote.Millis(r, "created_at")
}

// collectionConfig 双写与合并策略
// stock是语义字段：本地与远端不同说明本地有未同步的库存变动，保本地；
// 远端行缺code等字段而本地有值时同样保本地
func collectionConfig() store.Config[Product] {
	return store.Config[Product]{
		Name:      "products",
		Table:     "products",
		IDOf:      func(p Product) string { return p.ID },
		WithID:    func(p Product, id string) Product { p.ID = id; return p },
		CreatedAt: func(p Product) int64 { return p.CreateTime },
		ToRow:     toRow,
		FromRow:   fromRow,
		PreferLocal: func(local, rm Product) bool {
			if local.Stock != rm.Stock || local.CostPrice != rm.CostPrice {
				return true
			}
			if rm.Code == "" && local.Code != "" {
				return true
			}
			return false
		},
	}
}
