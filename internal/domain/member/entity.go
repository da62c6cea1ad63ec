// Package member 会员账户
//
// 余额是会员集合的语义字段：消费扣减、充值、销售单删除时的回充都在
// 本包完成，外部不做通用字段补丁
package member

import (
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
)

// DefaultLevel 默认会员等级
const DefaultLevel = "普通会员"

// Member 会员
type Member struct {
	ID               string  `json:"id"`
	Phone            string  `json:"phone"` // 业务主键，店内唯一
	Name             string  `json:"name"`
	Balance          float64 `json:"balance"`
	TotalRecharge    float64 `json:"totalRecharge"`
	TotalConsumption float64 `json:"totalConsumption"`
	Discount         float64 `json:"discount"` // 1.0表示无折扣
	Level            string  `json:"level"`
	Notes            string  `json:"notes"`
	CreateTime       int64   `json:"createTime"`
}

func toRow(m Member) remote.Row {
	return remote.Row{
		"id":                m.ID,
		"phone":             m.Phone,
		"name":              m.Name,
		"balance":           m.Balance,
		"total_recharge":    m.TotalRecharge,
		"total_consumption": m.TotalConsumption,
		"discount":          m.Discount,
		"level":             m.Level,
		"notes":             m.Notes,
		"create_time":       m.CreateTime,
	}
}

func fromRow(r remote.Row) Member {
	m := Member{
		ID:               remote.Str(r, "id"),
		Phone:            remote.Str(r, "phone"),
		Name:             remote.Str(r, "name"),
		Balance:          remote.Float(r, "balance", 0),
		TotalRecharge:    remote.Float(r, "total_recharge", 0),
		TotalConsumption: remote.Float(r, "total_consumption", 0),
		Discount:         remote.Float(r, "discount", 1.0),
		Level:            remote.Str(r, "level"),
		Notes:            remote.Str(r, "notes"),
	}
	if m.Level == "" {
		m.Level = DefaultLevel
	}
	if v := int64(remote.Float(r, "create_time", 0)); v > 0 {
		m.CreateTime = v
	} else {
		m.CreateTime = remote.Millis(r, "created_at")
	}
	return m
}

// collectionConfig 合并策略：余额或累计消费不同说明本地有未同步的
// 收银动作，保本地
func collectionConfig() store.Config[Member] {
	return store.Config[Member]{
		Name:      "members",
		Table:     "members",
		IDOf:      func(m Member) string { return m.ID },
		WithID:    func(m Member, id string) Member { m.ID = id; return m },
		CreatedAt: func(m Member) int64 { return m.CreateTime },
		ToRow:     toRow,
		FromRow:   fromRow,
		PreferLocal: func(local, rm Member) bool {
			return local.Balance != rm.Balance ||
				local.TotalConsumption != rm.TotalConsumption
		},
	}
}
