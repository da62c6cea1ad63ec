package sale

import (
	"sort"
	"time"
)

// 经营统计
//
// 统计都在工作集上现算。单店数据量在千单级，没有必要维护物化视图

// Summary 一段时间的销售汇总
type Summary struct {
	Revenue float64 `json:"revenue"` // 实收合计
	Profit  float64 `json:"profit"`
	Count   int     `json:"count"`
}

// TrendPoint 趋势图上的一天
type TrendPoint struct {
	Label   string  `json:"label"` // M/D
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

// ProductRank 热销排行条目
type ProductRank struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Amount      float64 `json:"amount"`
}

// SalespersonStat 员工业绩
type SalespersonStat struct {
	Name        string  `json:"name"`
	SalesCount  int     `json:"salesCount"`
	TotalAmount float64 `json:"totalAmount"`
	TotalProfit float64 `json:"totalProfit"`
	Quantity    int     `json:"quantity"`
}

func (s *Store) summarize(since, until int64) Summary {
	var sum Summary
	for _, sl := range s.sales.Items() {
		if sl.CreateTime < since || (until > 0 && sl.CreateTime > until) {
			continue
		}
		sum.Revenue = round2(sum.Revenue + sl.ActualAmount)
		sum.Profit = round2(sum.Profit + sl.Profit)
		sum.Count++
	}
	return sum
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TodaySummary 今日实收与利润
func (s *Store) TodaySummary() Summary {
	return s.summarize(startOfDay(time.Now()).UnixMilli(), 0)
}

// MonthSummary 本月实收与利润
func (s *Store) MonthSummary() Summary {
	now := time.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return s.summarize(first.UnixMilli(), 0)
}

// TotalSummary 全部历史汇总
func (s *Store) TotalSummary() Summary {
	return s.summarize(0, 0)
}

// Trend 最近days天逐日趋势，时间从旧到新
func (s *Store) Trend(days int) []TrendPoint {
	if days <= 0 {
		days = 7
	}
	out := make([]TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := startOfDay(time.Now().AddDate(0, 0, -i))
		end := day.AddDate(0, 0, 1).UnixMilli() - 1
		sum := s.summarize(day.UnixMilli(), end)
		out = append(out, TrendPoint{
			Label:   day.Format("1/2"),
			Revenue: sum.Revenue,
			Profit:  sum.Profit,
		})
	}
	return out
}

// TopProducts 按销量排名的前limit个商品
func (s *Store) TopProducts(limit int) []ProductRank {
	if limit <= 0 {
		limit = 5
	}
	byID := make(map[string]*ProductRank)
	for _, sl := range s.sales.Items() {
		for _, it := range sl.Items {
			r, ok := byID[it.ProductID]
			if !ok {
				r = &ProductRank{ProductID: it.ProductID, ProductName: it.ProductName}
				byID[it.ProductID] = r
			}
			r.Quantity += it.Quantity
			r.Amount = round2(r.Amount + it.SalePrice*float64(it.Quantity))
		}
	}

	out := make([]ProductRank, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SalespersonStats 员工业绩，since为0时统计全部历史
func (s *Store) SalespersonStats(since int64) []SalespersonStat {
	byName := make(map[string]*SalespersonStat)
	for _, sl := range s.sales.Items() {
		if sl.CreateTime < since {
			continue
		}
		name := sl.Salesperson
		if name == "" {
			name = "老板"
		}
		st, ok := byName[name]
		if !ok {
			st = &SalespersonStat{Name: name}
			byName[name] = st
		}
		st.SalesCount++
		st.TotalAmount = round2(st.TotalAmount + sl.ActualAmount)
		st.TotalProfit = round2(st.TotalProfit + sl.Profit)
		st.Quantity += sl.Quantity()
	}

	out := make([]SalespersonStat, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TotalAmount > out[j].TotalAmount })
	return out
}

// TodaySalespersonStats 今日员工业绩
func (s *Store) TodaySalespersonStats() []SalespersonStat {
	return s.SalespersonStats(startOfDay(time.Now()).UnixMilli())
}
