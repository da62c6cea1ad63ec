package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/domain/returns"
	"github.com/xiebiao/shoepos/internal/domain/sale"
	"github.com/xiebiao/shoepos/internal/domain/user"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	"github.com/xiebiao/shoepos/pkg/response"
)

// StatsHandler 经营统计HTTP处理器
// 统计都来自本地工作集，断网时照常可用
type StatsHandler struct {
	sales    *sale.Store
	products *product.Store
	returns  *returns.Store
}

// NewStatsHandler 创建统计处理器
func NewStatsHandler(sales *sale.Store, products *product.Store, rs *returns.Store) *StatsHandler {
	return &StatsHandler{sales: sales, products: products, returns: rs}
}

// Dashboard 首页看板汇总
// GET /api/v1/stats/dashboard
func (h *StatsHandler) Dashboard(c *gin.Context) {
	today := h.sales.TodaySummary()
	month := h.sales.MonthSummary()
	returnCount, exchangeCount, returnAmount, exchangeAmount := h.returns.TodaySummary()

	data := gin.H{
		"today":           today,
		"month":           month,
		"lowStockCount":   len(h.products.LowStockList()),
		"totalStockValue": h.products.TotalStockValue(),
		"todayReturns": gin.H{
			"returnCount":    returnCount,
			"exchangeCount":  exchangeCount,
			"returnAmount":   returnAmount,
			"exchangeAmount": exchangeAmount,
		},
	}

	// 利润只给有权限的角色看
	if !user.HasPermission(middleware.GetRole(c), user.PermStatsProfit) {
		today.Profit = 0
		month.Profit = 0
		data["today"] = today
		data["month"] = month
	}

	response.Success(c, data)
}

// Summary 销售汇总（today | month | total）
// GET /api/v1/stats/summary?period=today
func (h *StatsHandler) Summary(c *gin.Context) {
	var sum sale.Summary
	switch c.DefaultQuery("period", "today") {
	case "month":
		sum = h.sales.MonthSummary()
	case "total":
		sum = h.sales.TotalSummary()
	default:
		sum = h.sales.TodaySummary()
	}
	response.Success(c, sum)
}

// Trend 近N天营收趋势
// GET /api/v1/stats/trend?days=7
func (h *StatsHandler) Trend(c *gin.Context) {
	response.Success(c, h.sales.Trend(parseIntQuery(c.Query("days"), 7, 90)))
}

// TopProducts 热销商品排行
// GET /api/v1/stats/top-products?limit=10
func (h *StatsHandler) TopProducts(c *gin.Context) {
	response.Success(c, h.sales.TopProducts(parseLimit(c, 10, 100)))
}

// Salesperson 员工业绩
// GET /api/v1/stats/salesperson?period=today
// 店员只能看当天自己的，店长/老板能看全部
func (h *StatsHandler) Salesperson(c *gin.Context) {
	role := middleware.GetRole(c)

	var stats []sale.SalespersonStat
	if c.DefaultQuery("period", "today") == "today" {
		stats = h.sales.TodaySalespersonStats()
	} else {
		stats = h.sales.SalespersonStats(0)
	}

	if !user.HasPermission(role, user.PermStaffStatsAll) {
		name := middleware.GetUsername(c)
		own := make([]sale.SalespersonStat, 0, 1)
		for _, st := range stats {
			if st.Name == name {
				own = append(own, st)
			}
		}
		stats = own
	}

	response.Success(c, stats)
}

// parseIntQuery 解析整数查询参数，非法或越界时退回默认值
func parseIntQuery(raw string, def, max int) int {
	n := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return def
		}
		n = n*10 + int(r-'0')
		if n > max {
			return def
		}
	}
	if n <= 0 {
		return def
	}
	return n
}
