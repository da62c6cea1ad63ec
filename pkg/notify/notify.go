// Package notify 库存预警通知
//
// 设计说明：
// 1. 通知是数据层的外部协作者：商品集合加载/库存变更后调用，
//    但通知失败绝不影响业务操作结果
// 2. 两个实现：日志通知（默认，零依赖）与RabbitMQ事件发布
//    （门店多端部署时由消费端推送到收银终端）
package notify

// StockAlert 单个商品的库存告警
type StockAlert struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	MinStock  int    `json:"min_stock"`
}

// Notifier 库存预警通知接口
// 低库存：0 < stock <= 阈值；零库存：stock == 0
type Notifier interface {
	LowStock(alerts []StockAlert)
	ZeroStock(alerts []StockAlert)
}

// Nop 空实现（测试或禁用通知时使用）
type Nop struct{}

func (Nop) LowStock(alerts []StockAlert)  {}
func (Nop) ZeroStock(alerts []StockAlert) {}
