// Package metrics 提供基于Prometheus的指标收集
//
// 指标设计（离线优先数据层关心的三件事）：
// 1. 双写结局分布：remote_confirmed / remote_failed_accepted /
//    remote_failed_rolled_back，降级比例升高意味着云端出问题了
// 2. 远端调用失败：按表、按操作统计，配合熔断器观察恢复情况
// 3. 库存台账变更与审计日志丢弃：对账时的第一手线索
//
// 命名规范：Counter以_total结尾，标签只用低基数维度（集合名、操作、结局）
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DualWriteOutcomes 双写结局计数
	// 标签：collection=集合名，op=add|update|delete，outcome=结局
	DualWriteOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoepos_dualwrite_outcomes_total",
		Help: "双写变更按最终结局的计数",
	}, []string{"collection", "op", "outcome"})

	// RemoteFailures 远端存储调用失败计数
	RemoteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoepos_remote_failures_total",
		Help: "远端存储调用失败计数",
	}, []string{"table", "op"})

	// LoadFallbacks 加载时回退本地快照的次数
	// 云端select失败或返回空时计数，持续增长说明长期离线
	LoadFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoepos_load_fallbacks_total",
		Help: "load时云端不可用回退本地快照的计数",
	}, []string{"collection"})

	// StockAdjustments 库存台账调整计数
	StockAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shoepos_stock_adjustments_total",
		Help: "库存调整计数（按方向）",
	}, []string{"direction"})

	// AuditDrops 审计日志远端写入失败计数
	// 审计是尽力而为的，失败不阻塞业务，但必须可观测
	AuditDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shoepos_audit_remote_drops_total",
		Help: "审计日志云端写入失败计数",
	})

	// QueueDepth 离线操作队列当前深度
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shoepos_offline_queue_depth",
		Help: "待补同步的离线操作数",
	})
)
