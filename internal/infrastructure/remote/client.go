// Package remote 远端权威存储客户端
//
// 设计说明：
// 1. 远端是表格型后端：按表名select/insert/update/delete，行是snake_case
//    的松散字段集合（Row）；各实体store自己持有双向字段映射
// 2. 远端调用被视为高延迟且随时可能失败的：所有方法接收context，
//    实现必须有超时，失败以RemoteUnavailable语义返回而不是无限挂起
// 3. 三个实现：GormClient（生产，MySQL）、Memory（纯离线部署与测试）、
//    Breaker（熔断包装器，云端持续故障时快速失败）
package remote

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"time"
)

// Row 远端行：snake_case字段名到值的松散映射
type Row map[string]any

// Filters 等值过滤条件（字段名 → 期望值）
type Filters map[string]any

// Query select查询参数
type Query struct {
	Filters Filters // 等值过滤，nil表示全表
	OrderBy string  // 排序字段（如 created_at）
	Desc    bool    // 是否降序
	Limit   int     // 0表示不限制
}

// Client 远端存储客户端接口
type Client interface {
	// Select 查询行集合
	Select(ctx context.Context, table string, q Query) ([]Row, error)

	// Insert 插入行，返回写入后的行（含远端分配的id、created_at）
	Insert(ctx context.Context, table string, rows []Row) ([]Row, error)

	// Update 按id局部更新
	Update(ctx context.Context, table string, id string, patch Row) error

	// Delete 按id删除
	Delete(ctx context.Context, table string, id string) error
}

// =========================================
// id形态约定
// =========================================
// 远端id：canonical UUID（8-4-4-4-12小写十六进制）
// 本地id：local_前缀+毫秒时间戳+随机尾缀，远端写入失败降级时分配
// 这个区分是有语义负载的：删除/更新时据此判断是否还需要动远端

var remoteIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsRemoteID 判断id是否为远端分配的UUID形态
func IsRemoteID(id string) bool {
	return remoteIDPattern.MatchString(id)
}

// NewLocalID 生成本地id（可识别的local_前缀）
func NewLocalID() string {
	return fmt.Sprintf("local_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}

// =========================================
// 行字段安全取值（文档化的默认值兜底）
// =========================================
// 远端行经过JSON/驱动转换后数值类型不稳定（float64、int64、string都可能
// 出现），映射函数用这些helper做带默认值的安全解析

// Str 取字符串字段，缺失或类型不符返回空串
func Str(r Row, key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Float 取数值字段，缺失时返回def
func Float(r Row, key string, def float64) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
			return f
		}
	}
	return def
}

// Int 取整数字段，缺失时返回def
func Int(r Row, key string, def int) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

// Millis 取时间字段为毫秒时间戳
// 兼容三种形态：驱动返回的time.Time、RFC3339字符串、JSON数值
func Millis(r Row, key string) int64 {
	switch v := r[key].(type) {
	case time.Time:
		return v.UnixMilli()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UnixMilli()
		}
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t.UnixMilli()
		}
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}
