// Package store 离线优先的集合存储层
//
// 设计说明：
// 1. 每个业务集合（商品、销售单、会员……）是一个Collection[T]：本地缓存
//    里放全量JSON数组，远端对应一张表。本地是可用性的底线，远端是
//    多端一致的权威源
// 2. 写入是双写：本地先落，远端跟进。新增/修改失败时接受降级（数据
//    留在本地并进离线队列），删除失败时回滚本地（删除不可半做）
// 3. 读取是"本地种子 + 远端合并"：启动时先用缓存出数据，远端查询成功
//    后按id合并，同id冲突交给集合自己的PreferLocal裁决
// 4. 一次性迁移：首次接入云端时把纯本地数据整体上推，成功后写入
//    migrated_<集合名>标记，之后不再重复
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/metrics"
)

// Config 集合的双写与合并策略
type Config[T any] struct {
	// Name 本地缓存键（products、sales……）
	Name string
	// Table 远端表名
	Table string

	// IDOf 取实体id
	IDOf func(T) string
	// WithID 返回替换id后的实体（远端insert回填时用）
	WithID func(T, string) T
	// CreatedAt 建档毫秒时间戳，集合按它降序排列
	CreatedAt func(T) int64

	// ToRow / FromRow 实体与远端行的双向映射
	ToRow   func(T) remote.Row
	FromRow func(remote.Row) T

	// PreferLocal 同id冲突时是否保本地版本
	// 本地可能领先于云端（离线期间的修改），集合按语义字段自行判断
	PreferLocal func(local, remote T) bool
}

// Collection 单个业务集合的离线优先存储
type Collection[T any] struct {
	cfg    Config[T]
	cache  cache.Store
	client remote.Client
	queue  *Queue
	log    *zap.Logger

	mu    sync.Mutex
	items []T
}

// NewCollection 创建集合存储
// queue可以为nil：此时降级写入只留在本地，不做重放登记
func NewCollection[T any](cfg Config[T], c cache.Store, client remote.Client, queue *Queue, log *zap.Logger) *Collection[T] {
	col := &Collection[T]{
		cfg:    cfg,
		cache:  c,
		client: client,
		queue:  queue,
		log:    log.With(zap.String("collection", cfg.Name)),
	}
	if queue != nil {
		queue.register(cfg.Name, replayHooks{
			swapID:     col.applyReplayInsert,
			currentRow: col.currentRow,
		})
	}
	return col
}

// =========================================
// 本地持久化
// =========================================

func (c *Collection[T]) persistLocked() {
	data, err := json.Marshal(c.items)
	if err != nil {
		c.log.Error("序列化集合失败", zap.Error(err))
		return
	}
	c.cache.SetItem(c.cfg.Name, string(data))
}

func (c *Collection[T]) seedLocked() {
	raw, ok := c.cache.GetItem(c.cfg.Name)
	if !ok || raw == "" {
		c.items = nil
		return
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.log.Warn("本地缓存内容损坏，按空集合处理", zap.Error(err))
		c.items = nil
		return
	}
	c.items = items
}

func (c *Collection[T]) sortLocked() {
	sort.SliceStable(c.items, func(i, j int) bool {
		return c.cfg.CreatedAt(c.items[i]) > c.cfg.CreatedAt(c.items[j])
	})
}

func (c *Collection[T]) indexOfLocked(id string) int {
	for i, it := range c.items {
		if c.cfg.IDOf(it) == id {
			return i
		}
	}
	return -1
}

// =========================================
// 加载与合并
// =========================================

const migratedFlagPrefix = "migrated_"

// Load 启动加载协议：本地种子 → 一次性迁移 → 远端查询 → 合并 → 持久化
//
// 协议是幂等的：重复调用不会改变稳定态。远端失败或返回空时保持本地
// 数据原样，这是离线韧性的关键一步
func (c *Collection[T]) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seedLocked()
	c.migrateOnceLocked(ctx)

	rows, err := c.client.Select(ctx, c.cfg.Table, remote.Query{
		OrderBy: "created_at",
		Desc:    true,
	})
	if err != nil || len(rows) == 0 {
		if err != nil {
			c.log.Warn("远端查询失败，使用本地数据", zap.Error(err))
		}
		metrics.LoadFallbacks.WithLabelValues(c.cfg.Name).Inc()
		c.sortLocked()
		return nil
	}

	remoteItems := make([]T, 0, len(rows))
	for _, row := range rows {
		remoteItems = append(remoteItems, c.cfg.FromRow(row))
	}
	c.items = c.mergeLocked(remoteItems)
	c.sortLocked()
	c.persistLocked()
	return nil
}

// mergeLocked 按id合并本地与远端
// 只在远端：取远端；只在本地：保留（尚未同步的数据）；两边都有：
// PreferLocal裁决
func (c *Collection[T]) mergeLocked(remoteItems []T) []T {
	localByID := make(map[string]T, len(c.items))
	for _, it := range c.items {
		localByID[c.cfg.IDOf(it)] = it
	}

	merged := make([]T, 0, len(remoteItems)+len(c.items))
	seen := make(map[string]bool, len(remoteItems))
	for _, rm := range remoteItems {
		id := c.cfg.IDOf(rm)
		seen[id] = true
		if local, ok := localByID[id]; ok && c.cfg.PreferLocal != nil && c.cfg.PreferLocal(local, rm) {
			merged = append(merged, local)
			continue
		}
		merged = append(merged, rm)
	}
	for _, it := range c.items {
		if !seen[c.cfg.IDOf(it)] {
			merged = append(merged, it)
		}
	}
	return merged
}

// migrateOnceLocked 把纯本地数据一次性上推到云端
// 标记只在成功后写入：失败了下次启动还会再试
func (c *Collection[T]) migrateOnceLocked(ctx context.Context) {
	flagKey := migratedFlagPrefix + c.cfg.Name
	if flag, _ := c.cache.GetItem(flagKey); flag == "true" {
		return
	}

	var pending []int
	for i, it := range c.items {
		if !remote.IsRemoteID(c.cfg.IDOf(it)) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		c.cache.SetItem(flagKey, "true")
		return
	}

	rows := make([]remote.Row, 0, len(pending))
	for _, i := range pending {
		row := c.cfg.ToRow(c.items[i])
		delete(row, "id") // 本地id不上云，由远端重新分配
		rows = append(rows, row)
	}

	inserted, err := c.client.Insert(ctx, c.cfg.Table, rows)
	if err != nil {
		c.log.Warn("历史数据迁移失败，下次启动重试", zap.Error(err))
		return
	}
	for n, i := range pending {
		if n < len(inserted) {
			c.items[i] = c.cfg.WithID(c.items[i], remote.Str(inserted[n], "id"))
		}
	}
	c.cache.SetItem(flagKey, "true")
	c.persistLocked()
	c.log.Info("历史数据迁移完成", zap.Int("count", len(pending)))
}

// =========================================
// 读取
// =========================================

// Items 当前数据快照（调用方不得修改返回的切片元素内部状态）
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Get 按id取实体
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOfLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Find 按条件筛选
func (c *Collection[T]) Find(match func(T) bool) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, it := range c.items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}

// Len 集合大小
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// =========================================
// 双写变更
// =========================================

// Add 新增实体
//
// 本地先落盘，再尝试云端insert；云端成功时用返回的UUID替换本地id，
// 失败时保留local_前缀id并登记离线队列。两种情况对调用方都是成功，
// 通过Outcome区分是否已同步
func (c *Collection[T]) Add(ctx context.Context, item T) (T, dualwrite.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.IDOf(item) == "" {
		item = c.cfg.WithID(item, remote.NewLocalID())
	}

	outcome, err := dualwrite.Execute(ctx, dualwrite.Mutation{
		Name:   c.cfg.Name + ".add",
		Policy: dualwrite.AcceptOnFailure,
		ApplyLocal: func() error {
			c.items = append([]T{item}, c.items...)
			c.persistLocked()
			return nil
		},
		RemoteWrite: func(ctx context.Context) error {
			row := c.cfg.ToRow(item)
			delete(row, "id")
			inserted, err := c.client.Insert(ctx, c.cfg.Table, []remote.Row{row})
			if err != nil {
				return err
			}
			if len(inserted) == 1 {
				synced := c.cfg.WithID(item, remote.Str(inserted[0], "id"))
				if i := c.indexOfLocked(c.cfg.IDOf(item)); i >= 0 {
					c.items[i] = synced
				}
				item = synced
				c.persistLocked()
			}
			return nil
		},
	})
	if err != nil {
		var zero T
		return zero, outcome, err
	}

	if outcome == dualwrite.RemoteFailedAccepted {
		metrics.RemoteFailures.WithLabelValues(c.cfg.Table, "insert").Inc()
		c.enqueue(Entry{Collection: c.cfg.Name, Op: OpInsert, Table: c.cfg.Table,
			ID: c.cfg.IDOf(item), Row: c.cfg.ToRow(item)})
	}
	metrics.DualWriteOutcomes.WithLabelValues(c.cfg.Name, "add", outcome.String()).Inc()
	return item, outcome, nil
}

// Update 读-改-写更新
//
// mutate在锁内执行，返回修改后的实体。本地立即生效；id是远端形态时
// 跟进云端update，失败降级并登记队列。本地id的数据只改本地
func (c *Collection[T]) Update(ctx context.Context, id string, mutate func(T) (T, error)) (T, dualwrite.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(ctx, id, mutate)
}

func (c *Collection[T]) updateLocked(ctx context.Context, id string, mutate func(T) (T, error)) (T, dualwrite.Outcome, error) {
	var zero T
	i := c.indexOfLocked(id)
	if i < 0 {
		return zero, 0, apperrors.New(apperrors.ErrCodeNotFound, "记录不存在")
	}

	updated, err := mutate(c.items[i])
	if err != nil {
		return zero, 0, err
	}

	outcome, err := dualwrite.Execute(ctx, dualwrite.Mutation{
		Name:   c.cfg.Name + ".update",
		Policy: dualwrite.AcceptOnFailure,
		ApplyLocal: func() error {
			c.items[i] = updated
			c.persistLocked()
			return nil
		},
		RemoteWrite: func(ctx context.Context) error {
			if !remote.IsRemoteID(id) {
				return nil
			}
			row := c.cfg.ToRow(updated)
			delete(row, "id")
			delete(row, "created_at")
			return c.client.Update(ctx, c.cfg.Table, id, row)
		},
	})
	if err != nil {
		return zero, outcome, err
	}

	if outcome == dualwrite.RemoteFailedAccepted {
		metrics.RemoteFailures.WithLabelValues(c.cfg.Table, "update").Inc()
		c.enqueue(Entry{Collection: c.cfg.Name, Op: OpUpdate, Table: c.cfg.Table,
			ID: id, Row: c.cfg.ToRow(updated)})
	}
	metrics.DualWriteOutcomes.WithLabelValues(c.cfg.Name, "update", outcome.String()).Inc()
	return updated, outcome, nil
}

// UpdateBatch 同一把锁内的批量读-改-写
//
// 先对全部id执行检查与计算，任何一条失败则整体不落盘；全部通过后
// 一次性应用并持久化，远端逐条跟进。多行销售扣库存的原子性靠它保证
func (c *Collection[T]) UpdateBatch(ctx context.Context, ids []string, mutate func(id string, cur T) (T, error)) ([]T, dualwrite.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 预检阶段：全部算完再动手
	idx := make([]int, len(ids))
	updated := make([]T, len(ids))
	for n, id := range ids {
		i := c.indexOfLocked(id)
		if i < 0 {
			return nil, 0, apperrors.New(apperrors.ErrCodeNotFound, "记录不存在")
		}
		u, err := mutate(id, c.items[i])
		if err != nil {
			return nil, 0, err
		}
		idx[n], updated[n] = i, u
	}

	for n, i := range idx {
		c.items[i] = updated[n]
	}
	c.persistLocked()

	outcome := dualwrite.RemoteConfirmed
	for n, id := range ids {
		if !remote.IsRemoteID(id) {
			continue
		}
		row := c.cfg.ToRow(updated[n])
		delete(row, "id")
		delete(row, "created_at")
		if err := c.client.Update(ctx, c.cfg.Table, id, row); err != nil {
			outcome = dualwrite.RemoteFailedAccepted
			metrics.RemoteFailures.WithLabelValues(c.cfg.Table, "update").Inc()
			c.enqueue(Entry{Collection: c.cfg.Name, Op: OpUpdate, Table: c.cfg.Table,
				ID: id, Row: c.cfg.ToRow(updated[n])})
		}
	}
	metrics.DualWriteOutcomes.WithLabelValues(c.cfg.Name, "update_batch", outcome.String()).Inc()
	return updated, outcome, nil
}

// Delete 删除实体
//
// 删除走回滚策略：先从本地摘除，远端delete失败时把数据放回原位并向
// 调用方报错。半删除状态（本地没了云端还在）会在下次合并时诈尸，
// 所以删除不接受降级
func (c *Collection[T]) Delete(ctx context.Context, id string) (dualwrite.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(ctx, id)
}

func (c *Collection[T]) deleteLocked(ctx context.Context, id string) (dualwrite.Outcome, error) {
	i := c.indexOfLocked(id)
	if i < 0 {
		return 0, apperrors.New(apperrors.ErrCodeNotFound, "记录不存在")
	}
	removed := c.items[i]

	outcome, err := dualwrite.Execute(ctx, dualwrite.Mutation{
		Name:   c.cfg.Name + ".delete",
		Policy: dualwrite.RollbackOnFailure,
		ApplyLocal: func() error {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.persistLocked()
			return nil
		},
		RemoteWrite: func(ctx context.Context) error {
			if !remote.IsRemoteID(id) {
				return nil
			}
			return c.client.Delete(ctx, c.cfg.Table, id)
		},
		Rollback: func() error {
			rest := append([]T{}, c.items...)
			c.items = append(rest[:i], append([]T{removed}, rest[i:]...)...)
			c.persistLocked()
			return nil
		},
	})

	if outcome == dualwrite.RemoteFailedRolledBack {
		metrics.RemoteFailures.WithLabelValues(c.cfg.Table, "delete").Inc()
	}
	metrics.DualWriteOutcomes.WithLabelValues(c.cfg.Name, "delete", outcome.String()).Inc()
	return outcome, err
}

func (c *Collection[T]) enqueue(e Entry) {
	if c.queue == nil {
		return
	}
	c.queue.Enqueue(e)
}

// applyReplayInsert 离线队列重放insert成功后的id回填
func (c *Collection[T]) applyReplayInsert(localID string, inserted remote.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOfLocked(localID); i >= 0 {
		c.items[i] = c.cfg.WithID(c.items[i], remote.Str(inserted, "id"))
		c.persistLocked()
	}
}

// currentRow 取实体当前状态的行，队列重放时用最新数据替代入队快照
func (c *Collection[T]) currentRow(id string) (remote.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOfLocked(id); i >= 0 {
		return c.cfg.ToRow(c.items[i]), true
	}
	return nil, false
}
