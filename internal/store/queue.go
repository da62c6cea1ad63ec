package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/metrics"
)

// 离线操作队列
//
// 降级写入（云端失败但本地已接受的insert/update）在这里排队，云端恢复
// 后按入队顺序重放。队列本身也持久化在本地缓存里，进程重启不丢

// QueueKey 队列的本地缓存键
const QueueKey = "offline_operation_queue"

// 操作类型
const (
	OpInsert = "insert"
	OpUpdate = "update"
)

// Entry 一条待重放的远端写入
type Entry struct {
	Collection string     `json:"collection"`
	Op         string     `json:"op"`
	Table      string     `json:"table"`
	ID         string     `json:"id"`
	Row        remote.Row `json:"row"`
	QueuedAt   int64      `json:"queuedAt"`
}

// replayHooks 集合注册的重放回调
type replayHooks struct {
	// swapID insert重放成功后把本地id换成远端分配的UUID
	swapID func(localID string, inserted remote.Row)
	// currentRow 取实体当前状态的行（重放时用最新数据而不是入队快照）
	currentRow func(id string) (remote.Row, bool)
}

// Queue 离线操作队列
type Queue struct {
	cache  cache.Store
	client remote.Client
	log    *zap.Logger

	mu      sync.Mutex
	entries []Entry
	hooks   map[string]replayHooks
}

// NewQueue 创建队列并从本地缓存恢复未完成的条目
func NewQueue(c cache.Store, client remote.Client, log *zap.Logger) *Queue {
	q := &Queue{
		cache:  c,
		client: client,
		log:    log.With(zap.String("component", "offline_queue")),
		hooks:  make(map[string]replayHooks),
	}
	if raw, ok := c.GetItem(QueueKey); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.entries); err != nil {
			q.log.Warn("队列缓存损坏，按空队列处理", zap.Error(err))
			q.entries = nil
		}
	}
	metrics.QueueDepth.Set(float64(len(q.entries)))
	return q
}

func (q *Queue) register(collection string, hooks replayHooks) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hooks[collection] = hooks
}

func (q *Queue) persistLocked() {
	data, err := json.Marshal(q.entries)
	if err != nil {
		q.log.Error("序列化队列失败", zap.Error(err))
		return
	}
	q.cache.SetItem(QueueKey, string(data))
	metrics.QueueDepth.Set(float64(len(q.entries)))
}

// Enqueue 登记一条降级写入
// 同一实体的update条目只保留最新一条，避免队列被反复修改撑大
func (q *Queue) Enqueue(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if e.QueuedAt == 0 {
		e.QueuedAt = time.Now().UnixMilli()
	}
	if e.Op == OpUpdate {
		for i, old := range q.entries {
			if old.Op == OpUpdate && old.Collection == e.Collection && old.ID == e.ID {
				q.entries[i] = e
				q.persistLocked()
				return
			}
		}
	}
	q.entries = append(q.entries, e)
	q.persistLocked()
	q.log.Info("离线写入已入队",
		zap.String("op", e.Op),
		zap.String("table", e.Table),
		zap.String("id", e.ID))
}

// Len 队列深度
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Flush 按顺序重放队列
//
// 遇到云端失败立即停止并把剩余条目留在队列里，等下一轮再试。
// 重放insert成功后更新集合里的本地id，并把队列中引用同一本地id的
// 后续条目改写到新id上
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	pending := q.entries
	q.entries = nil
	hooks := q.hooks
	q.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var leftover []Entry
	var flushErr error
	for n := 0; n < len(pending); n++ {
		e := pending[n]
		if err := q.replay(ctx, hooks, pending[n:], e); err != nil {
			if apperrors.IsRemoteUnavailable(err) {
				// 云端还没恢复，剩下的原样留队
				leftover = pending[n:]
				flushErr = err
				break
			}
			// 非可用性错误（比如数据已在云端被删）：丢弃这条，继续
			q.log.Warn("重放条目被丢弃",
				zap.String("op", e.Op),
				zap.String("id", e.ID),
				zap.Error(err))
			continue
		}
		q.log.Info("离线写入重放成功",
			zap.String("op", e.Op),
			zap.String("table", e.Table),
			zap.String("id", e.ID))
	}

	q.mu.Lock()
	q.entries = append(leftover, q.entries...)
	q.persistLocked()
	q.mu.Unlock()
	return flushErr
}

func (q *Queue) replay(ctx context.Context, hooks map[string]replayHooks, rest []Entry, e Entry) error {
	h := hooks[e.Collection]

	row := e.Row
	if h.currentRow != nil {
		if cur, ok := h.currentRow(e.ID); ok {
			row = cur
		} else if e.Op == OpUpdate {
			// 实体已在本地被删，update没有意义
			return nil
		}
	}

	switch e.Op {
	case OpInsert:
		payload := make(remote.Row, len(row))
		for k, v := range row {
			payload[k] = v
		}
		delete(payload, "id")
		inserted, err := q.client.Insert(ctx, e.Table, []remote.Row{payload})
		if err != nil {
			return err
		}
		if len(inserted) == 1 {
			newID := remote.Str(inserted[0], "id")
			if h.swapID != nil {
				h.swapID(e.ID, inserted[0])
			}
			// 后续条目若引用同一本地id，改写到新id
			for i := range rest {
				if rest[i].Collection == e.Collection && rest[i].ID == e.ID {
					rest[i].ID = newID
				}
			}
		}
		return nil
	case OpUpdate:
		if !remote.IsRemoteID(e.ID) {
			// 对应的insert还没重放成功，本条先丢弃，insert重放会带上最新状态
			return nil
		}
		payload := make(remote.Row, len(row))
		for k, v := range row {
			payload[k] = v
		}
		delete(payload, "id")
		delete(payload, "created_at")
		return q.client.Update(ctx, e.Table, e.ID, payload)
	default:
		return nil
	}
}
