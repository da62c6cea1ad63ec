package oplog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/pkg/metrics"
)

const (
	cacheKey = "operationLogs"
	table    = "operation_logs"

	// remoteFetchLimit 云端审计按时间降序最多取这么多条，老日志靠
	// ClearOld清理而不是无限加载
	remoteFetchLimit = 1000
)

// Store 审计日志存储
//
// 不走通用集合的双写路径：审计没有"降级/回滚"的语义，本地永远同步
// 写，云端异步补写且失败只计数
type Store struct {
	cache  cache.Store
	client remote.Client
	log    *zap.Logger

	mu      sync.Mutex
	entries []Entry

	// wg追踪在途的异步云端写入，测试与优雅退出用
	wg sync.WaitGroup
}

// NewStore 创建审计存储
func NewStore(c cache.Store, client remote.Client, log *zap.Logger) *Store {
	return &Store{
		cache:  c,
		client: client,
		log:    log.With(zap.String("store", "oplog")),
	}
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		s.log.Error("序列化审计日志失败", zap.Error(err))
		return
	}
	s.cache.SetItem(cacheKey, string(data))
}

func newEntryID() string {
	return fmt.Sprintf("log_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}

// Append 追加一条审计记录
//
// 本地同步落盘后立即返回；云端insert在独立goroutine里补写，失败只
// 记日志和计数，绝不回传给调用方
func (s *Store) Append(op Operator, e Entry) Entry {
	if e.ID == "" {
		e.ID = newEntryID()
	}
	if e.CreateTime == 0 {
		e.CreateTime = time.Now().UnixMilli()
	}
	e.UserID = op.UserID
	e.Username = op.Username

	s.mu.Lock()
	s.entries = append([]Entry{e}, s.entries...)
	s.persistLocked()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		row := toRow(e)
		delete(row, "id")
		inserted, err := s.client.Insert(ctx, table, []remote.Row{row})
		if err != nil {
			metrics.AuditDrops.Inc()
			s.log.Warn("审计日志云端写入失败",
				zap.String("operation", e.OperationType),
				zap.String("target", e.TargetID),
				zap.Error(err))
			return
		}
		if len(inserted) == 1 {
			s.swapID(e.ID, remote.Str(inserted[0], "id"))
		}
	}()
	return e
}

func (s *Store) swapID(oldID, newID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == oldID {
			s.entries[i].ID = newID
			s.persistLocked()
			return
		}
	}
}

// Wait 等待在途的云端写入结束
func (s *Store) Wait() {
	s.wg.Wait()
}

// Load 加载审计日志
// 云端（时间降序，封顶remoteFetchLimit条）与本地未同步的条目按id
// 并集合并，重新按时间降序排列
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := s.cache.GetItem(cacheKey); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &s.entries); err != nil {
			s.log.Warn("本地审计缓存损坏，按空处理", zap.Error(err))
			s.entries = nil
		}
	}

	rows, err := s.client.Select(ctx, table, remote.Query{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   remoteFetchLimit,
	})
	if err != nil {
		s.log.Warn("云端审计日志拉取失败，使用本地数据", zap.Error(err))
		s.sortLocked()
		return nil
	}

	seen := make(map[string]bool, len(rows))
	merged := make([]Entry, 0, len(rows)+len(s.entries))
	for _, row := range rows {
		e := fromRow(row)
		seen[e.ID] = true
		merged = append(merged, e)
	}
	for _, e := range s.entries {
		if !seen[e.ID] {
			merged = append(merged, e)
		}
	}
	s.entries = merged
	s.sortLocked()
	s.persistLocked()
	return nil
}

func (s *Store) sortLocked() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		return s.entries[i].CreateTime > s.entries[j].CreateTime
	})
}

// List 当前日志快照，时间降序
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Filter 按条件筛选
func (s *Store) Filter(match func(Entry) bool) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

// ClearOld 清理days天前的日志
// 本地直接截掉；云端逐条删除已知id，失败不阻塞清理结果
func (s *Store) ClearOld(ctx context.Context, days int) int {
	if days <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	s.mu.Lock()
	var kept []Entry
	var removed []Entry
	for _, e := range s.entries {
		if e.CreateTime >= cutoff {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
	}
	s.entries = kept
	s.persistLocked()
	s.mu.Unlock()

	for _, e := range removed {
		if !remote.IsRemoteID(e.ID) {
			continue
		}
		if err := s.client.Delete(ctx, table, e.ID); err != nil {
			s.log.Warn("云端审计日志删除失败", zap.String("id", e.ID), zap.Error(err))
		}
	}
	return len(removed)
}
