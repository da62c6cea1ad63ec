package remote

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// Memory 内存远端实现
//
// 两个用途：
// 1. 测试：ErrOps可以按 "操作:表名" 精确注入失败，模拟云端部分不可用
// 2. 纯离线部署：配置关闭远端时注入一个Memory实例，所有远端写"成功"
//    但数据只活在进程里，进程退出即丢（本地缓存仍然持久）
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row

	// Err 非nil时所有操作失败
	Err error
	// ErrOps 精确注入：键为 "insert:sales" 这类 操作:表名 组合
	ErrOps map[string]error
}

// NewMemory 创建空的内存远端
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

func (m *Memory) fail(op, table string) error {
	if m.Err != nil {
		return apperrors.WrapCode(apperrors.ErrCodeRemoteUnavailable, m.Err, "云端不可用")
	}
	if err, ok := m.ErrOps[op+":"+table]; ok && err != nil {
		return apperrors.WrapCode(apperrors.ErrCodeRemoteUnavailable, err, "云端不可用")
	}
	return nil
}

func cloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Select 查询行集合
func (m *Memory) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("select", table); err != nil {
		return nil, err
	}

	var out []Row
	for _, row := range m.tables[table] {
		match := true
		for k, want := range q.Filters {
			if row[k] != want {
				match = false
				break
			}
		}
		if match {
			out = append(out, cloneRow(row))
		}
	}

	if q.OrderBy != "" {
		key := q.OrderBy
		sort.SliceStable(out, func(i, j int) bool {
			a, b := Millis(out[i], key), Millis(out[j], key)
			if a == 0 && b == 0 {
				a, b = int64(Float(out[i], key, 0)), int64(Float(out[j], key, 0))
			}
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert 插入行
func (m *Memory) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert", table); err != nil {
		return nil, err
	}

	inserted := make([]Row, len(rows))
	for i, r := range rows {
		row := cloneRow(r)
		if Str(row, "id") == "" || !IsRemoteID(Str(row, "id")) {
			row["id"] = uuid.NewString()
		}
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = time.Now()
		}
		m.tables[table] = append(m.tables[table], cloneRow(row))
		inserted[i] = row
	}
	return inserted, nil
}

// Update 按id局部更新
func (m *Memory) Update(ctx context.Context, table string, id string, patch Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update", table); err != nil {
		return err
	}

	for _, row := range m.tables[table] {
		if Str(row, "id") == id {
			for k, v := range patch {
				row[k] = v
			}
			return nil
		}
	}
	return nil
}

// Delete 按id删除
func (m *Memory) Delete(ctx context.Context, table string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete", table); err != nil {
		return err
	}

	rows := m.tables[table]
	for i, row := range rows {
		if Str(row, "id") == id {
			m.tables[table] = append(rows[:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows 返回表的当前内容快照，测试断言用
func (m *Memory) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, len(m.tables[table]))
	for i, r := range m.tables[table] {
		out[i] = cloneRow(r)
	}
	return out
}

// Seed 直接放入一行（不分配id），测试构造远端既有数据用
func (m *Memory) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], cloneRow(r))
	}
}
