package oplog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
)

var boss = Operator{UserID: "u1", Username: "admin"}

func newTestStore(t *testing.T) (*Store, *remote.Memory, cache.Store) {
	t.Helper()
	mem := cache.NewMemoryStore()
	client := remote.NewMemory()
	s := NewStore(mem, client, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	return s, client, mem
}

func TestAppend(t *testing.T) {
	t.Run("本地同步落盘云端异步补写", func(t *testing.T) {
		s, client, mem := newTestStore(t)

		e := s.Append(boss, Entry{OperationType: OpSale, TargetType: "sale", TargetName: "XS123"})
		assert.True(t, strings.HasPrefix(e.ID, "log_"))
		assert.Equal(t, "admin", e.Username)

		// 本地立即可见
		raw, ok := mem.GetItem("operationLogs")
		require.True(t, ok)
		assert.Contains(t, raw, "XS123")

		// 云端写入完成后id换成远端形态
		s.Wait()
		require.Len(t, client.Rows("operation_logs"), 1)
		entries := s.List()
		require.Len(t, entries, 1)
		assert.True(t, remote.IsRemoteID(entries[0].ID))
	})

	t.Run("云端失败不影响调用方", func(t *testing.T) {
		s, client, _ := newTestStore(t)
		client.Err = errors.New("断网")

		e := s.Append(boss, Entry{OperationType: OpDelete, TargetType: "product"})
		s.Wait()

		assert.NotEmpty(t, e.ID)
		entries := s.List()
		require.Len(t, entries, 1)
		assert.False(t, remote.IsRemoteID(entries[0].ID), "未同步的条目保持本地id")
	})
}

func TestLoadMerge(t *testing.T) {
	t.Run("云端与本地按id并集", func(t *testing.T) {
		mem := cache.NewMemoryStore()
		client := remote.NewMemory()
		const cloudID = "55555555-5555-4555-8555-555555555555"

		mem.SetItem("operationLogs",
			`[{"id":"log_100_000001","operationType":"sale","createTime":100},`+
				`{"id":"`+cloudID+`","operationType":"login","createTime":50}]`)
		client.Seed("operation_logs",
			remote.Row{"id": cloudID, "operation_type": "login", "create_time": float64(50)},
			remote.Row{"id": "66666666-6666-4666-8666-666666666666", "operation_type": "add", "create_time": float64(200)})

		s := NewStore(mem, client, zap.NewNop())
		require.NoError(t, s.Load(context.Background()))

		entries := s.List()
		require.Len(t, entries, 3, "同id只出现一次")
		assert.Equal(t, "add", entries[0].OperationType, "时间降序")
		assert.Equal(t, "sale", entries[1].OperationType)
	})

	t.Run("云端不可用时保留本地", func(t *testing.T) {
		mem := cache.NewMemoryStore()
		client := remote.NewMemory()
		client.Err = errors.New("断网")
		mem.SetItem("operationLogs", `[{"id":"log_100_000001","operationType":"sale","createTime":100}]`)

		s := NewStore(mem, client, zap.NewNop())
		require.NoError(t, s.Load(context.Background()))
		assert.Len(t, s.List(), 1)
	})
}

func TestFilter(t *testing.T) {
	s, _, _ := newTestStore(t)
	s.Append(boss, Entry{OperationType: OpSale, TargetType: "sale"})
	s.Append(boss, Entry{OperationType: OpAdd, TargetType: "product"})
	s.Wait()

	sales := s.Filter(func(e Entry) bool { return e.OperationType == OpSale })
	assert.Len(t, sales, 1)
}

func TestClearOld(t *testing.T) {
	s, client, _ := newTestStore(t)
	const oldID = "77777777-7777-4777-8777-777777777777"

	client.Seed("operation_logs", remote.Row{
		"id": oldID, "operation_type": "sale",
		"create_time": float64(time.Now().AddDate(0, 0, -60).UnixMilli()),
	})
	require.NoError(t, s.Load(context.Background()))
	s.Append(boss, Entry{OperationType: OpAdd})
	s.Wait()
	require.Len(t, s.List(), 2)

	removed := s.ClearOld(context.Background(), 30)
	assert.Equal(t, 1, removed)
	assert.Len(t, s.List(), 1)

	// 云端的老日志也被删掉
	for _, row := range client.Rows("operation_logs") {
		assert.NotEqual(t, oldID, remote.Str(row, "id"))
	}
}
