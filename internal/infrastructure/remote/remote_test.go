package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"go.uber.org/zap"
)

func TestIDConventions(t *testing.T) {
	t.Run("UUID形态识别为远端id", func(t *testing.T) {
		assert.True(t, IsRemoteID("550e8400-e29b-41d4-a716-446655440000"))
	})

	t.Run("本地id不会被误判", func(t *testing.T) {
		assert.False(t, IsRemoteID(NewLocalID()))
		assert.False(t, IsRemoteID("local_1735000000000_000042"))
		assert.False(t, IsRemoteID(""))
		// 大写UUID不是远端约定的形态
		assert.False(t, IsRemoteID("550E8400-E29B-41D4-A716-446655440000"))
	})
}

func TestRowHelpers(t *testing.T) {
	row := Row{
		"name":       "帆布鞋",
		"price":      float64(199.5),
		"stock":      int64(10),
		"created_at": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	assert.Equal(t, "帆布鞋", Str(row, "name"))
	assert.Equal(t, "", Str(row, "missing"))
	assert.Equal(t, 199.5, Float(row, "price", 0))
	assert.Equal(t, 10.0, Float(row, "stock", 0))
	assert.Equal(t, -1.0, Float(row, "missing", -1))
	assert.Equal(t, 10, Int(row, "stock", 0))
	assert.Equal(t, 7, Int(row, "missing", 7))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli(), Millis(row, "created_at"))
	assert.EqualValues(t, 0, Millis(row, "missing"))
}

func TestMemoryClient(t *testing.T) {
	ctx := context.Background()

	t.Run("插入分配UUID主键", func(t *testing.T) {
		m := NewMemory()
		rows, err := m.Insert(ctx, "products", []Row{{"name": "运动鞋"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, IsRemoteID(Str(rows[0], "id")))
		assert.Len(t, m.Rows("products"), 1)
	})

	t.Run("按过滤条件查询", func(t *testing.T) {
		m := NewMemory()
		m.Seed("products",
			Row{"id": "a", "brand": "耐克"},
			Row{"id": "b", "brand": "李宁"})
		rows, err := m.Select(ctx, "products", Query{Filters: Filters{"brand": "李宁"}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "b", Str(rows[0], "id"))
	})

	t.Run("精确注入某表某操作的失败", func(t *testing.T) {
		m := NewMemory()
		m.ErrOps = map[string]error{"insert:sales": errors.New("网络断开")}

		_, err := m.Insert(ctx, "sales", []Row{{"total": 100.0}})
		require.Error(t, err)
		assert.True(t, apperrors.IsRemoteUnavailable(err))

		// 其他表不受影响
		_, err = m.Insert(ctx, "products", []Row{{"name": "x"}})
		assert.NoError(t, err)
	})

	t.Run("更新与删除", func(t *testing.T) {
		m := NewMemory()
		m.Seed("members", Row{"id": "m1", "balance": 50.0})

		require.NoError(t, m.Update(ctx, "members", "m1", Row{"balance": 80.0}))
		rows := m.Rows("members")
		assert.Equal(t, 80.0, Float(rows[0], "balance", 0))

		require.NoError(t, m.Delete(ctx, "members", "m1"))
		assert.Empty(t, m.Rows("members"))
	})
}

func TestBreaker(t *testing.T) {
	ctx := context.Background()

	newFailing := func() *Memory {
		m := NewMemory()
		m.Err = errors.New("连接超时")
		return m
	}

	t.Run("连续失败达到阈值后打开", func(t *testing.T) {
		m := newFailing()
		b := NewBreaker(m, BreakerConfig{MaxFailures: 3, ResetTimeout: time.Minute}, zap.NewNop())

		for i := 0; i < 3; i++ {
			_, err := b.Select(ctx, "products", Query{})
			require.Error(t, err)
		}
		assert.Equal(t, "open", b.State())

		// 打开后快速失败，不再穿透到内层
		_, err := b.Select(ctx, "products", Query{})
		require.Error(t, err)
		assert.True(t, apperrors.IsRemoteUnavailable(err))
	})

	t.Run("超时后半开且探测成功则关闭", func(t *testing.T) {
		m := newFailing()
		b := NewBreaker(m, BreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond}, zap.NewNop())

		_, _ = b.Select(ctx, "products", Query{})
		assert.Equal(t, "open", b.State())

		time.Sleep(15 * time.Millisecond)
		m.Err = nil // 云端恢复
		_, err := b.Select(ctx, "products", Query{})
		require.NoError(t, err)
		assert.Equal(t, "closed", b.State())
	})

	t.Run("半开探测失败回到打开", func(t *testing.T) {
		m := newFailing()
		b := NewBreaker(m, BreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond}, zap.NewNop())

		_, _ = b.Select(ctx, "products", Query{})
		time.Sleep(15 * time.Millisecond)
		_, err := b.Select(ctx, "products", Query{})
		require.Error(t, err)
		assert.Equal(t, "open", b.State())
	})
}
