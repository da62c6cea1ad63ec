package product

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/notify"
)

type recordingNotifier struct {
	mu   sync.Mutex
	low  [][]notify.StockAlert
	zero [][]notify.StockAlert
}

func (r *recordingNotifier) LowStock(alerts []notify.StockAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.low = append(r.low, alerts)
}

func (r *recordingNotifier) ZeroStock(alerts []notify.StockAlert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zero = append(r.zero, alerts)
}

func newTestStore(t *testing.T) (*Store, *remote.Memory, *recordingNotifier) {
	t.Helper()
	mem := cache.NewMemoryStore()
	client := remote.NewMemory()
	queue := store.NewQueue(mem, client, zap.NewNop())
	n := &recordingNotifier{}
	s := NewStore(mem, client, queue, n, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))
	return s, client, n
}

func mustAdd(t *testing.T, s *Store, p Product) Product {
	t.Helper()
	added, _, err := s.Add(context.Background(), p)
	require.NoError(t, err)
	return added
}

func TestAddAndSearch(t *testing.T) {
	s, client, _ := newTestStore(t)

	p := mustAdd(t, s, Product{Name: "耐克 Air Max 270", Brand: "耐克", Category: "运动鞋",
		Code: "AM270", CostPrice: 450, SalePrice: 899, Stock: 15, MinStock: 5})
	assert.True(t, remote.IsRemoteID(p.ID))
	assert.Len(t, client.Rows("products"), 1)

	t.Run("按品牌搜索", func(t *testing.T) {
		assert.Len(t, s.Search("耐克"), 1)
		assert.Empty(t, s.Search("阿迪"))
	})

	t.Run("按货号搜索", func(t *testing.T) {
		assert.Len(t, s.Search("am270"), 1)
	})

	t.Run("名称为空被拒绝", func(t *testing.T) {
		_, _, err := s.Add(context.Background(), Product{Stock: 1})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidParams))
	})
}

func TestAdjustStock(t *testing.T) {
	ctx := context.Background()

	t.Run("增减库存", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		p := mustAdd(t, s, Product{Name: "鞋", Stock: 10, MinStock: 2})

		got, _, err := s.AdjustStock(ctx, p.ID, 3, Decrease)
		require.NoError(t, err)
		assert.Equal(t, 7, got.Stock)

		got, _, err = s.AdjustStock(ctx, p.ID, 5, Increase)
		require.NoError(t, err)
		assert.Equal(t, 12, got.Stock)
	})

	t.Run("超量扣减报库存不足", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		p := mustAdd(t, s, Product{Name: "鞋", Stock: 2, MinStock: 0})

		_, _, err := s.AdjustStock(ctx, p.ID, 3, Decrease)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientStock))

		got, err := s.Get(p.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Stock, "失败的扣减不得改动库存")
	})

	t.Run("商品不存在", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, _, err := s.AdjustStock(ctx, "missing", 1, Increase)
		assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	})
}

func TestAdjustStockAll(t *testing.T) {
	ctx := context.Background()

	t.Run("任一条不足则整批不生效", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		a := mustAdd(t, s, Product{Name: "鞋A", Stock: 10})
		b := mustAdd(t, s, Product{Name: "鞋B", Stock: 1})

		_, err := s.AdjustStockAll(ctx, []Adjustment{
			{ProductID: a.ID, Quantity: 2, Direction: Decrease},
			{ProductID: b.ID, Quantity: 5, Direction: Decrease},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientStock))

		gotA, _ := s.Get(a.ID)
		gotB, _ := s.Get(b.ID)
		assert.Equal(t, 10, gotA.Stock, "前面的行也不能先扣掉")
		assert.Equal(t, 1, gotB.Stock)
	})

	t.Run("全部满足时一并扣减", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		a := mustAdd(t, s, Product{Name: "鞋A", Stock: 10})
		b := mustAdd(t, s, Product{Name: "鞋B", Stock: 6})

		_, err := s.AdjustStockAll(ctx, []Adjustment{
			{ProductID: a.ID, Quantity: 2, Direction: Decrease},
			{ProductID: b.ID, Quantity: 5, Direction: Decrease},
		})
		require.NoError(t, err)

		gotA, _ := s.Get(a.ID)
		gotB, _ := s.Get(b.ID)
		assert.Equal(t, 8, gotA.Stock)
		assert.Equal(t, 1, gotB.Stock)
	})

	t.Run("同一商品多行合并判断余量", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		a := mustAdd(t, s, Product{Name: "鞋A", Stock: 5})

		// 两行合计6超过库存5，哪怕单行都不超
		_, err := s.AdjustStockAll(ctx, []Adjustment{
			{ProductID: a.ID, Quantity: 3, Direction: Decrease},
			{ProductID: a.ID, Quantity: 3, Direction: Decrease},
		})
		require.Error(t, err)
		got, _ := s.Get(a.ID)
		assert.Equal(t, 5, got.Stock)
	})
}

func TestWeightedAverageCost(t *testing.T) {
	t.Run("既有库存按数量加权", func(t *testing.T) {
		// (10*100 + 5*130) / 15 = 110.00
		assert.Equal(t, 110.00, WeightedAverageCost(10, 100, 5, 130))
	})

	t.Run("零库存直接取新进价", func(t *testing.T) {
		assert.Equal(t, 130.00, WeightedAverageCost(0, 100, 5, 130))
	})

	t.Run("负库存同零库存处理", func(t *testing.T) {
		assert.Equal(t, 130.00, WeightedAverageCost(-2, 100, 5, 130))
	})

	t.Run("结果保留两位小数", func(t *testing.T) {
		// (3*100 + 1*95) / 4 = 98.75
		assert.Equal(t, 98.75, WeightedAverageCost(3, 100, 1, 95))
		// (7*88.88 + 2*99.99) / 9 = 91.349...
		assert.Equal(t, 91.35, WeightedAverageCost(7, 88.88, 2, 99.99))
	})
}

func TestApplyPurchase(t *testing.T) {
	ctx := context.Background()

	t.Run("库存与均价在同一次更新里生效", func(t *testing.T) {
		s, client, _ := newTestStore(t)
		p := mustAdd(t, s, Product{Name: "鞋", Stock: 10, CostPrice: 100})

		got, _, err := s.ApplyPurchase(ctx, p.ID, 5, 130)
		require.NoError(t, err)
		assert.Equal(t, 15, got.Stock)
		assert.Equal(t, 110.00, got.CostPrice)

		// 远端同样拿到两个字段
		rows := client.Rows("products")
		require.Len(t, rows, 1)
		assert.Equal(t, 15, remote.Int(rows[0], "stock", 0))
		assert.Equal(t, 110.00, remote.Float(rows[0], "cost_price", 0))
	})

	t.Run("商品不存在", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, _, err := s.ApplyPurchase(ctx, "missing", 5, 130)
		assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	})
}

func TestThresholdNotifications(t *testing.T) {
	ctx := context.Background()
	s, _, n := newTestStore(t)
	p := mustAdd(t, s, Product{Name: "鞋", Stock: 6, MinStock: 5})

	_, _, err := s.AdjustStock(ctx, p.ID, 2, Decrease)
	require.NoError(t, err)
	n.mu.Lock()
	require.NotEmpty(t, n.low, "跌破预警线应触发低库存通知")
	lastLow := n.low[len(n.low)-1]
	n.mu.Unlock()
	require.Len(t, lastLow, 1)
	assert.Equal(t, 4, lastLow[0].Stock)

	_, _, err = s.AdjustStock(ctx, p.ID, 4, Decrease)
	require.NoError(t, err)
	n.mu.Lock()
	require.NotEmpty(t, n.zero, "清零应触发零库存通知")
	n.mu.Unlock()
}

func TestMergePrefersLocalStock(t *testing.T) {
	// 本地stock=5、远端stock=8：本地有未同步的库存变动，合并保本地
	mem := cache.NewMemoryStore()
	client := remote.NewMemory()
	const id = "33333333-3333-4333-8333-333333333333"

	mem.SetItem("products", `[{"id":"`+id+`","name":"鞋","stock":5,"createTime":100}]`)
	mem.SetItem("migrated_products", "true")
	client.Seed("products", remote.Row{"id": id, "name": "鞋", "stock": 8, "create_time": float64(100)})

	s := NewStore(mem, client, nil, nil, zap.NewNop())
	require.NoError(t, s.Load(context.Background()))

	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}
