package sale

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/domain/member"
	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

type fixture struct {
	sales    *Store
	products *product.Store
	members  *member.Store
	client   *remote.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := cache.NewMemoryStore()
	client := remote.NewMemory()
	queue := store.NewQueue(mem, client, zap.NewNop())
	log := zap.NewNop()

	products := product.NewStore(mem, client, queue, nil, log)
	members := member.NewStore(mem, client, queue, log)
	sales := NewStore(mem, client, queue, products, members, log)
	require.NoError(t, products.Load(ctx))
	require.NoError(t, members.Load(ctx))
	require.NoError(t, sales.Load(ctx))
	return &fixture{sales: sales, products: products, members: members, client: client}
}

func (f *fixture) addProduct(t *testing.T, p product.Product) product.Product {
	t.Helper()
	added, _, err := f.products.Add(context.Background(), p)
	require.NoError(t, err)
	return added
}

func (f *fixture) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := f.products.Get(id)
	require.NoError(t, err)
	return p.Stock
}

func TestAddSale(t *testing.T) {
	ctx := context.Background()

	t.Run("开单扣库存并计算利润", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", CostPrice: 100, SalePrice: 200, Stock: 10})

		sl, _, err := f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 3, SalePrice: 200}},
			PaymentMethod: PayCash,
		})
		require.NoError(t, err)
		assert.Equal(t, 7, f.stockOf(t, p.ID))
		assert.Equal(t, 600.0, sl.TotalAmount)
		assert.Equal(t, 300.0, sl.Profit, "(200-100)*3")
		assert.NotEmpty(t, sl.OrderID)
		assert.Equal(t, "X", sl.Items[0].ProductName, "行项目从商品表补全名称")
	})

	t.Run("任一行库存不足则全单拒绝", func(t *testing.T) {
		f := newFixture(t)
		a := f.addProduct(t, product.Product{Name: "A", SalePrice: 100, Stock: 10})
		b := f.addProduct(t, product.Product{Name: "B", SalePrice: 100, Stock: 1})

		_, _, err := f.sales.AddSale(ctx, Sale{
			Items: []Item{
				{ProductID: a.ID, Quantity: 2},
				{ProductID: b.ID, Quantity: 5},
			},
			PaymentMethod: PayCash,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientStock))
		assert.Equal(t, 10, f.stockOf(t, a.ID), "通过预检的行也不能扣")
		assert.Equal(t, 1, f.stockOf(t, b.ID))
		assert.Empty(t, f.sales.List())
	})

	t.Run("折扣影响实收与利润", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", CostPrice: 100, SalePrice: 200, Stock: 10})

		sl, _, err := f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 1, SalePrice: 200}},
			Discount:      0.9,
			PaymentMethod: PayCash,
		})
		require.NoError(t, err)
		assert.Equal(t, 180.0, sl.ActualAmount)
		assert.Equal(t, 80.0, sl.Profit, "实收180 - 成本100")
	})

	t.Run("云端失败时开单降级成功", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 200, Stock: 10})
		f.client.Err = errors.New("断网")

		sl, outcome, err := f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 3}},
			PaymentMethod: PayCash,
		})
		require.NoError(t, err)
		assert.Equal(t, dualwrite.RemoteFailedAccepted, outcome)
		assert.Equal(t, 7, f.stockOf(t, p.ID), "库存本地照常扣")
		assert.False(t, remote.IsRemoteID(sl.ID), "降级单持有本地id")
	})
}

func TestAddSaleMemberBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("余额支付扣会员账户", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 50, Stock: 10})
		m, _, err := f.members.Add(ctx, member.Member{Phone: "13800000001", Balance: 50})
		require.NoError(t, err)

		_, _, err = f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 1, SalePrice: 50}},
			PaymentMethod: PayMemberBalance,
			MemberID:      m.ID,
		})
		require.NoError(t, err)

		got, _ := f.members.Get(m.ID)
		assert.Equal(t, 0.0, got.Balance)
		assert.Equal(t, 50.0, got.TotalConsumption)
	})

	t.Run("余额不足时拒绝并退回已扣库存", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 100, Stock: 10})
		m, _, err := f.members.Add(ctx, member.Member{Phone: "13800000002", Balance: 30})
		require.NoError(t, err)

		_, _, err = f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 1, SalePrice: 100}},
			PaymentMethod: PayMemberBalance,
			MemberID:      m.ID,
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientBalance))
		assert.Equal(t, 10, f.stockOf(t, p.ID), "扣款失败后库存恢复原样")
		assert.Empty(t, f.sales.List())
	})

	t.Run("未指定会员被拒绝", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 100, Stock: 10})
		_, _, err := f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: PayMemberBalance,
		})
		assert.Error(t, err)
	})
}

func TestDeleteSale(t *testing.T) {
	ctx := context.Background()

	t.Run("删单恢复库存", func(t *testing.T) {
		f := newFixture(t)
		a := f.addProduct(t, product.Product{Name: "A", SalePrice: 100, Stock: 10})
		b := f.addProduct(t, product.Product{Name: "B", SalePrice: 100, Stock: 8})

		sl, _, err := f.sales.AddSale(ctx, Sale{
			Items: []Item{
				{ProductID: a.ID, Quantity: 3},
				{ProductID: b.ID, Quantity: 2},
			},
			PaymentMethod: PayCash,
		})
		require.NoError(t, err)
		require.Equal(t, 7, f.stockOf(t, a.ID))
		require.Equal(t, 6, f.stockOf(t, b.ID))

		_, err = f.sales.DeleteSale(ctx, sl.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, f.stockOf(t, a.ID), "多行销售删除后每个商品都回原值")
		assert.Equal(t, 8, f.stockOf(t, b.ID))
		assert.Empty(t, f.sales.List())
	})

	t.Run("余额支付的删单走专用回充", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 50, Stock: 10})
		m, _, err := f.members.Add(ctx, member.Member{Phone: "13800000001", Balance: 50})
		require.NoError(t, err)

		sl, _, err := f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 1, SalePrice: 50}},
			PaymentMethod: PayMemberBalance,
			MemberID:      m.ID,
		})
		require.NoError(t, err)

		_, err = f.sales.DeleteSale(ctx, sl.ID)
		require.NoError(t, err)

		got, _ := f.members.Get(m.ID)
		assert.Equal(t, 50.0, got.Balance, "余额回到消费前")
		assert.Equal(t, 0.0, got.TotalConsumption)
		assert.Equal(t, 0.0, got.TotalRecharge, "回充不计入累计充值")
	})

	t.Run("云端删除失败时副作用再反转", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 50, Stock: 10})
		m, _, err := f.members.Add(ctx, member.Member{Phone: "13800000001", Balance: 50})
		require.NoError(t, err)

		sl, _, err := f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 2, SalePrice: 25}},
			PaymentMethod: PayMemberBalance,
			MemberID:      m.ID,
		})
		require.NoError(t, err)
		require.Equal(t, 8, f.stockOf(t, p.ID))

		// 只让销售表的云端删除失败
		f.client.ErrOps = map[string]error{"delete:sales": errors.New("断网")}

		_, err = f.sales.DeleteSale(ctx, sl.ID)
		require.Error(t, err, "删除失败要暴露给调用方")

		// 单还在，库存和余额都应回到删除前的状态，不能多退一份
		_, gerr := f.sales.Get(sl.ID)
		assert.NoError(t, gerr, "本地删除已回滚")
		assert.Equal(t, 8, f.stockOf(t, p.ID), "库存不能被重复加回")
		got, _ := f.members.Get(m.ID)
		assert.Equal(t, 0.0, got.Balance, "余额不能被重复回充")
		assert.Equal(t, 50.0, got.TotalConsumption)
	})

	t.Run("销售单不存在", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.sales.DeleteSale(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrSaleNotFound)
	})
}

func TestPurchases(t *testing.T) {
	ctx := context.Background()

	t.Run("进货入库带动均价重算", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", CostPrice: 100, Stock: 10})

		pu, _, err := f.sales.AddPurchase(ctx, Purchase{
			ProductID: p.ID, Quantity: 5, CostPrice: 130, Supplier: "供应商",
		})
		require.NoError(t, err)
		assert.Equal(t, 650.0, pu.TotalAmount)
		assert.Equal(t, "X", pu.ProductName)

		got, _ := f.products.Get(p.ID)
		assert.Equal(t, 15, got.Stock)
		assert.Equal(t, 110.0, got.CostPrice)
	})

	t.Run("删除进货单退回入库数量", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", Stock: 0})
		pu, _, err := f.sales.AddPurchase(ctx, Purchase{ProductID: p.ID, Quantity: 5, CostPrice: 100})
		require.NoError(t, err)

		_, err = f.sales.DeletePurchase(ctx, pu.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, f.stockOf(t, p.ID))
	})

	t.Run("货已卖掉时进货单不可删", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "X", SalePrice: 100, Stock: 0})
		pu, _, err := f.sales.AddPurchase(ctx, Purchase{ProductID: p.ID, Quantity: 5, CostPrice: 60})
		require.NoError(t, err)

		_, _, err = f.sales.AddSale(ctx, Sale{
			Items:         []Item{{ProductID: p.ID, Quantity: 3}},
			PaymentMethod: PayCash,
		})
		require.NoError(t, err)

		_, err = f.sales.DeletePurchase(ctx, pu.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientStock))
		assert.Equal(t, 2, f.stockOf(t, p.ID), "失败的删除不改库存")
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.addProduct(t, product.Product{Name: "A", CostPrice: 100, SalePrice: 200, Stock: 50})
	b := f.addProduct(t, product.Product{Name: "B", CostPrice: 50, SalePrice: 80, Stock: 50})

	_, _, err := f.sales.AddSale(ctx, Sale{
		Items:         []Item{{ProductID: a.ID, Quantity: 3, SalePrice: 200}},
		Salesperson:   "小王",
		PaymentMethod: PayCash,
	})
	require.NoError(t, err)
	_, _, err = f.sales.AddSale(ctx, Sale{
		Items:         []Item{{ProductID: b.ID, Quantity: 5, SalePrice: 80}},
		Salesperson:   "小李",
		PaymentMethod: PayWeChat,
	})
	require.NoError(t, err)

	t.Run("今日汇总", func(t *testing.T) {
		sum := f.sales.TodaySummary()
		assert.Equal(t, 1000.0, sum.Revenue, "600+400")
		assert.Equal(t, 450.0, sum.Profit, "300+150")
		assert.Equal(t, 2, sum.Count)
	})

	t.Run("热销排行按销量", func(t *testing.T) {
		top := f.sales.TopProducts(5)
		require.Len(t, top, 2)
		assert.Equal(t, "B", top[0].ProductName)
		assert.Equal(t, 5, top[0].Quantity)
	})

	t.Run("员工业绩按实收排序", func(t *testing.T) {
		stats := f.sales.SalespersonStats(0)
		require.Len(t, stats, 2)
		assert.Equal(t, "小王", stats[0].Name)
		assert.Equal(t, 600.0, stats[0].TotalAmount)
		assert.Equal(t, 3, stats[0].Quantity)
	})

	t.Run("趋势覆盖今天", func(t *testing.T) {
		trend := f.sales.Trend(7)
		require.Len(t, trend, 7)
		today := trend[6]
		assert.Equal(t, time.Now().Format("1/2"), today.Label)
		assert.Equal(t, 1000.0, today.Revenue)
	})
}
