package returns

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

type fixture struct {
	returns  *Store
	products *product.Store
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
	rs := NewStore(mem, client, queue, products, log)
	require.NoError(t, products.Load(ctx))
	require.NoError(t, rs.Load(ctx))
	return &fixture{returns: rs, products: products, client: client}
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

func TestAddReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("退货入库", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "鞋", Stock: 5})

		r, _, err := f.returns.Add(ctx, Record{
			Type:            TypeReturn,
			OriginalSaleID:  "sale-1",
			OriginalProduct: ProductRef{ProductID: p.ID, Quantity: 2},
			Amount:          200,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, 7, f.stockOf(t, p.ID))
	})

	t.Run("换货两条腿同批调整", func(t *testing.T) {
		f := newFixture(t)
		old := f.addProduct(t, product.Product{Name: "旧款", Stock: 5})
		niu := f.addProduct(t, product.Product{Name: "新款", Stock: 3})

		_, _, err := f.returns.Add(ctx, Record{
			Type:            TypeExchange,
			OriginalSaleID:  "sale-1",
			OriginalProduct: ProductRef{ProductID: old.ID, Quantity: 1},
			NewProduct:      &ProductRef{ProductID: niu.ID, Quantity: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, 6, f.stockOf(t, old.ID))
		assert.Equal(t, 2, f.stockOf(t, niu.ID))
	})

	t.Run("换出商品无货时整条记录被拒", func(t *testing.T) {
		f := newFixture(t)
		old := f.addProduct(t, product.Product{Name: "旧款", Stock: 5})
		niu := f.addProduct(t, product.Product{Name: "新款", Stock: 0})

		_, _, err := f.returns.Add(ctx, Record{
			Type:            TypeExchange,
			OriginalSaleID:  "sale-1",
			OriginalProduct: ProductRef{ProductID: old.ID, Quantity: 1},
			NewProduct:      &ProductRef{ProductID: niu.ID, Quantity: 1},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientStock))
		assert.Equal(t, 5, f.stockOf(t, old.ID), "退回入库的那条腿也不能生效")
	})

	t.Run("换货缺新商品被拒", func(t *testing.T) {
		f := newFixture(t)
		old := f.addProduct(t, product.Product{Name: "旧款", Stock: 5})
		_, _, err := f.returns.Add(ctx, Record{
			Type:            TypeExchange,
			OriginalProduct: ProductRef{ProductID: old.ID, Quantity: 1},
		})
		assert.Error(t, err)
	})
}

func TestDeleteReturn(t *testing.T) {
	ctx := context.Background()

	t.Run("删除退货记录反转入库", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "鞋", Stock: 5})
		r, _, err := f.returns.Add(ctx, Record{
			Type:            TypeReturn,
			OriginalProduct: ProductRef{ProductID: p.ID, Quantity: 2},
		})
		require.NoError(t, err)
		require.Equal(t, 7, f.stockOf(t, p.ID))

		_, err = f.returns.Delete(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, f.stockOf(t, p.ID))
	})

	t.Run("删除换货记录两条腿都反转", func(t *testing.T) {
		f := newFixture(t)
		old := f.addProduct(t, product.Product{Name: "旧款", Stock: 5})
		niu := f.addProduct(t, product.Product{Name: "新款", Stock: 3})
		r, _, err := f.returns.Add(ctx, Record{
			Type:            TypeExchange,
			OriginalProduct: ProductRef{ProductID: old.ID, Quantity: 1},
			NewProduct:      &ProductRef{ProductID: niu.ID, Quantity: 1},
		})
		require.NoError(t, err)

		_, err = f.returns.Delete(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, f.stockOf(t, old.ID))
		assert.Equal(t, 3, f.stockOf(t, niu.ID))
	})

	t.Run("云端删除失败时库存腿恢复", func(t *testing.T) {
		f := newFixture(t)
		p := f.addProduct(t, product.Product{Name: "鞋", Stock: 5})
		r, _, err := f.returns.Add(ctx, Record{
			Type:            TypeReturn,
			OriginalProduct: ProductRef{ProductID: p.ID, Quantity: 2},
		})
		require.NoError(t, err)
		f.client.ErrOps = map[string]error{"delete:returns": errors.New("断网")}

		_, err = f.returns.Delete(ctx, r.ID)
		require.Error(t, err)
		_, gerr := f.returns.Get(r.ID)
		assert.NoError(t, gerr, "记录回到集合里")
		assert.Equal(t, 7, f.stockOf(t, p.ID), "库存保持删除前的入库状态")
	})
}

func TestReturnedQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.addProduct(t, product.Product{Name: "鞋", Stock: 10})

	for i := 0; i < 2; i++ {
		_, _, err := f.returns.Add(ctx, Record{
			Type:            TypeReturn,
			OriginalSaleID:  "sale-1",
			OriginalProduct: ProductRef{ProductID: p.ID, Quantity: 1},
		})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, f.returns.ReturnedQuantity("sale-1", p.ID))
	assert.Zero(t, f.returns.ReturnedQuantity("sale-2", p.ID))
}
