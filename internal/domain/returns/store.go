package returns

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// Store 退换货存储
type Store struct {
	col      *store.Collection[Record]
	products *product.Store
	log      *zap.Logger
}

// NewStore 创建退换货存储
func NewStore(c cache.Store, client remote.Client, queue *store.Queue,
	products *product.Store, log *zap.Logger) *Store {
	return &Store{
		col:      store.NewCollection(collectionConfig(), c, client, queue, log),
		products: products,
		log:      log.With(zap.String("store", "returns")),
	}
}

// Load 加载退换货集合
func (s *Store) Load(ctx context.Context) error {
	return s.col.Load(ctx)
}

// List 全部记录
func (s *Store) List() []Record {
	return s.col.Items()
}

// Get 按id取记录
func (s *Store) Get(id string) (Record, error) {
	r, ok := s.col.Get(id)
	if !ok {
		return Record{}, apperrors.New(apperrors.ErrCodeNotFound, "退换货记录不存在")
	}
	return r, nil
}

// legs 记录对应的库存调整指令：退回入库，换出出库
func legs(r Record, reverse bool) []product.Adjustment {
	in, out := product.Increase, product.Decrease
	if reverse {
		in, out = out, in
	}
	adjustments := []product.Adjustment{{
		ProductID: r.OriginalProduct.ProductID,
		Quantity:  r.OriginalProduct.Quantity,
		Direction: in,
	}}
	if r.Type == TypeExchange && r.NewProduct != nil {
		adjustments = append(adjustments, product.Adjustment{
			ProductID: r.NewProduct.ProductID,
			Quantity:  r.NewProduct.Quantity,
			Direction: out,
		})
	}
	return adjustments
}

// Add 登记退换货
//
// 两条库存腿在同一个原子批里调整：换货时退回的入库和换出的出库
// 要么都发生要么都不发生（换出的商品没货时整条记录被拒绝）
func (s *Store) Add(ctx context.Context, r Record) (Record, dualwrite.Outcome, error) {
	if r.Type != TypeReturn && r.Type != TypeExchange {
		return Record{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "未知的记录类型")
	}
	if r.OriginalProduct.ProductID == "" || r.OriginalProduct.Quantity <= 0 {
		return Record{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "退回商品信息不完整")
	}
	if r.Type == TypeExchange && (r.NewProduct == nil || r.NewProduct.Quantity <= 0) {
		return Record{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "换货必须指定新商品")
	}
	if r.Time == 0 {
		r.Time = time.Now().UnixMilli()
	}

	if _, err := s.products.AdjustStockAll(ctx, legs(r, false)); err != nil {
		return Record{}, 0, err
	}

	added, outcome, err := s.col.Add(ctx, r)
	if err != nil {
		return Record{}, outcome, err
	}
	return added, outcome, nil
}

// Delete 删除记录并对称反转两条库存腿
// 云端删除失败回滚本地删除时，刚反转的库存腿也再反转回来
func (s *Store) Delete(ctx context.Context, id string) (dualwrite.Outcome, error) {
	r, ok := s.col.Get(id)
	if !ok {
		return 0, apperrors.New(apperrors.ErrCodeNotFound, "退换货记录不存在")
	}

	if _, err := s.products.AdjustStockAll(ctx, legs(r, true)); err != nil {
		return 0, err
	}

	outcome, err := s.col.Delete(ctx, id)
	if err != nil {
		if _, cerr := s.products.AdjustStockAll(ctx, legs(r, false)); cerr != nil {
			s.log.Error("删除回滚后的库存恢复失败",
				zap.String("return_id", id), zap.Error(cerr))
		}
		return outcome, err
	}
	return outcome, nil
}

// ReturnedQuantity 某订单某商品的累计已退数量，收银台用来限制超退
func (s *Store) ReturnedQuantity(saleID, productID string) int {
	var total int
	for _, r := range s.col.Items() {
		if r.OriginalSaleID == saleID && r.OriginalProduct.ProductID == productID {
			total += r.OriginalProduct.Quantity
		}
	}
	return total
}

// TodaySummary 今日退货/换货笔数与金额
func (s *Store) TodaySummary() (returnCount, exchangeCount int, returnAmount, exchangeAmount float64) {
	today := time.Now()
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location()).UnixMilli()
	for _, r := range s.col.Items() {
		if r.Time < start {
			continue
		}
		switch r.Type {
		case TypeReturn:
			returnCount++
			returnAmount += r.Amount
		case TypeExchange:
			exchangeCount++
			if r.Amount < 0 {
				exchangeAmount -= r.Amount
			} else {
				exchangeAmount += r.Amount
			}
		}
	}
	return
}
