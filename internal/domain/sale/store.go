package sale

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/domain/member"
	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// Store 销售与进货存储
//
// 跨集合的副作用（库存、会员余额）只通过product/member包的公开操作
// 进行，这里不碰它们的内部集合
type Store struct {
	sales     *store.Collection[Sale]
	purchases *store.Collection[Purchase]
	products  *product.Store
	members   *member.Store
	log       *zap.Logger
}

// NewStore 创建销售存储
func NewStore(c cache.Store, client remote.Client, queue *store.Queue,
	products *product.Store, members *member.Store, log *zap.Logger) *Store {
	return &Store{
		sales:     store.NewCollection(salesConfig(), c, client, queue, log),
		purchases: store.NewCollection(purchasesConfig(), c, client, queue, log),
		products:  products,
		members:   members,
		log:       log.With(zap.String("store", "sale")),
	}
}

// Load 加载销售与进货集合
func (s *Store) Load(ctx context.Context) error {
	if err := s.sales.Load(ctx); err != nil {
		return err
	}
	return s.purchases.Load(ctx)
}

// List 全部销售单
func (s *Store) List() []Sale {
	return s.sales.Items()
}

// Get 按id取销售单
func (s *Store) Get(id string) (Sale, error) {
	sl, ok := s.sales.Get(id)
	if !ok {
		return Sale{}, apperrors.ErrSaleNotFound
	}
	return sl, nil
}

// Purchases 全部进货单
func (s *Store) Purchases() []Purchase {
	return s.purchases.Items()
}

// AddSale 开单
//
// 流程：
// 1. 行项目预检与补全（名称/尺码/成本价从商品表取快照）
// 2. 整单扣库存（AdjustStockAll原子批：任一行不足则全单不动）
// 3. 余额支付时扣会员账户；扣款失败把库存加回去，全单作废
// 4. 落销售单（本地必成，云端尽力）
func (s *Store) AddSale(ctx context.Context, draft Sale) (Sale, dualwrite.Outcome, error) {
	if len(draft.Items) == 0 {
		return Sale{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "销售单至少要有一个商品")
	}
	for _, it := range draft.Items {
		if it.Quantity <= 0 {
			return Sale{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "商品数量必须为正数")
		}
	}
	if draft.PaymentMethod == PayMemberBalance && draft.MemberID == "" {
		return Sale{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "余额支付必须指定会员")
	}

	// 行项目补全：成本价一律取商品当前均价快照，前端传值不作数
	items := make([]Item, len(draft.Items))
	var totalAmount, totalCost float64
	for i, it := range draft.Items {
		p, err := s.products.Get(it.ProductID)
		if err != nil {
			return Sale{}, 0, err
		}
		if it.ProductName == "" {
			it.ProductName = p.Name
		}
		if it.Size == "" {
			it.Size = p.Size
		}
		if it.SalePrice == 0 {
			it.SalePrice = p.SalePrice
		}
		it.CostPrice = p.CostPrice
		items[i] = it
		totalAmount += it.SalePrice * float64(it.Quantity)
		totalCost += it.CostPrice * float64(it.Quantity)
	}

	if draft.Discount <= 0 || draft.Discount > 1 {
		draft.Discount = 1.0
	}
	sl := draft
	sl.Items = items
	sl.TotalAmount = round2(totalAmount)
	sl.TotalCost = round2(totalCost)
	if sl.ActualAmount == 0 {
		sl.ActualAmount = round2(sl.TotalAmount * sl.Discount)
	}
	sl.Profit = round2(sl.ActualAmount - sl.TotalCost)
	if sl.OrderID == "" {
		sl.OrderID = GenerateOrderNo()
	}
	if sl.CreateTime == 0 {
		sl.CreateTime = time.Now().UnixMilli()
	}

	// 整单扣库存，任一行不足则什么都没发生
	if _, err := s.products.AdjustStockAll(ctx, decrements(items)); err != nil {
		return Sale{}, 0, err
	}

	// 余额支付
	if sl.PaymentMethod == PayMemberBalance {
		if _, _, err := s.members.Consume(ctx, sl.MemberID, sl.ActualAmount); err != nil {
			// 扣款失败，把刚扣掉的库存加回去
			if _, cerr := s.products.AdjustStockAll(ctx, increments(items)); cerr != nil {
				s.log.Error("余额扣款失败后的库存补偿也失败了",
					zap.String("order_id", sl.OrderID), zap.Error(cerr))
			}
			return Sale{}, 0, err
		}
	}

	added, outcome, err := s.sales.Add(ctx, sl)
	if err != nil {
		return Sale{}, outcome, err
	}
	return added, outcome, nil
}

// DeleteSale 删单
//
// 先把这一单的副作用原路退回（库存加回、余额回充），然后删销售单。
// 云端删除失败会回滚本地删除，此时刚退回的副作用也要再撤销一次，
// 否则这单还在、库存却多了一份
func (s *Store) DeleteSale(ctx context.Context, id string) (dualwrite.Outcome, error) {
	sl, ok := s.sales.Get(id)
	if !ok {
		return 0, apperrors.ErrSaleNotFound
	}

	// 副作用退回
	if _, err := s.products.AdjustStockAll(ctx, increments(sl.Items)); err != nil {
		return 0, err
	}
	creditedBack := false
	if sl.PaymentMethod == PayMemberBalance && sl.MemberID != "" && sl.ActualAmount > 0 {
		if _, _, err := s.members.CreditBack(ctx, sl.MemberID, sl.ActualAmount); err != nil {
			// 回充失败，库存退回也撤销，整个删除作废
			if _, cerr := s.products.AdjustStockAll(ctx, decrements(sl.Items)); cerr != nil {
				s.log.Error("回充失败后的库存撤销也失败了",
					zap.String("sale_id", id), zap.Error(cerr))
			}
			return 0, err
		}
		creditedBack = true
	}

	outcome, err := s.sales.Delete(ctx, id)
	if err != nil {
		// 本地删除已被回滚，副作用也要再反转回去
		if _, cerr := s.products.AdjustStockAll(ctx, decrements(sl.Items)); cerr != nil {
			s.log.Error("删单回滚后的库存再反转失败",
				zap.String("sale_id", id), zap.Error(cerr))
		}
		if creditedBack {
			if _, _, cerr := s.members.Consume(ctx, sl.MemberID, sl.ActualAmount); cerr != nil {
				s.log.Error("删单回滚后的余额再扣减失败",
					zap.String("sale_id", id), zap.Error(cerr))
			}
		}
		return outcome, err
	}
	return outcome, nil
}

// AddPurchase 进货入库
// 库存增加与加权平均进价重算由商品存储在一次更新里完成
func (s *Store) AddPurchase(ctx context.Context, draft Purchase) (Purchase, dualwrite.Outcome, error) {
	if draft.Quantity <= 0 {
		return Purchase{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "进货数量必须为正数")
	}
	p, err := s.products.Get(draft.ProductID)
	if err != nil {
		return Purchase{}, 0, err
	}

	if _, _, err := s.products.ApplyPurchase(ctx, draft.ProductID, draft.Quantity, draft.CostPrice); err != nil {
		return Purchase{}, 0, err
	}

	draft.ProductName = p.Name
	draft.TotalAmount = round2(draft.CostPrice * float64(draft.Quantity))
	if draft.CreateTime == 0 {
		draft.CreateTime = time.Now().UnixMilli()
	}
	return s.purchases.Add(ctx, draft)
}

// DeletePurchase 删除进货单并把入库的数量退回
// 货已经卖掉导致库存不够退时拒绝删除
func (s *Store) DeletePurchase(ctx context.Context, id string) (dualwrite.Outcome, error) {
	p, ok := s.purchases.Get(id)
	if !ok {
		return 0, apperrors.New(apperrors.ErrCodeNotFound, "进货单不存在")
	}

	if _, _, err := s.products.AdjustStock(ctx, p.ProductID, p.Quantity, product.Decrease); err != nil {
		return 0, err
	}

	outcome, err := s.purchases.Delete(ctx, id)
	if err != nil {
		if _, _, cerr := s.products.AdjustStock(ctx, p.ProductID, p.Quantity, product.Increase); cerr != nil {
			s.log.Error("删除进货单回滚后的库存恢复失败",
				zap.String("purchase_id", id), zap.Error(cerr))
		}
		return outcome, err
	}
	return outcome, nil
}

func decrements(items []Item) []product.Adjustment {
	out := make([]product.Adjustment, len(items))
	for i, it := range items {
		out[i] = product.Adjustment{ProductID: it.ProductID, Quantity: it.Quantity, Direction: product.Decrease}
	}
	return out
}

func increments(items []Item) []product.Adjustment {
	out := make([]product.Adjustment, len(items))
	for i, it := range items {
		out[i] = product.Adjustment{ProductID: it.ProductID, Quantity: it.Quantity, Direction: product.Increase}
	}
	return out
}
