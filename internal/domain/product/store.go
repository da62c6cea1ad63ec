package product

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
	"github.com/xiebiao/shoepos/pkg/metrics"
	"github.com/xiebiao/shoepos/pkg/notify"
)

// Direction 库存调整方向
type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// Adjustment 一条库存调整指令
type Adjustment struct {
	ProductID string
	Quantity  int
	Direction Direction
}

// Store 商品存储与库存台账
type Store struct {
	col      *store.Collection[Product]
	notifier notify.Notifier
	log      *zap.Logger
}

// NewStore 创建商品存储
func NewStore(c cache.Store, client remote.Client, queue *store.Queue, notifier notify.Notifier, log *zap.Logger) *Store {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Store{
		col:      store.NewCollection(collectionConfig(), c, client, queue, log),
		notifier: notifier,
		log:      log.With(zap.String("store", "product")),
	}
}

// Load 加载商品集合，完成后做一次库存预警检查
func (s *Store) Load(ctx context.Context) error {
	if err := s.col.Load(ctx); err != nil {
		return err
	}
	s.checkThresholds()
	return nil
}

// List 全部商品
func (s *Store) List() []Product {
	return s.col.Items()
}

// Get 按id取商品
func (s *Store) Get(id string) (Product, error) {
	p, ok := s.col.Get(id)
	if !ok {
		return Product{}, apperrors.ErrProductNotFound
	}
	return p, nil
}

// Search 按名称/品牌/分类/货号模糊搜索
func (s *Store) Search(keyword string) []Product {
	if keyword == "" {
		return s.col.Items()
	}
	kw := strings.ToLower(keyword)
	return s.col.Find(func(p Product) bool {
		return strings.Contains(strings.ToLower(p.Name), kw) ||
			strings.Contains(strings.ToLower(p.Brand), kw) ||
			strings.Contains(strings.ToLower(p.Category), kw) ||
			strings.Contains(strings.ToLower(p.Code), kw)
	})
}

// LowStockList 达到预警线的商品
func (s *Store) LowStockList() []Product {
	return s.col.Find(Product.LowStock)
}

// TotalStockValue 库存资金总额
func (s *Store) TotalStockValue() float64 {
	var sum float64
	for _, p := range s.col.Items() {
		sum += p.StockValue()
	}
	return round2(sum)
}

// Add 新增商品
func (s *Store) Add(ctx context.Context, p Product) (Product, dualwrite.Outcome, error) {
	if p.Name == "" {
		return Product{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "商品名称不能为空")
	}
	if p.Stock < 0 || p.MinStock < 0 {
		return Product{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "库存数量不能为负")
	}
	if p.CreateTime == 0 {
		p.CreateTime = time.Now().UnixMilli()
	}
	return s.col.Add(ctx, p)
}

// Update 更新商品描述性字段
// 库存与进价不走这里：它们由库存台账操作持有
func (s *Store) Update(ctx context.Context, id string, apply func(Product) (Product, error)) (Product, dualwrite.Outcome, error) {
	p, outcome, err := s.col.Update(ctx, id, func(cur Product) (Product, error) {
		next, err := apply(cur)
		if err != nil {
			return cur, err
		}
		// id和建档时间不可被覆盖
		next.ID = cur.ID
		next.CreateTime = cur.CreateTime
		if next.Stock < 0 {
			return cur, apperrors.New(apperrors.ErrCodeInvalidParams, "库存数量不能为负")
		}
		return next, nil
	})
	if err != nil {
		return Product{}, outcome, err
	}
	s.checkThresholds()
	return p, outcome, nil
}

// Delete 删除商品，云端删除失败时本地回滚并报错
func (s *Store) Delete(ctx context.Context, id string) (dualwrite.Outcome, error) {
	if _, ok := s.col.Get(id); !ok {
		return 0, apperrors.ErrProductNotFound
	}
	return s.col.Delete(ctx, id)
}

// =========================================
// 库存台账
// =========================================

// AdjustStock 单品库存调整
// decrease超过现有库存时报库存不足，已持久化的stock永远不为负
func (s *Store) AdjustStock(ctx context.Context, id string, quantity int, d Direction) (Product, dualwrite.Outcome, error) {
	return s.adjust(ctx, []Adjustment{{ProductID: id, Quantity: quantity, Direction: d}})
}

// AdjustStockAll 多条库存调整的原子批
//
// 全部指令先在同一把锁内预检（存在性、余量），任何一条不满足则整体
// 不生效。多行销售的防超卖靠这一步：检查与扣减之间没有别的写入能
// 插进来
func (s *Store) AdjustStockAll(ctx context.Context, adjustments []Adjustment) (dualwrite.Outcome, error) {
	_, outcome, err := s.adjustBatch(ctx, adjustments)
	return outcome, err
}

func (s *Store) adjust(ctx context.Context, adjustments []Adjustment) (Product, dualwrite.Outcome, error) {
	updated, outcome, err := s.adjustBatch(ctx, adjustments)
	if err != nil {
		return Product{}, outcome, err
	}
	return updated[0], outcome, nil
}

func (s *Store) adjustBatch(ctx context.Context, adjustments []Adjustment) ([]Product, dualwrite.Outcome, error) {
	if len(adjustments) == 0 {
		return nil, dualwrite.RemoteConfirmed, nil
	}
	for _, a := range adjustments {
		if a.Quantity <= 0 {
			return nil, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "调整数量必须为正数")
		}
	}

	byID := make(map[string]int, len(adjustments))
	ids := make([]string, 0, len(adjustments))
	for _, a := range adjustments {
		delta := a.Quantity
		if a.Direction == Decrease {
			delta = -delta
		}
		if _, seen := byID[a.ProductID]; !seen {
			ids = append(ids, a.ProductID)
		}
		byID[a.ProductID] += delta
	}

	updated, outcome, err := s.col.UpdateBatch(ctx, ids, func(id string, cur Product) (Product, error) {
		next := cur.Stock + byID[id]
		if next < 0 {
			return cur, apperrors.New(apperrors.ErrCodeInsufficientStock, cur.Name+" 库存不足")
		}
		cur.Stock = next
		return cur, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return nil, 0, apperrors.ErrProductNotFound
		}
		return nil, 0, err
	}

	for _, a := range adjustments {
		metrics.StockAdjustments.WithLabelValues(string(a.Direction)).Inc()
	}
	s.checkThresholds()
	return updated, outcome, nil
}

// ApplyPurchase 进货入账：库存增加与加权平均进价重算在同一次更新里生效
//
// oldStock <= 0 时新均价直接取本次进价（负库存或零库存没有可加权的
// 存量）；否则 (oldStock*oldCost + qty*unitCost) / (oldStock+qty)，
// 保留两位小数
func (s *Store) ApplyPurchase(ctx context.Context, id string, quantity int, unitCost float64) (Product, dualwrite.Outcome, error) {
	if quantity <= 0 {
		return Product{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "进货数量必须为正数")
	}
	if unitCost < 0 {
		return Product{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "进货单价不能为负")
	}

	p, outcome, err := s.col.Update(ctx, id, func(cur Product) (Product, error) {
		cur.CostPrice = WeightedAverageCost(cur.Stock, cur.CostPrice, quantity, unitCost)
		cur.Stock += quantity
		return cur, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return Product{}, 0, apperrors.ErrProductNotFound
		}
		return Product{}, outcome, err
	}
	metrics.StockAdjustments.WithLabelValues(string(Increase)).Inc()
	s.checkThresholds()
	return p, outcome, nil
}

// WeightedAverageCost 加权平均成本
func WeightedAverageCost(oldStock int, oldCost float64, newQty int, newCost float64) float64 {
	if oldStock <= 0 {
		return round2(newCost)
	}
	total := float64(oldStock)*oldCost + float64(newQty)*newCost
	return round2(total / float64(oldStock+newQty))
}

// checkThresholds 库存预警：零库存与低库存分别通知
func (s *Store) checkThresholds() {
	var low, zero []notify.StockAlert
	for _, p := range s.col.Items() {
		alert := notify.StockAlert{
			ProductID: p.ID,
			Name:      p.Name,
			Stock:     p.Stock,
			MinStock:  p.MinStock,
		}
		switch {
		case p.Stock == 0:
			zero = append(zero, alert)
		case p.LowStock():
			low = append(low, alert)
		}
	}
	if len(zero) > 0 {
		s.notifier.ZeroStock(zero)
	}
	if len(low) > 0 {
		s.notifier.LowStock(low)
	}
}
