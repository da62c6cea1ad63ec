package member

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/dualwrite"
	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// rechargeTable 充值流水表，只在云端（尽力而为，不参与合并）
const rechargeTable = "member_recharges"

// Store 会员存储
type Store struct {
	col    *store.Collection[Member]
	client remote.Client
	log    *zap.Logger
}

// NewStore 创建会员存储
func NewStore(c cache.Store, client remote.Client, queue *store.Queue, log *zap.Logger) *Store {
	return &Store{
		col:    store.NewCollection(collectionConfig(), c, client, queue, log),
		client: client,
		log:    log.With(zap.String("store", "member")),
	}
}

// Load 加载会员集合
func (s *Store) Load(ctx context.Context) error {
	return s.col.Load(ctx)
}

// List 全部会员
func (s *Store) List() []Member {
	return s.col.Items()
}

// Get 按id取会员
func (s *Store) Get(id string) (Member, error) {
	m, ok := s.col.Get(id)
	if !ok {
		return Member{}, apperrors.ErrMemberNotFound
	}
	return m, nil
}

// GetByPhone 按手机号取会员
func (s *Store) GetByPhone(phone string) (Member, error) {
	found := s.col.Find(func(m Member) bool { return m.Phone == phone })
	if len(found) == 0 {
		return Member{}, apperrors.ErrMemberNotFound
	}
	return found[0], nil
}

// Search 按姓名或手机号搜索
func (s *Store) Search(keyword string) []Member {
	if keyword == "" {
		return s.col.Items()
	}
	kw := strings.ToLower(keyword)
	return s.col.Find(func(m Member) bool {
		return strings.Contains(strings.ToLower(m.Name), kw) ||
			strings.Contains(m.Phone, keyword)
	})
}

// Add 新增会员，手机号在当前工作集内唯一
func (s *Store) Add(ctx context.Context, m Member) (Member, dualwrite.Outcome, error) {
	if m.Phone == "" {
		return Member{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "手机号不能为空")
	}
	if existing := s.col.Find(func(e Member) bool { return e.Phone == m.Phone }); len(existing) > 0 {
		return Member{}, 0, apperrors.New(apperrors.ErrCodeDuplicateEntry, "该手机号已注册会员")
	}
	if m.Discount <= 0 || m.Discount > 1 {
		m.Discount = 1.0
	}
	if m.Level == "" {
		m.Level = DefaultLevel
	}
	m.TotalConsumption = 0
	if m.CreateTime == 0 {
		m.CreateTime = time.Now().UnixMilli()
	}
	return s.col.Add(ctx, m)
}

// Update 更新会员资料（姓名、折扣、等级、备注）
// 余额与累计字段不走这里
func (s *Store) Update(ctx context.Context, id string, apply func(Member) (Member, error)) (Member, dualwrite.Outcome, error) {
	return s.col.Update(ctx, id, func(cur Member) (Member, error) {
		next, err := apply(cur)
		if err != nil {
			return cur, err
		}
		next.ID = cur.ID
		next.CreateTime = cur.CreateTime
		next.Balance = cur.Balance
		next.TotalRecharge = cur.TotalRecharge
		next.TotalConsumption = cur.TotalConsumption
		return next, nil
	})
}

// Delete 删除会员
func (s *Store) Delete(ctx context.Context, id string) (dualwrite.Outcome, error) {
	if _, ok := s.col.Get(id); !ok {
		return 0, apperrors.ErrMemberNotFound
	}
	return s.col.Delete(ctx, id)
}

// Recharge 充值
//
// 余额与累计充值一并更新；另外向云端member_recharges插一条流水，
// 流水失败只记日志，不影响充值结果
func (s *Store) Recharge(ctx context.Context, id string, amount float64, paymentMethod, notes string) (Member, dualwrite.Outcome, error) {
	if amount <= 0 {
		return Member{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "充值金额必须为正数")
	}

	m, outcome, err := s.col.Update(ctx, id, func(cur Member) (Member, error) {
		cur.Balance = round2(cur.Balance + amount)
		cur.TotalRecharge = round2(cur.TotalRecharge + amount)
		return cur, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return Member{}, 0, apperrors.ErrMemberNotFound
		}
		return Member{}, outcome, err
	}

	if _, rerr := s.client.Insert(ctx, rechargeTable, []remote.Row{{
		"member_id":      id,
		"amount":         amount,
		"payment_method": paymentMethod,
		"notes":          notes,
	}}); rerr != nil {
		s.log.Warn("充值流水写入失败", zap.String("member_id", id), zap.Error(rerr))
	}
	return m, outcome, nil
}

// Consume 余额消费
// 余额不足时拒绝，余额与累计消费一并扣减
func (s *Store) Consume(ctx context.Context, id string, amount float64) (Member, dualwrite.Outcome, error) {
	if amount <= 0 {
		return Member{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "消费金额必须为正数")
	}

	m, outcome, err := s.col.Update(ctx, id, func(cur Member) (Member, error) {
		if cur.Balance < amount {
			return cur, apperrors.New(apperrors.ErrCodeInsufficientBalance, "会员余额不足")
		}
		cur.Balance = round2(cur.Balance - amount)
		cur.TotalConsumption = round2(cur.TotalConsumption + amount)
		return cur, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return Member{}, 0, apperrors.ErrMemberNotFound
		}
		return Member{}, outcome, err
	}
	return m, outcome, nil
}

// CreditBack 销售单删除时的回充
//
// 与Recharge不同：不动累计充值，并把累计消费同步减回去。删掉一笔
// 余额支付的销售单后，会员账户要回到消费前的样子
func (s *Store) CreditBack(ctx context.Context, id string, amount float64) (Member, dualwrite.Outcome, error) {
	if amount <= 0 {
		return Member{}, 0, apperrors.New(apperrors.ErrCodeInvalidParams, "回充金额必须为正数")
	}

	m, outcome, err := s.col.Update(ctx, id, func(cur Member) (Member, error) {
		cur.Balance = round2(cur.Balance + amount)
		cur.TotalConsumption = round2(math.Max(0, cur.TotalConsumption-amount))
		return cur, nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return Member{}, 0, apperrors.ErrMemberNotFound
		}
		return Member{}, outcome, err
	}
	return m, outcome, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
