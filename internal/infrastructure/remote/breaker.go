package remote

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// Breaker 远端客户端的熔断包装
//
// 设计说明：
// 1. 云端持续故障时本地业务不能被拖慢：每次慢超时都会卡住收银台。
//    熔断打开后远端调用立即以RemoteUnavailable失败，写入走降级路径
// 2. 三种状态：closed（正常放行并统计连续失败）、open（快速失败，
//    超时后转half-open）、half-open（放行一次探测，成败决定去向）
// 3. 读写共用一个状态机：云端故障对select和insert是同一个事实
type Breaker struct {
	inner Client
	log   *zap.Logger

	mu           sync.Mutex
	state        breakerState
	failures     int       // closed状态下的连续失败数
	openedAt     time.Time // 进入open的时间
	maxFailures  int
	resetTimeout time.Duration
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateClosed:
		return "closed"
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig 熔断参数
type BreakerConfig struct {
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// NewBreaker 包装一个远端客户端
func NewBreaker(inner Client, cfg BreakerConfig, log *zap.Logger) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		inner:        inner,
		log:          log,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
	}
}

// allow 判断是否放行，open超时后切half-open
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.setState(stateHalfOpen)
			return true
		}
		return false
	case stateHalfOpen:
		// 探测请求已在途，其余快速失败
		return false
	}
	return false
}

// record 登记调用结果并推动状态机
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state != stateClosed {
			b.setState(stateClosed)
		}
		return
	}

	switch b.state {
	case stateClosed:
		b.failures++
		if b.failures >= b.maxFailures {
			b.setState(stateOpen)
		}
	case stateHalfOpen:
		b.setState(stateOpen)
	}
}

func (b *Breaker) setState(s breakerState) {
	if b.state == s {
		return
	}
	b.log.Warn("远端熔断状态切换",
		zap.String("from", b.state.String()),
		zap.String("to", s.String()))
	b.state = s
	b.failures = 0
	if s == stateOpen {
		b.openedAt = time.Now()
	}
}

// State 当前状态，测试与健康检查用
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateOpen && time.Since(b.openedAt) >= b.resetTimeout {
		return stateHalfOpen.String()
	}
	return b.state.String()
}

var errBreakerOpen = apperrors.New(apperrors.ErrCodeRemoteUnavailable, "云端熔断中，稍后自动重试")

// Select 查询行集合
func (b *Breaker) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if !b.allow() {
		return nil, errBreakerOpen
	}
	rows, err := b.inner.Select(ctx, table, q)
	b.record(err)
	return rows, err
}

// Insert 插入行
func (b *Breaker) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if !b.allow() {
		return nil, errBreakerOpen
	}
	out, err := b.inner.Insert(ctx, table, rows)
	b.record(err)
	return out, err
}

// Update 按id局部更新
func (b *Breaker) Update(ctx context.Context, table string, id string, patch Row) error {
	if !b.allow() {
		return errBreakerOpen
	}
	err := b.inner.Update(ctx, table, id, patch)
	b.record(err)
	return err
}

// Delete 按id删除
func (b *Breaker) Delete(ctx context.Context, table string, id string) error {
	if !b.allow() {
		return errBreakerOpen
	}
	err := b.inner.Delete(ctx, table, id)
	b.record(err)
	return err
}
