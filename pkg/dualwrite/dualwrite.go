// Package dualwrite 实现"本地优先+远端确认"的双写事务框架
//
// 双写模式核心思想：
// 1. 每个变更先落本地（内存工作集+本地缓存），UI立即可见
// 2. 再尝试写远端权威存储，远端写入可能失败
// 3. 失败时按操作类型决定：接受降级（数据仅存本地）还是回滚本地
//
// 与Saga补偿事务的区别：
// - Saga的每一步失败都触发逆序补偿
// - 双写只有一个远端步骤，补偿与否是按操作类型配置的策略，
//   新增/修改接受降级（用户的操作不能因断网丢失），
//   删除必须回滚（假的"已删除"比过期的"仍存在"更有害）
package dualwrite

import (
	"context"

	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// Policy 远端写入失败时的处理策略
type Policy int

const (
	// AcceptOnFailure 接受降级：远端失败不回滚本地，操作报告成功
	// 适用：Add/Update（本地优先持久性，稍后由离线队列补同步）
	AcceptOnFailure Policy = iota

	// RollbackOnFailure 回滚：远端失败时撤销本地变更并上抛错误
	// 适用：Delete（不能向用户呈现无法兑现的删除结果）
	RollbackOnFailure
)

// Outcome 一次变更的最终状态
//
// 状态机：AppliedLocally → RemoteConfirmed
//                        → RemoteFailedAccepted（降级成功，仅存本地）
//                        → RemoteFailedRolledBack（本地已撤销，错误上抛）
//
// 调用方必须区分三种结果：完全同步成功、仅本地保存成功、被拒绝，
// 它们是三种不同的用户可见结论，不是两种
type Outcome int

const (
	RemoteConfirmed Outcome = iota
	RemoteFailedAccepted
	RemoteFailedRolledBack
)

// String 便于日志与指标标签
func (o Outcome) String() string {
	switch o {
	case RemoteConfirmed:
		return "remote_confirmed"
	case RemoteFailedAccepted:
		return "remote_failed_accepted"
	case RemoteFailedRolledBack:
		return "remote_failed_rolled_back"
	default:
		return "unknown"
	}
}

// Accepted 该结果是否算操作成功（本地已持久化）
func (o Outcome) Accepted() bool {
	return o == RemoteConfirmed || o == RemoteFailedAccepted
}

// Synced 数据是否已写入云端（响应里的synced标记用这个）
func (o Outcome) Synced() bool {
	return o == RemoteConfirmed
}

// Mutation 一次双写变更
//
// 设计要点：
// 1. ApplyLocal必须同步完成且不依赖网络（内存+本地缓存）
// 2. RemoteWrite是唯一可能失败的悬挂点，必须有调用方可见的失败形态
// 3. Rollback只在RollbackOnFailure策略下被调用，必须把本地状态
//    恢复到ApplyLocal之前（含原有位置，见删除的按原下标恢复）
type Mutation struct {
	Name        string                          // 变更名称（日志用）
	ApplyLocal  func() error                    // 本地变更（同步，不可依赖网络）
	RemoteWrite func(ctx context.Context) error // 远端写入（可失败）
	Rollback    func() error                    // 本地回滚（仅RollbackOnFailure使用）
	Policy      Policy
}

// Execute 执行双写变更
//
// 返回值约定：
// - (RemoteConfirmed, nil)：两端都已写入
// - (RemoteFailedAccepted, nil)：远端失败被吸收，数据仅存本地
// - (RemoteFailedRolledBack, err)：远端失败且本地已回滚，err为远端错误
// - ApplyLocal自身失败时直接返回其错误（不进入远端阶段）
func Execute(ctx context.Context, m Mutation) (Outcome, error) {
	if m.ApplyLocal != nil {
		if err := m.ApplyLocal(); err != nil {
			return RemoteFailedRolledBack, err
		}
	}

	if m.RemoteWrite == nil {
		return RemoteConfirmed, nil
	}

	err := m.RemoteWrite(ctx)
	if err == nil {
		return RemoteConfirmed, nil
	}

	if m.Policy == AcceptOnFailure {
		return RemoteFailedAccepted, nil
	}

	// 回滚策略：撤销本地变更后把远端错误上抛
	if m.Rollback != nil {
		if rbErr := m.Rollback(); rbErr != nil {
			// 回滚自身失败属于不可自动恢复的异常，聚合两个错误上抛
			return RemoteFailedRolledBack, apperrors.WrapCode(
				apperrors.ErrCodeInternal, rbErr, "回滚本地变更失败")
		}
	}
	return RemoteFailedRolledBack, err
}
