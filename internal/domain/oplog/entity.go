// Package oplog 操作审计日志
//
// 审计是尽力而为的：本地同步落盘，云端异步补写。审计自身的任何失败
// 都不允许影响触发它的业务操作
package oplog

import (
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
)

// 操作类型
const (
	OpLogin   = "login"
	OpLogout  = "logout"
	OpAdd     = "add"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpStockIn = "stock_in"
	OpSale    = "sale"
	OpReturn  = "return"
)

// Operator 执行操作的人，从登录态取出后显式传给Append
type Operator struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// Entry 一条审计记录
type Entry struct {
	ID            string `json:"id"`
	OperationType string `json:"operationType"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	TargetType    string `json:"targetType"` // product | sale | member | ...
	TargetID      string `json:"targetId"`
	TargetName    string `json:"targetName"`
	Details       string `json:"details"`
	OldValue      string `json:"oldValue,omitempty"` // 变更前快照（JSON文本）
	NewValue      string `json:"newValue,omitempty"`
	CreateTime    int64  `json:"createTime"`
}

func toRow(e Entry) remote.Row {
	return remote.Row{
		"id":             e.ID,
		"operation_type": e.OperationType,
		"user_id":        e.UserID,
		"username":       e.Username,
		"target_type":    e.TargetType,
		"target_id":      e.TargetID,
		"target_name":    e.TargetName,
		"details":        e.Details,
		"old_value":      e.OldValue,
		"new_value":      e.NewValue,
		"create_time":    e.CreateTime,
	}
}

func fromRow(r remote.Row) Entry {
	e := Entry{
		ID:            remote.Str(r, "id"),
		OperationType: remote.Str(r, "operation_type"),
		UserID:        remote.Str(r, "user_id"),
		Username:      remote.Str(r, "username"),
		TargetType:    remote.Str(r, "target_type"),
		TargetID:      remote.Str(r, "target_id"),
		TargetName:    remote.Str(r, "target_name"),
		Details:       remote.Str(r, "details"),
		OldValue:      remote.Str(r, "old_value"),
		NewValue:      remote.Str(r, "new_value"),
	}
	if v := int64(remote.Float(r, "create_time", 0)); v > 0 {
		e.CreateTime = v
	} else {
		e.CreateTime = remote.Millis(r, "created_at")
	}
	return e
}
