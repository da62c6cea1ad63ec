// Package cache 本地持久缓存（Local Durable Cache）
//
// 设计说明：
// 1. 每个实体集合一个键（products、sales、members...），值为JSON序列化的
//    整集合快照；另有currentUser、迁移标记、离线队列等标量键
// 2. 接口语义对齐浏览器localStorage：同步读写、写失败不对外暴露
//    （错误记日志后吞掉，界面的可用性优先于备份的持久性）
// 3. 写入始终是整键覆盖而非局部修补，单键内不存在交错写坏的问题，
//    因此不需要键级锁
package cache

// Store 字符串键值缓存接口
//
// GetItem第二个返回值表示键是否存在（区分"空串"与"不存在"）
// SetItem/RemoveItem不返回错误：实现内部记录日志并吞掉失败
type Store interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
}
