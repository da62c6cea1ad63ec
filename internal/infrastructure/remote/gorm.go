package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	apperrors "github.com/xiebiao/shoepos/pkg/errors"
)

// GormClient MySQL远端实现
//
// 设计说明：
// 1. 用gorm的map模式（db.Table(...).Find(&[]map[string]any{})）而不是
//    静态模型：表结构由远端维护，本地只做松散映射
// 2. insert时分配UUID主键和created_at，这两个字段是合并协议的锚点
// 3. 所有错误统一收敛为RemoteUnavailable语义，调用方只需要区分
//    "远端可用/不可用"，不关心具体是连接超时还是SQL错误
type GormClient struct {
	db  *gorm.DB
	log *zap.Logger
}

// GormConfig MySQL连接配置
type GormConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	OpTimeout       time.Duration `mapstructure:"op_timeout"`
}

const defaultOpTimeout = 5 * time.Second

// NewGormClient 建立MySQL连接并返回客户端
// 连接失败直接返回错误：部署方若想纯离线运行应当在配置里关闭远端
func NewGormClient(cfg GormConfig, log *zap.Logger) (*GormClient, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("连接远端数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库连接池失败: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}

	return &GormClient{db: db.Set("op_timeout", cfg.OpTimeout), log: log}, nil
}

func (c *GormClient) opTimeout() time.Duration {
	if v, ok := c.db.Get("op_timeout"); ok {
		if d, ok := v.(time.Duration); ok {
			return d
		}
	}
	return defaultOpTimeout
}

// validTable 只放行字母数字下划线的表名，防止拼接注入
func validTable(table string) bool {
	for _, r := range table {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return table != ""
}

func (c *GormClient) remoteErr(op, table string, err error) error {
	c.log.Warn("远端操作失败",
		zap.String("op", op),
		zap.String("table", table),
		zap.Error(err))
	return apperrors.WrapCode(apperrors.ErrCodeRemoteUnavailable, err,
		fmt.Sprintf("云端%s失败", op))
}

// Select 查询行集合
func (c *GormClient) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if !validTable(table) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "非法表名")
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout())
	defer cancel()

	tx := c.db.WithContext(ctx).Table(table)
	for k, v := range q.Filters {
		tx = tx.Where(fmt.Sprintf("%s = ?", k), v)
	}
	if q.OrderBy != "" {
		order := q.OrderBy
		if q.Desc {
			order += " DESC"
		}
		tx = tx.Order(order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []map[string]any
	if err := tx.Find(&rows).Error; err != nil {
		return nil, c.remoteErr("查询", table, err)
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = Row(r)
	}
	return out, nil
}

// Insert 插入行并回填远端分配的id和created_at
func (c *GormClient) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if !validTable(table) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, "非法表名")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout())
	defer cancel()

	now := time.Now()
	inserted := make([]Row, len(rows))
	payload := make([]map[string]any, len(rows))
	for i, r := range rows {
		row := Row{}
		for k, v := range r {
			row[k] = v
		}
		if Str(row, "id") == "" || !IsRemoteID(Str(row, "id")) {
			row["id"] = uuid.NewString()
		}
		if _, ok := row["created_at"]; !ok {
			row["created_at"] = now
		}
		inserted[i] = row
		payload[i] = map[string]any(row)
	}

	if err := c.db.WithContext(ctx).Table(table).Create(&payload).Error; err != nil {
		return nil, c.remoteErr("写入", table, err)
	}
	return inserted, nil
}

// Update 按id局部更新
func (c *GormClient) Update(ctx context.Context, table string, id string, patch Row) error {
	if !validTable(table) {
		return apperrors.New(apperrors.ErrCodeInvalidParams, "非法表名")
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout())
	defer cancel()

	tx := c.db.WithContext(ctx).Table(table).
		Where("id = ?", id).
		Updates(map[string]any(patch))
	if tx.Error != nil {
		return c.remoteErr("更新", table, tx.Error)
	}
	return nil
}

// Delete 按id删除
func (c *GormClient) Delete(ctx context.Context, table string, id string) error {
	if !validTable(table) {
		return apperrors.New(apperrors.ErrCodeInvalidParams, "非法表名")
	}
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout())
	defer cancel()

	if err := c.db.WithContext(ctx).Exec(
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id).Error; err != nil {
		return c.remoteErr("删除", table, err)
	}
	return nil
}
