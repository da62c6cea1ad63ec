// Package logger 提供基于zap的结构化日志
//
// 设计说明：
// 1. 离线优先的数据层有大量"吸收并降级"的错误路径（云端加载失败、
//    写入失败转本地等），这些错误不上抛给调用方，但必须留下结构化日志
// 2. 日志级别约定：
//    - Warn: 被吸收的远端失败（数据已落本地，等待补同步）
//    - Error: 回滚路径、缓存写入失败等需要关注的异常
//    - Info: 加载/合并/迁移等关键节点
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置（由viper从config.yaml解析）
type Config struct {
	Level        string `mapstructure:"level"`  // debug | info | warn | error
	Format       string `mapstructure:"format"` // console | json
	Output       string `mapstructure:"output"` // stdout | stderr | /path/to/file
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// New 按配置构建zap日志器
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("无效的日志级别 %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableCaller = !cfg.EnableCaller

	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
		zapCfg.ErrorOutputPaths = []string{cfg.Output}
	}

	log, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return log, nil
}

// Nop 返回不输出任何内容的日志器（测试用）
func Nop() *zap.Logger {
	return zap.NewNop()
}
