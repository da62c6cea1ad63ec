package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/pkg/logger"
)

// Config 全局配置结构
// 设计说明：使用Viper管理配置，支持YAML文件与环境变量覆盖（SHOEPOS_前缀）
type Config struct {
	Server ServerConfig  `mapstructure:"server"`
	Cache  CacheConfig   `mapstructure:"cache"`
	Remote RemoteConfig  `mapstructure:"remote"`
	Sync   SyncConfig    `mapstructure:"sync"`
	JWT    JWTConfig     `mapstructure:"jwt"`
	Notify NotifyConfig  `mapstructure:"notify"`
	Log    logger.Config `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CacheConfig 本地存储配置
// driver=file时数据落在Dir下的JSON文件；driver=redis时走Redis；
// driver=memory仅用于临时试用，进程退出即丢失
type CacheConfig struct {
	Driver string      `mapstructure:"driver"` // file | redis | memory
	Dir    string      `mapstructure:"dir"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr 返回Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// RemoteConfig 云端数据库配置
// Enabled=false时系统以纯本地模式运行，所有写入走降级路径
type RemoteConfig struct {
	Enabled bool                 `mapstructure:"enabled"`
	MySQL   remote.GormConfig    `mapstructure:"mysql"`
	Breaker remote.BreakerConfig `mapstructure:"breaker"`
}

// SyncConfig 离线队列补同步配置
type SyncConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpire  time.Duration `mapstructure:"access_token_expire"`
	RefreshTokenExpire time.Duration `mapstructure:"refresh_token_expire"`
}

// NotifyConfig 库存告警通知配置
type NotifyConfig struct {
	Driver   string `mapstructure:"driver"` // log | mq | none
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
}

// Load 加载配置文件
// 支持：
// 1. 默认加载config/config.yaml
// 2. 环境变量覆盖（如SHOEPOS_REMOTE_MYSQL_DSN）
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	v.SetEnvPrefix("SHOEPOS")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("cache.driver", "file")
	v.SetDefault("cache.dir", "./data")
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.key_prefix", "shoepos:")

	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.mysql.max_open_conns", 10)
	v.SetDefault("remote.mysql.max_idle_conns", 5)
	v.SetDefault("remote.mysql.conn_max_lifetime", "1h")
	v.SetDefault("remote.mysql.op_timeout", "5s")
	v.SetDefault("remote.breaker.max_failures", 5)
	v.SetDefault("remote.breaker.reset_timeout", "30s")

	v.SetDefault("sync.flush_interval", "30s")

	v.SetDefault("jwt.access_token_expire", "2h")
	v.SetDefault("jwt.refresh_token_expire", "168h")

	v.SetDefault("notify.driver", "log")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// validate 配置校验
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务端口: %d", cfg.Server.Port)
	}

	switch cfg.Cache.Driver {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("不支持的本地存储驱动: %s", cfg.Cache.Driver)
	}

	if cfg.Remote.Enabled && cfg.Remote.MySQL.DSN == "" {
		return fmt.Errorf("已启用云端同步但未配置mysql.dsn")
	}

	if cfg.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret不能为空")
	}
	if cfg.JWT.Secret == "your-secret-key-change-in-production" && cfg.Server.Mode == "release" {
		return fmt.Errorf("生产环境必须修改JWT密钥")
	}

	if cfg.Notify.Driver == "mq" && cfg.Notify.AMQPURL == "" {
		return fmt.Errorf("已选择MQ通知但未配置amqp_url")
	}

	return nil
}
