package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xiebiao/shoepos/internal/domain/member"
	"github.com/xiebiao/shoepos/internal/domain/oplog"
	"github.com/xiebiao/shoepos/internal/domain/product"
	"github.com/xiebiao/shoepos/internal/domain/returns"
	"github.com/xiebiao/shoepos/internal/domain/sale"
	"github.com/xiebiao/shoepos/internal/domain/user"
	"github.com/xiebiao/shoepos/internal/infrastructure/cache"
	"github.com/xiebiao/shoepos/internal/infrastructure/config"
	"github.com/xiebiao/shoepos/internal/infrastructure/remote"
	"github.com/xiebiao/shoepos/internal/interface/http/handler"
	"github.com/xiebiao/shoepos/internal/interface/http/middleware"
	"github.com/xiebiao/shoepos/internal/store"
	"github.com/xiebiao/shoepos/pkg/jwt"
	"github.com/xiebiao/shoepos/pkg/logger"
	"github.com/xiebiao/shoepos/pkg/notify"
	"github.com/xiebiao/shoepos/pkg/response"
)

// main 主程序入口
// 说明：手动依赖注入，构造顺序 配置 → 日志 → 本地缓存 → 云端客户端 →
// 离线队列 → 各领域Store → HTTP层
func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志
	zlog, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("配置加载成功",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.Bool("remote_enabled", cfg.Remote.Enabled))

	// 3. 本地缓存：断网时的唯一数据源，初始化失败直接退出
	local, err := newCacheStore(cfg, zlog)
	if err != nil {
		zlog.Fatal("初始化本地缓存失败", zap.Error(err))
	}

	// 4. 云端客户端：连不上不致命，降级为纯本地模式
	client := newRemoteClient(cfg, zlog)

	// 5. 离线操作队列
	queue := store.NewQueue(local, client, zlog)

	// 6. 库存告警通知
	notifier := newNotifier(cfg, zlog)

	// 7. 领域Store
	products := product.NewStore(local, client, queue, notifier, zlog)
	members := member.NewStore(local, client, queue, zlog)
	sales := sale.NewStore(local, client, queue, products, members, zlog)
	rets := returns.NewStore(local, client, queue, products, zlog)
	users := user.NewStore(local, client, queue, zlog)
	logs := oplog.NewStore(local, client, zlog)

	// 8. 启动时全量加载（本地秒开，云端合并尽力而为）
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	loads := []struct {
		name string
		load func(context.Context) error
	}{
		{"users", users.Load},
		{"products", products.Load},
		{"members", members.Load},
		{"sales", sales.Load},
		{"returns", rets.Load},
		{"oplogs", logs.Load},
	}
	for _, l := range loads {
		if err := l.load(loadCtx); err != nil {
			zlog.Warn("集合加载失败，继续以空集启动", zap.String("collection", l.name), zap.Error(err))
		}
	}

	// 9. 周期性补同步
	go flushLoop(queue, cfg.Sync.FlushInterval, zlog)

	// 10. HTTP层
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire, cfg.JWT.RefreshTokenExpire)
	authMW := middleware.NewAuthMiddleware(jwtManager, users)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	registerRoutes(r, routeDeps{
		auth:     authMW,
		users:    handler.NewUserHandler(users, jwtManager, logs),
		products: handler.NewProductHandler(products, logs),
		sales:    handler.NewSaleHandler(sales, logs),
		members:  handler.NewMemberHandler(members, logs),
		returns:  handler.NewReturnHandler(rets, logs),
		stats:    handler.NewStatsHandler(sales, products, rets),
		oplogs:   handler.NewOpLogHandler(logs),
		sync:     handler.NewSyncHandler(queue),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	zlog.Info("服务启动", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		zlog.Fatal("启动服务失败", zap.Error(err))
	}
}

// newCacheStore 按配置选择本地缓存后端
func newCacheStore(cfg *config.Config, zlog *zap.Logger) (cache.Store, error) {
	switch cfg.Cache.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr(),
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		return cache.NewRedisStore(rdb, cfg.Cache.Redis.KeyPrefix, zlog)
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return cache.NewFileStore(cfg.Cache.Dir, zlog)
	}
}

// newRemoteClient 构建云端客户端
// remote.enabled=false时远端是进程内存，写入"成功"但不出进程；
// MySQL连接失败时远端持续报不可用，写入走降级路径并进离线队列，
// 等下次带着连通性重启后补同步
func newRemoteClient(cfg *config.Config, zlog *zap.Logger) remote.Client {
	if !cfg.Remote.Enabled {
		zlog.Info("云端同步未启用，以纯本地模式运行")
		return remote.NewMemory()
	}

	gc, err := remote.NewGormClient(cfg.Remote.MySQL, zlog)
	if err != nil {
		zlog.Warn("连接云端数据库失败，以纯本地模式启动", zap.Error(err))
		m := remote.NewMemory()
		m.Err = err
		return m
	}

	return remote.NewBreaker(gc, cfg.Remote.Breaker, zlog)
}

// newNotifier 按配置选择库存告警通知方式
func newNotifier(cfg *config.Config, zlog *zap.Logger) notify.Notifier {
	switch cfg.Notify.Driver {
	case "mq":
		n, err := notify.NewMQNotifier(cfg.Notify.AMQPURL, cfg.Notify.Exchange, zlog)
		if err != nil {
			zlog.Warn("连接MQ失败，库存告警退回日志输出", zap.Error(err))
			return notify.NewZapNotifier(zlog)
		}
		return n
	case "none":
		return notify.Nop{}
	default:
		return notify.NewZapNotifier(zlog)
	}
}

// flushLoop 周期性重放离线队列
func flushLoop(queue *store.Queue, interval time.Duration, zlog *zap.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		if queue.Len() == 0 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		if err := queue.Flush(ctx); err != nil {
			zlog.Debug("补同步未完成，等待下个周期", zap.Error(err), zap.Int("pending", queue.Len()))
		}
		cancel()
	}
}

type routeDeps struct {
	auth     *middleware.AuthMiddleware
	users    *handler.UserHandler
	products *handler.ProductHandler
	sales    *handler.SaleHandler
	members  *handler.MemberHandler
	returns  *handler.ReturnHandler
	stats    *handler.StatsHandler
	oplogs   *handler.OpLogHandler
	sync     *handler.SyncHandler
}

// registerRoutes 注册路由
func registerRoutes(r *gin.Engine, d routeDeps) {
	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	// Prometheus指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// 登录不需要认证
	auth := v1.Group("/auth")
	{
		auth.POST("/login", d.users.Login)
		auth.POST("/refresh", d.users.RefreshToken)
	}

	authorized := v1.Group("")
	authorized.Use(d.auth.RequireAuth())
	{
		authorized.POST("/auth/logout", d.users.Logout)
		authorized.GET("/auth/profile", d.users.Profile)
		authorized.POST("/auth/change-password", d.users.ChangePassword)

		products := authorized.Group("/products")
		{
			products.GET("", d.auth.RequirePermission(user.PermProductView), d.products.List)
			products.GET("/low-stock", d.auth.RequirePermission(user.PermProductView), d.products.LowStock)
			products.GET("/stock-value", d.auth.RequirePermission(user.PermStatsView), d.products.StockValue)
			products.GET("/:id", d.auth.RequirePermission(user.PermProductView), d.products.Get)
			products.POST("", d.auth.RequirePermission(user.PermProductAdd), d.products.Create)
			products.PUT("/:id", d.auth.RequirePermission(user.PermProductEdit), d.products.Update)
			products.DELETE("/:id", d.auth.RequirePermission(user.PermProductDelete), d.products.Delete)
			products.POST("/:id/stock", d.auth.RequirePermission(user.PermProductEdit), d.products.AdjustStock)
		}

		sales := authorized.Group("/sales")
		{
			sales.GET("", d.auth.RequirePermission(user.PermSalesView), d.sales.List)
			sales.GET("/:id", d.auth.RequirePermission(user.PermSalesView), d.sales.Get)
			sales.POST("", d.auth.RequirePermission(user.PermSalesAdd), d.sales.Create)
			sales.DELETE("/:id", d.auth.RequirePermission(user.PermSalesDelete), d.sales.Delete)
		}

		purchases := authorized.Group("/purchases")
		{
			purchases.GET("", d.auth.RequirePermission(user.PermPurchaseView), d.sales.ListPurchases)
			purchases.POST("", d.auth.RequirePermission(user.PermPurchaseAdd), d.sales.CreatePurchase)
			purchases.DELETE("/:id", d.auth.RequirePermission(user.PermPurchaseAdd), d.sales.DeletePurchase)
		}

		members := authorized.Group("/members")
		{
			members.GET("", d.auth.RequirePermission(user.PermMemberView), d.members.List)
			members.GET("/by-phone/:phone", d.auth.RequirePermission(user.PermMemberView), d.members.GetByPhone)
			members.GET("/:id", d.auth.RequirePermission(user.PermMemberView), d.members.Get)
			members.POST("", d.auth.RequirePermission(user.PermMemberAdd), d.members.Create)
			members.PUT("/:id", d.auth.RequirePermission(user.PermMemberEdit), d.members.Update)
			members.DELETE("/:id", d.auth.RequirePermission(user.PermMemberEdit), d.members.Delete)
			members.POST("/:id/recharge", d.auth.RequirePermission(user.PermMemberRecharge), d.members.Recharge)
		}

		rets := authorized.Group("/returns")
		{
			rets.GET("", d.auth.RequirePermission(user.PermReturnsView), d.returns.List)
			rets.GET("/quantity", d.auth.RequirePermission(user.PermReturnsView), d.returns.ReturnedQuantity)
			rets.POST("", d.auth.RequirePermission(user.PermReturnsAdd), d.returns.Create)
			rets.DELETE("/:id", d.auth.RequirePermission(user.PermReturnsAdd), d.returns.Delete)
		}

		stats := authorized.Group("/stats")
		{
			stats.GET("/dashboard", d.auth.RequirePermission(user.PermStatsView), d.stats.Dashboard)
			stats.GET("/summary", d.auth.RequirePermission(user.PermStatsView), d.stats.Summary)
			stats.GET("/trend", d.auth.RequirePermission(user.PermStatsReport), d.stats.Trend)
			stats.GET("/top-products", d.auth.RequirePermission(user.PermStatsReport), d.stats.TopProducts)
			stats.GET("/salesperson", d.auth.RequirePermission(user.PermStaffStatsView), d.stats.Salesperson)
		}

		users := authorized.Group("/users")
		users.Use(d.auth.RequirePermission(user.PermUserView))
		{
			users.GET("", d.users.List)
			users.POST("", d.auth.RequirePermission(user.PermUserAdd), d.users.Create)
			users.PUT("/:id", d.auth.RequirePermission(user.PermUserEdit), d.users.Update)
			users.DELETE("/:id", d.auth.RequirePermission(user.PermUserDelete), d.users.Delete)
			users.POST("/:id/toggle-status", d.auth.RequirePermission(user.PermUserEdit), d.users.ToggleStatus)
			users.POST("/:id/reset-password", d.auth.RequirePermission(user.PermUserEdit), d.users.ResetPassword)
		}

		oplogs := authorized.Group("/oplogs")
		{
			oplogs.GET("", d.auth.RequirePermission(user.PermStatsView), d.oplogs.List)
			oplogs.POST("/clear", d.auth.RequirePermission(user.PermDataClear), d.oplogs.ClearOld)
		}

		syncGroup := authorized.Group("/sync")
		{
			syncGroup.GET("/status", d.sync.Status)
			syncGroup.POST("/flush", d.sync.Flush)
		}
	}
}
