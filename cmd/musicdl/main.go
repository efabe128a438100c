// Sakura MusicDL - Go Version
// 媒体库下载获取服务
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/catalog"
	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/internal/notify"
	"github.com/smysle/sakura-musicdl-go/internal/provider"
	"github.com/smysle/sakura-musicdl-go/internal/scheduler"
	"github.com/smysle/sakura-musicdl-go/internal/service"
	"github.com/smysle/sakura-musicdl-go/internal/web"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
)

var (
	configPath = flag.String("config", "config.json", "配置文件路径")
	debug      = flag.Bool("debug", false, "调试模式")
)

func main() {
	flag.Parse()

	// 初始化日志
	logger.Init(*debug)
	logger.Info().Msg("🌸 Sakura MusicDL Go 启动中...")

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}
	config.SetConfigPath(*configPath)
	logger.Info().Msg("✅ 配置加载完成")

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal().Err(err).Msg("初始化数据库失败")
	}
	defer database.Close()
	logger.Info().Msg("✅ 数据库连接成功")

	// 媒体库元数据
	catalogStore, err := catalog.NewStore()
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化媒体库失败")
	}

	// 数据仓库
	queueRepo := repository.NewQueueRepository()
	statsRepo := repository.NewStatsRepository()
	activityRepo := repository.NewActivityRepository()
	auditRepo := repository.NewAuditRepository()
	watchdogRepo := repository.NewWatchdogRepository()

	// 告警通知
	notifier, err := notify.New(&cfg.Telegram)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化告警通知失败")
	}

	// 核心组件
	auditLogger := service.NewAuditLogger(auditRepo)
	throttle := service.NewThrottle(&cfg.Throttle)
	watchdog, err := service.NewWatchdog(&cfg.Watchdog, watchdogRepo)
	if err != nil {
		logger.Fatal().Err(err).Msg("恢复损坏检测状态失败")
	}
	retryPolicy := service.NewRetryPolicy(&cfg.Queue)

	providerClient := provider.NewClient(
		cfg.Provider.URL,
		cfg.Provider.APIKey,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
	)

	processor := service.NewProcessor(
		cfg, queueRepo, statsRepo, activityRepo, auditLogger,
		throttle, watchdog, retryPolicy,
		providerClient, catalogStore, notifier,
	)
	enqueueSvc := service.NewEnqueueService(queueRepo, statsRepo, auditLogger, &cfg.Queue)

	// 定时任务调度器
	sched := scheduler.New(cfg, processor, queueRepo, activityRepo, notifier)
	sched.Start()
	defer sched.Stop()
	logger.Info().Msg("✅ 定时任务调度器启动")

	// 管理 API 服务
	webServer := web.New(cfg, queueRepo, activityRepo, auditRepo, auditLogger, enqueueSvc, processor)
	go func() {
		if err := webServer.Start(); err != nil {
			logger.Error().Err(err).Msg("管理 API 服务启动失败")
		}
	}()
	defer webServer.Stop()

	logger.Info().Msg("🚀 Sakura MusicDL Go 启动成功!")
	logger.Info().Msg("按 Ctrl+C 停止...")

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务...")
	logger.Info().Msg("👋 再见!")
}
