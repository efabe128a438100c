// Package web 管理 API 服务
package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/internal/service"
	pkglogger "github.com/smysle/sakura-musicdl-go/pkg/logger"
)

// Server 管理 API 服务器
type Server struct {
	app       *fiber.App
	cfg       *config.APIConfig
	startTime time.Time

	queueRepo    *repository.QueueRepository
	activityRepo *repository.ActivityRepository
	auditRepo    *repository.AuditRepository
	auditLogger  *service.AuditLogger
	enqueue      *service.EnqueueService
	processor    *service.Processor
	staleAge     time.Duration
}

// New 创建管理 API 服务器
func New(
	cfg *config.Config,
	queueRepo *repository.QueueRepository,
	activityRepo *repository.ActivityRepository,
	auditRepo *repository.AuditRepository,
	auditLogger *service.AuditLogger,
	enqueue *service.EnqueueService,
	processor *service.Processor,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// 中间件
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.API.AllowOrigins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	server := &Server{
		app:          app,
		cfg:          &cfg.API,
		startTime:    time.Now(),
		queueRepo:    queueRepo,
		activityRepo: activityRepo,
		auditRepo:    auditRepo,
		auditLogger:  auditLogger,
		enqueue:      enqueue,
		processor:    processor,
		staleAge:     time.Duration(cfg.Queue.StaleMinutes) * time.Minute,
	}

	server.registerRoutes()

	return server
}

// registerRoutes 注册路由
func (s *Server) registerRoutes() {
	// 健康检查
	s.app.Get("/health", s.healthCheck)
	s.app.Get("/", s.healthCheck)

	// API v1
	v1 := s.app.Group("/api/v1")

	// 队列
	queue := v1.Group("/queue")
	queue.Post("/", s.enqueueAlbum)
	queue.Get("/stats", s.queueStats)
	queue.Get("/failed", s.listFailed)
	queue.Get("/user/:id", s.listUserRequests)
	queue.Get("/:id", s.getItem)
	queue.Post("/:id/retry", s.retryItem)

	// 统计与审计
	v1.Get("/activity", s.activity)
	v1.Get("/audit", s.auditQuery)

	// 限速与损坏检测
	v1.Get("/throttle", s.throttleState)
	v1.Get("/watchdog", s.watchdogState)
	v1.Post("/watchdog/reset", s.watchdogReset)

	// 配置
	v1.Post("/config/reload", s.reloadConfig)
}

// Start 启动服务器
func (s *Server) Start() error {
	if !s.cfg.Enabled {
		pkglogger.Info().Msg("【API服务】未启用，跳过...")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	pkglogger.Info().Str("addr", addr).Msg("【API服务】启动中...")

	return s.app.Listen(addr)
}

// Stop 停止服务器
func (s *Server) Stop() error {
	return s.app.Shutdown()
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	})
}
