// Package web 管理 API 处理函数
package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/internal/service"
)

// pageParams 解析分页参数
func pageParams(c *fiber.Ctx) (int, int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := c.QueryInt("page_size", 20)
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// EnqueueRequest 入队请求体
type EnqueueRequest struct {
	AlbumID string               `json:"album_id"`
	Source  models.RequestSource `json:"source"`
	UserID  *int64               `json:"user_id,omitempty"`
}

// enqueueAlbum 请求下载专辑
func (s *Server) enqueueAlbum(c *fiber.Ctx) error {
	var req EnqueueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "请求体解析失败")
	}
	if req.AlbumID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "album_id 不能为空")
	}
	if req.Source == "" {
		req.Source = models.SourceUser
	}

	item, err := s.enqueue.RequestAlbum(req.Source, req.UserID, req.AlbumID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicate):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, service.ErrDailyLimit), errors.Is(err, service.ErrQueueLimit):
			return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
		default:
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(item)
}

// queueStats 队列统计
func (s *Server) queueStats(c *fiber.Ctx) error {
	byStatus, err := s.queueRepo.CountByStatus()
	if err != nil {
		return err
	}
	byPriority, err := s.queueRepo.CountByPriority()
	if err != nil {
		return err
	}
	stale, err := s.queueRepo.FindStaleInProgress(s.staleAge)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"by_status":   byStatus,
		"by_priority": byPriority,
		"stale_count": len(stale),
	})
}

// listFailed 分页获取失败条目
func (s *Server) listFailed(c *fiber.Ctx) error {
	page, pageSize := pageParams(c)
	items, total, err := s.queueRepo.ListFailed(page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// getItem 获取条目详情和子条目进度
func (s *Server) getItem(c *fiber.Ctx) error {
	item, err := s.queueRepo.GetItem(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "条目不存在")
	}

	resp := fiber.Map{"item": item}
	if item.ContentType == models.ContentAlbum {
		progress, err := s.queueRepo.GetChildrenProgress(item.ID)
		if err != nil {
			return err
		}
		resp["children"] = progress
	}
	return c.JSON(resp)
}

// listUserRequests 获取用户的顶层请求和进度
func (s *Server) listUserRequests(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "用户 ID 无效")
	}

	page, pageSize := pageParams(c)
	items, total, err := s.queueRepo.ListByUser(int64(userID), page, pageSize)
	if err != nil {
		return err
	}

	type requestView struct {
		models.QueueItem
		Children *models.ChildrenProgress `json:"children,omitempty"`
	}
	views := make([]requestView, 0, len(items))
	for _, item := range items {
		view := requestView{QueueItem: item}
		if item.ContentType == models.ContentAlbum {
			if progress, err := s.queueRepo.GetChildrenProgress(item.ID); err == nil {
				view.Children = progress
			}
		}
		views = append(views, view)
	}

	return c.JSON(fiber.Map{
		"items":     views,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// retryItem 管理员手动重试失败条目
func (s *Server) retryItem(c *fiber.Ctx) error {
	id := c.Params("id")

	item, err := s.queueRepo.GetItem(id)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "条目不存在")
	}

	prevError := ""
	if item.ErrorMessage != nil {
		prevError = *item.ErrorMessage
	}

	ok, err := s.queueRepo.AdminRetry(id)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusConflict, "条目不是失败状态")
	}

	s.auditLogger.Record(models.AuditAdminRetry, item, service.AdminRetryDetail{
		PreviousError: prevError,
	})
	return c.JSON(fiber.Map{"status": "requeued"})
}

// activity 下载活动统计
func (s *Server) activity(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	if hours < 1 || hours > 24*30 {
		hours = 24
	}

	from := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := s.activityRepo.Range(from, time.Now())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"hours": rows})
}

// auditQuery 过滤分页查询审计日志
func (s *Server) auditQuery(c *fiber.Ctx) error {
	filter := repository.AuditFilter{
		QueueItemID: c.Query("queue_item_id"),
		Event:       models.AuditEvent(c.Query("event")),
		ContentID:   c.Query("content_id"),
	}
	if c.Query("user_id") != "" {
		userID := int64(c.QueryInt("user_id"))
		filter.UserID = &userID
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.To = &t
		}
	}

	page, pageSize := pageParams(c)
	entries, total, err := s.auditRepo.Query(filter, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"entries":   entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// throttleState 限速器状态
func (s *Server) throttleState(c *fiber.Ctx) error {
	return c.JSON(s.processor.Throttle().State())
}

// watchdogState 损坏检测器状态
func (s *Server) watchdogState(c *fiber.Ctx) error {
	return c.JSON(s.processor.Watchdog().State())
}

// reloadConfig 从磁盘重新加载配置文件
//
// 只刷新全局配置快照，已构建组件持有的参数不受影响。
func (s *Server) reloadConfig(c *fiber.Ctx) error {
	if _, err := config.Reload(); err != nil {
		if errors.Is(err, config.ErrNoConfigPath) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, "重新加载配置失败: "+err.Error())
	}
	return c.JSON(fiber.Map{"status": "reloaded"})
}

// watchdogReset 管理员重置损坏检测器
func (s *Server) watchdogReset(c *fiber.Ctx) error {
	prev := s.processor.Watchdog().State().Level
	s.processor.Watchdog().AdminReset()
	s.auditLogger.RecordSystem(models.AuditWatchdogReset, service.WatchdogResetDetail{
		PreviousLevel: prev,
	})
	return c.JSON(fiber.Map{"status": "reset"})
}
