// Package service 请求入队
package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
)

var (
	// ErrDuplicate 内容已在活动队列中
	ErrDuplicate = errors.New("该内容已在下载队列中")
	// ErrDailyLimit 用户当日请求已达上限
	ErrDailyLimit = errors.New("今日请求次数已用完")
	// ErrQueueLimit 用户同时排队数已达上限
	ErrQueueLimit = errors.New("排队中的请求已达上限")
)

// EnqueueService 下载请求入队
//
// 用户请求、完整性修复和曲库扩充都从这里进队。
type EnqueueService struct {
	queueRepo *repository.QueueRepository
	statsRepo *repository.StatsRepository
	audit     *AuditLogger
	cfg       *config.QueueConfig
}

// NewEnqueueService 创建入队服务
func NewEnqueueService(
	queueRepo *repository.QueueRepository,
	statsRepo *repository.StatsRepository,
	audit *AuditLogger,
	cfg *config.QueueConfig,
) *EnqueueService {
	return &EnqueueService{
		queueRepo: queueRepo,
		statsRepo: statsRepo,
		audit:     audit,
		cfg:       cfg,
	}
}

// priorityFor 请求来源决定优先级
func priorityFor(source models.RequestSource) models.Priority {
	switch source {
	case models.SourceWatchdog:
		return models.PriorityWatchdog
	case models.SourceUser:
		return models.PriorityUser
	default:
		return models.PriorityExpansion
	}
}

// RequestAlbum 请求下载一张专辑
//
// 同一内容已在活动队列时拒绝（不产生重复行）；
// 用户来源还要通过每日配额和排队上限检查。
func (s *EnqueueService) RequestAlbum(source models.RequestSource, userID *int64, albumID string) (*models.QueueItem, error) {
	active, err := s.queueRepo.IsInActiveQueue(models.ContentAlbum, albumID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrDuplicate
	}

	if source == models.SourceUser && userID != nil {
		stats, err := s.statsRepo.Get(*userID)
		if err != nil {
			return nil, err
		}
		if stats.RequestsToday >= s.cfg.UserDailyLimit {
			return nil, ErrDailyLimit
		}
		if stats.RequestsInQueue >= s.cfg.UserQueueLimit {
			return nil, ErrQueueLimit
		}
	}

	item := &models.QueueItem{
		ID:          uuid.NewString(),
		Status:      models.StatusPending,
		Priority:    priorityFor(source),
		ContentType: models.ContentAlbum,
		ContentID:   albumID,
		Source:      source,
		UserID:      userID,
		MaxRetries:  s.cfg.MaxRetries,
	}
	if source != models.SourceUser {
		item.UserID = nil
	}

	// 存在性检查和建行放在同一事务里，并发重复请求只会成功一个
	created, err := s.queueRepo.EnqueueIfAbsent(item)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrDuplicate
	}

	if source == models.SourceUser && userID != nil {
		if err := s.statsRepo.IncrementRequest(*userID); err != nil {
			logger.Warn().Err(err).Int64("user", *userID).Msg("累加用户请求计数失败")
		}
	}

	s.audit.Record(models.AuditCreated, item, CreatedDetail{
		ContentType: item.ContentType,
		Priority:    item.Priority,
		Source:      item.Source,
	})

	logger.Info().
		Str("item", item.ID).
		Str("album", albumID).
		Str("source", string(source)).
		Msg("专辑请求入队")
	return item, nil
}
