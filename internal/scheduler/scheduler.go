// Package scheduler 定时任务调度
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/internal/service"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
	"github.com/smysle/sakura-musicdl-go/pkg/utils"
)

// Scheduler 定时任务调度器
type Scheduler struct {
	cron *gocron.Scheduler
	cfg  *config.Config

	processor    *service.Processor
	queueRepo    *repository.QueueRepository
	activityRepo *repository.ActivityRepository
	notifier     service.OwnerNotifier
}

// New 创建调度器
func New(
	cfg *config.Config,
	processor *service.Processor,
	queueRepo *repository.QueueRepository,
	activityRepo *repository.ActivityRepository,
	notifier service.OwnerNotifier,
) *Scheduler {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	s := gocron.NewScheduler(loc)

	return &Scheduler{
		cron:         s,
		cfg:          cfg,
		processor:    processor,
		queueRepo:    queueRepo,
		activityRepo: activityRepo,
		notifier:     notifier,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() {
	logger.Info().Msg("启动定时任务调度器")

	s.registerJobs()
	s.cron.StartAsync()
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	logger.Info().Msg("停止定时任务调度器")
	s.cron.Stop()
}

// registerJobs 注册所有定时任务
func (s *Scheduler) registerJobs() {
	// 处理循环 - 单例模式保证 tick 不重叠
	tick := s.cfg.Queue.TickSeconds
	s.cron.Every(tick).Seconds().SingletonMode().Do(s.processor.Tick)
	logger.Info().Int("interval", tick).Msg("已注册: 下载处理循环")

	// 重试提升 - 每 30 秒
	s.cron.Every(30).Seconds().Do(s.promoteRetries)
	logger.Info().Msg("已注册: 重试提升任务 (每 30 秒)")

	// 滞留条目扫描 - 每 10 分钟
	s.cron.Every(10).Minutes().Do(s.scanStale)
	logger.Info().Msg("已注册: 滞留条目扫描 (每 10 分钟)")

	// 活动汇总 - 每小时
	s.cron.Every(1).Hour().Do(s.logActivity)
	logger.Info().Msg("已注册: 活动汇总任务 (每小时)")
}

// promoteRetries 把重试时间已到的条目提升回待处理
func (s *Scheduler) promoteRetries() {
	promoted, err := s.queueRepo.PromoteDueRetries()
	if err != nil {
		logger.Error().Err(err).Msg("提升重试条目失败")
		return
	}
	if promoted > 0 {
		logger.Info().Int64("count", promoted).Msg("重试条目已提升回队列")
	}
}

// scanStale 扫描滞留的处理中条目
//
// 只告警不改状态：卡在半途的条目多半是进程崩溃或上游挂起，
// 不是内容本身的问题，留给人工判断。
func (s *Scheduler) scanStale() {
	age := time.Duration(s.cfg.Queue.StaleMinutes) * time.Minute
	items, err := s.queueRepo.FindStaleInProgress(age)
	if err != nil {
		logger.Error().Err(err).Msg("扫描滞留条目失败")
		return
	}
	if len(items) == 0 {
		return
	}

	for _, item := range items {
		logger.Warn().
			Str("item", item.ID).
			Str("type", string(item.ContentType)).
			Str("content", item.ContentID).
			Time("started_at", *item.StartedAt).
			Msg("发现滞留的处理中条目")
	}

	if s.notifier != nil {
		s.notifier.SendToOwner(fmt.Sprintf(
			"⚠️ **滞留条目告警**\n\n有 %d 个条目卡在处理中超过 %s，请人工检查。",
			len(items), utils.FormatDuration(age),
		))
	}
}

// logActivity 记录最近 24 小时的下载活动
func (s *Scheduler) logActivity() {
	total, err := s.activityRepo.DayTotal()
	if err != nil {
		logger.Error().Err(err).Msg("汇总活动统计失败")
		return
	}

	logger.Info().
		Int64("albums", total.Albums).
		Int64("tracks", total.Tracks).
		Int64("images", total.Images).
		Str("bytes", utils.FormatBytes(total.Bytes)).
		Int64("failures", total.Failures).
		Msg("最近 24 小时下载活动")
}
