// Package service 下载处理循环
package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smysle/sakura-musicdl-go/internal/catalog"
	"github.com/smysle/sakura-musicdl-go/internal/config"
	"github.com/smysle/sakura-musicdl-go/internal/database/models"
	"github.com/smysle/sakura-musicdl-go/internal/database/repository"
	"github.com/smysle/sakura-musicdl-go/internal/media"
	"github.com/smysle/sakura-musicdl-go/internal/provider"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
	"github.com/smysle/sakura-musicdl-go/pkg/utils"
)

// OwnerNotifier 运维告警通道
type OwnerNotifier interface {
	SendToOwner(text string)
}

// Processor 下载处理器
//
// 每个 tick 最多认领并处理一个条目：先过冷却和带宽两道闸，
// 再按优先级取队首，按内容类型分发，最后把结果折回
// 限速器、检测器、重试策略和审计日志。
type Processor struct {
	cfg *config.Config

	queueRepo    *repository.QueueRepository
	statsRepo    *repository.StatsRepository
	activityRepo *repository.ActivityRepository
	audit        *AuditLogger

	throttle *Throttle
	watchdog *Watchdog
	retry    *RetryPolicy

	provider *provider.Client
	catalog  *catalog.Store
	notifier OwnerNotifier

	// 保证并发检测时最多只有一次未完成的重启请求
	restartMu sync.Mutex
}

// NewProcessor 创建处理器
func NewProcessor(
	cfg *config.Config,
	queueRepo *repository.QueueRepository,
	statsRepo *repository.StatsRepository,
	activityRepo *repository.ActivityRepository,
	audit *AuditLogger,
	throttle *Throttle,
	watchdog *Watchdog,
	retry *RetryPolicy,
	providerClient *provider.Client,
	catalogStore *catalog.Store,
	notifier OwnerNotifier,
) *Processor {
	return &Processor{
		cfg:          cfg,
		queueRepo:    queueRepo,
		statsRepo:    statsRepo,
		activityRepo: activityRepo,
		audit:        audit,
		throttle:     throttle,
		watchdog:     watchdog,
		retry:        retry,
		provider:     providerClient,
		catalog:      catalogStore,
		notifier:     notifier,
	}
}

// Throttle 暴露限速器（管理接口用）
func (p *Processor) Throttle() *Throttle {
	return p.throttle
}

// Watchdog 暴露检测器（管理接口用）
func (p *Processor) Watchdog() *Watchdog {
	return p.watchdog
}

// Tick 处理循环的一次迭代
func (p *Processor) Tick() {
	// 冷却期内什么都不做
	if p.watchdog.InCooldown() {
		return
	}
	// 带宽预算耗尽时等下一轮
	if p.throttle.CheckBandwidth() {
		logger.Debug().Msg("带宽预算耗尽，本轮跳过")
		return
	}

	item, err := p.queueRepo.GetNextPending()
	if err != nil {
		logger.Error().Err(err).Msg("读取队列失败")
		return
	}
	if item == nil {
		return
	}

	claimed, err := p.queueRepo.ClaimForProcessing(item.ID)
	if err != nil {
		logger.Error().Err(err).Str("item", item.ID).Msg("认领条目失败")
		return
	}
	if !claimed {
		// 别人先拿到了，正常情况
		return
	}

	p.audit.Record(models.AuditStarted, item, StartedDetail{RetryCount: item.RetryCount})

	start := time.Now()
	var bytes int64
	switch item.ContentType {
	case models.ContentAlbum:
		err = p.processAlbum(item)
	case models.ContentTrackAudio:
		bytes, err = p.processTrackAudio(item)
	case models.ContentArtistImage, models.ContentAlbumImage:
		bytes, err = p.processImage(item)
	default:
		err = provider.NewError(provider.ErrUnknown, "未知内容类型: %s", item.ContentType)
	}

	p.finish(item, bytes, start, err)
}

// processAlbum 专辑入库：拉元数据、写媒体库、生成子条目
//
// 成功后父条目保持 in_progress —— 它不在下载，而是在等子条目。
func (p *Processor) processAlbum(item *models.QueueItem) error {
	album, err := p.provider.GetAlbum(item.ContentID)
	if err != nil {
		return err
	}
	tracks, err := p.provider.GetAlbumTracks(item.ContentID)
	if err != nil {
		return err
	}
	artist, err := p.provider.GetArtist(album.ArtistID)
	if err != nil {
		return err
	}

	// 已有的艺术家跳过插入
	exists, err := p.catalog.ArtistExists(artist.ID)
	if err != nil {
		return provider.NewError(provider.ErrStorage, "查询艺术家失败: %v", err)
	}
	var artistRow *catalog.Artist
	if exists {
		artistRow, err = p.catalog.GetArtistByExternalID(artist.ID)
	} else {
		artistRow, err = p.catalog.InsertArtist(artist.ID, artist.Name)
	}
	if err != nil {
		return provider.NewError(provider.ErrStorage, "写入艺术家失败: %v", err)
	}

	albumRow, err := p.catalog.InsertAlbum(album.ID, artistRow.ID, album.Title, album.Year)
	if err != nil {
		return provider.NewError(provider.ErrStorage, "写入专辑失败: %v", err)
	}

	children := make([]models.QueueItem, 0, len(tracks)+2)
	for _, track := range tracks {
		if _, err := p.catalog.InsertTrack(track.ID, albumRow.ID, artistRow.ID,
			track.Title, track.TrackNumber, track.DiscNumber, track.Duration); err != nil {
			return provider.NewError(provider.ErrStorage, "写入曲目失败: %v", err)
		}
		children = append(children, models.QueueItem{
			ID:          uuid.NewString(),
			ContentType: models.ContentTrackAudio,
			ContentID:   track.ID,
		})
	}

	// 封面和肖像去重后各生成一个子条目
	seen := make(map[string]bool)
	if album.CoverImageID != "" && !seen[album.CoverImageID] {
		seen[album.CoverImageID] = true
		children = append(children, models.QueueItem{
			ID:          uuid.NewString(),
			ContentType: models.ContentAlbumImage,
			ContentID:   album.CoverImageID,
		})
	}
	if artist.PortraitImageID != "" && !seen[artist.PortraitImageID] {
		seen[artist.PortraitImageID] = true
		children = append(children, models.QueueItem{
			ID:          uuid.NewString(),
			ContentType: models.ContentArtistImage,
			ContentID:   artist.PortraitImageID,
		})
	}

	if err := p.queueRepo.CreateChildren(item.ID, children); err != nil {
		return provider.NewError(provider.ErrStorage, "创建子条目失败: %v", err)
	}

	if err := p.activityRepo.Record(repository.ActivityDelta{Albums: 1}); err != nil {
		logger.Warn().Err(err).Msg("记录活动统计失败")
	}

	logger.Info().
		Str("item", item.ID).
		Str("album", album.Title).
		Int("children", len(children)).
		Msg("专辑入库完成，等待子条目下载")

	// 没有任何子条目的专辑直接完成
	if len(children) == 0 {
		if err := p.queueRepo.MarkCompleted(item.ID, 0, 0); err != nil {
			return provider.NewError(provider.ErrStorage, "标记完成失败: %v", err)
		}
		p.audit.Record(models.AuditCompleted, item, CompletedDetail{})
		p.settleTopLevel(item)
	}
	return nil
}

// processTrackAudio 下载单首曲目
func (p *Processor) processTrackAudio(item *models.QueueItem) (int64, error) {
	data, contentType, err := p.provider.DownloadTrackAudio(item.ContentID)
	if err != nil {
		return 0, err
	}
	bytes := int64(len(data))

	ext := media.ExtensionForContentType(contentType)
	path := media.AudioPath(p.cfg.Media.Root, item.ContentID, ext)
	if err := writeFile(path, data); err != nil {
		return bytes, err
	}

	// 格式校验失败是损坏信号，由 finish 折给检测器
	if err := media.ValidateAudio(path); err != nil {
		return bytes, err
	}

	p.tagDownloadedTrack(path, item.ContentID)
	return bytes, nil
}

// tagDownloadedTrack 尽力把元数据写进 ID3 标签，失败只记日志
func (p *Processor) tagDownloadedTrack(path, trackID string) {
	track, err := p.provider.GetTrack(trackID)
	if err != nil {
		logger.Debug().Err(err).Str("track", trackID).Msg("获取曲目元数据失败，跳过打标签")
		return
	}

	tags := media.TrackTags{
		Title:       track.Title,
		TrackNumber: track.TrackNumber,
		DiscNumber:  track.DiscNumber,
	}
	if artist, err := p.catalog.GetArtistByExternalID(track.ArtistID); err == nil {
		tags.Artist = artist.Name
	}

	if err := media.TagTrack(path, tags); err != nil {
		logger.Warn().Err(err).Str("track", trackID).Msg("写入标签失败")
	}
}

// processImage 下载封面或艺术家肖像
func (p *Processor) processImage(item *models.QueueItem) (int64, error) {
	data, err := p.provider.DownloadImage(item.ContentID)
	if err != nil {
		return 0, err
	}
	bytes := int64(len(data))

	jpegData, err := media.EnsureJPEG(data)
	if err != nil {
		return bytes, provider.NewError(provider.ErrParse, "图片转码失败: %v", err)
	}

	path := media.ImagePath(p.cfg.Media.Root, item.ContentID)
	if err := writeFile(path, jpegData); err != nil {
		return bytes, err
	}
	return bytes, nil
}

// writeFile 写入文件，失败归为存储类错误
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return provider.NewError(provider.ErrStorage, "创建目录失败: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return provider.NewError(provider.ErrStorage, "写入文件失败: %v", err)
	}
	return nil
}

// finish 把条目的处理结果折回各个组件
func (p *Processor) finish(item *models.QueueItem, bytes int64, start time.Time, err error) {
	// 实际传输过的字节无论成败都计入带宽
	if bytes > 0 {
		p.throttle.RecordDownload(bytes)
	}

	if err == nil {
		p.succeed(item, bytes, start)
		return
	}
	p.fail(item, bytes, err)
}

// succeed 成功路径
func (p *Processor) succeed(item *models.QueueItem, bytes int64, start time.Time) {
	// 专辑父条目的成功在 processAlbum 里已处理
	if item.ContentType == models.ContentAlbum {
		return
	}

	durMS := time.Since(start).Milliseconds()
	if err := p.queueRepo.MarkCompleted(item.ID, bytes, durMS); err != nil {
		logger.Error().Err(err).Str("item", item.ID).Msg("标记完成失败")
		return
	}
	p.audit.Record(models.AuditCompleted, item, CompletedDetail{Bytes: bytes, DurationMS: durMS})

	delta := repository.ActivityDelta{Bytes: bytes}
	if item.ContentType == models.ContentTrackAudio {
		delta.Tracks = 1
		// 音频校验通过，向检测器报一次成功
		p.watchdog.RecordResult(true)
	} else {
		delta.Images = 1
	}
	if err := p.activityRepo.Record(delta); err != nil {
		logger.Warn().Err(err).Msg("记录活动统计失败")
	}

	logger.Info().
		Str("item", item.ID).
		Str("type", string(item.ContentType)).
		Str("size", utils.FormatBytes(bytes)).
		Msg("下载完成")

	p.afterChildTerminal(item)
}

// fail 失败路径：损坏折给检测器，重试策略决定去向
func (p *Processor) fail(item *models.QueueItem, bytes int64, err error) {
	errType := string(provider.TypeOf(err))
	if media.IsCorrupt(err) {
		errType = "corrupt"
		p.reportCorruption()
	}

	if p.retry.ShouldRetry(err, item.RetryCount) {
		nextAt := p.retry.NextRetryAt(item.RetryCount)
		if dbErr := p.queueRepo.MarkRetryWaiting(item.ID, nextAt, errType, err.Error()); dbErr != nil {
			logger.Error().Err(dbErr).Str("item", item.ID).Msg("标记等待重试失败")
			return
		}
		p.audit.Record(models.AuditRetryScheduled, item, RetryScheduledDetail{
			ErrorType:   errType,
			RetryCount:  item.RetryCount + 1,
			NextRetryAt: nextAt.Format(time.RFC3339),
		})
		logger.Warn().
			Err(err).
			Str("item", item.ID).
			Int("retry", item.RetryCount+1).
			Time("next_retry_at", nextAt).
			Msg("下载失败，等待重试")
		return
	}

	if dbErr := p.queueRepo.MarkFailed(item.ID, errType, err.Error()); dbErr != nil {
		logger.Error().Err(dbErr).Str("item", item.ID).Msg("标记失败失败")
		return
	}
	p.audit.Record(models.AuditFailed, item, FailedDetail{
		ErrorType:    errType,
		ErrorMessage: err.Error(),
		RetryCount:   item.RetryCount,
	})
	if actErr := p.activityRepo.Record(repository.ActivityDelta{Failures: 1, Bytes: bytes}); actErr != nil {
		logger.Warn().Err(actErr).Msg("记录活动统计失败")
	}
	logger.Error().
		Err(err).
		Str("item", item.ID).
		Str("type", string(item.ContentType)).
		Msg("下载终态失败")

	p.afterChildTerminal(item)
	if item.IsTopLevel() {
		p.settleTopLevel(item)
	}
}

// reportCorruption 向检测器报告损坏，需要时触发上游重启
func (p *Processor) reportCorruption() {
	if !p.watchdog.RecordResult(false) {
		return
	}

	// 已有一次重启在途时安静跳过
	if !p.restartMu.TryLock() {
		return
	}
	defer p.restartMu.Unlock()

	restartErr := p.provider.Restart()
	p.watchdog.RecordRestart()

	state := p.watchdog.State()
	detail := WatchdogRestartDetail{Level: state.Level, Cooldown: state.CooldownRemaining}
	if restartErr != nil {
		detail.RestartErr = restartErr.Error()
		logger.Error().Err(restartErr).Msg("上游重启请求失败")
	}
	p.audit.RecordSystem(models.AuditWatchdogRestart, detail)

	if p.notifier != nil {
		p.notifier.SendToOwner(fmt.Sprintf(
			"⚠️ 检测到连续损坏下载，已请求上游重启\n等级: %d\n冷却: %s",
			state.Level, state.CooldownRemaining,
		))
	}
}

// afterChildTerminal 子条目到终态后检查父条目能否收口
func (p *Processor) afterChildTerminal(item *models.QueueItem) {
	if item.ParentID == nil {
		return
	}

	status, done, err := p.queueRepo.CheckParentCompletion(*item.ParentID)
	if err != nil {
		logger.Error().Err(err).Str("parent", *item.ParentID).Msg("检查父条目完成状态失败")
		return
	}
	if !done {
		return
	}

	parent, err := p.queueRepo.GetItem(*item.ParentID)
	if err != nil {
		logger.Error().Err(err).Str("parent", *item.ParentID).Msg("读取父条目失败")
		return
	}

	if status == models.StatusCompleted {
		p.audit.Record(models.AuditCompleted, parent, CompletedDetail{})
		logger.Info().Str("item", parent.ID).Str("album", parent.ContentID).Msg("专辑全部下载完成")
	} else {
		p.audit.Record(models.AuditFailed, parent, FailedDetail{
			ErrorType:    "partial",
			ErrorMessage: "部分子条目下载失败",
		})
		logger.Warn().Str("item", parent.ID).Str("album", parent.ContentID).Msg("专辑部分下载失败")
	}

	p.settleTopLevel(parent)
}

// settleTopLevel 顶层用户请求到终态后回落排队计数
func (p *Processor) settleTopLevel(item *models.QueueItem) {
	if item.Source != models.SourceUser || item.UserID == nil {
		return
	}
	if err := p.statsRepo.DecrementInQueue(*item.UserID); err != nil {
		logger.Warn().Err(err).Int64("user", *item.UserID).Msg("回落用户排队计数失败")
	}
}
