// Package catalog 媒体库元数据
package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/smysle/sakura-musicdl-go/internal/database"
	"github.com/smysle/sakura-musicdl-go/pkg/utils"
	"gorm.io/gorm"
)

// Store 媒体库元数据存取
//
// 只在专辑入库阶段使用：存在性检查和插入。
type Store struct {
	db *gorm.DB
}

// NewStore 创建 Store 并迁移媒体库表
func NewStore() (*Store, error) {
	db := database.GetDB()
	if err := db.AutoMigrate(&Artist{}, &Album{}, &Track{}); err != nil {
		return nil, fmt.Errorf("媒体库表迁移失败: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB 指定数据库实例创建（测试用）
func NewStoreWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

func artistCacheKey(externalID string) string {
	return "catalog:artist:" + externalID
}

// ArtistExists 按外部 ID 判断艺术家是否已入库
//
// 结果缓存 30 分钟，专辑批量入库时避免重复查库。
func (s *Store) ArtistExists(externalID string) (bool, error) {
	if _, found := utils.CacheGet(artistCacheKey(externalID)); found {
		return true, nil
	}

	var count int64
	err := s.db.Model(&Artist{}).Where("external_id = ?", externalID).Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		utils.CacheSet(artistCacheKey(externalID), true, 30*time.Minute)
	}
	return count > 0, nil
}

// InsertArtist 插入艺术家，已存在时返回现有记录
func (s *Store) InsertArtist(externalID, name string) (*Artist, error) {
	var existing Artist
	err := s.db.Where("external_id = ?", externalID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	artist := Artist{
		ExternalID: externalID,
		Name:       name,
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&artist).Error; err != nil {
		return nil, err
	}
	utils.CacheSet(artistCacheKey(externalID), true, 30*time.Minute)
	return &artist, nil
}

// InsertAlbum 插入专辑，已存在时返回现有记录
func (s *Store) InsertAlbum(externalID string, artistID int64, title string, year int) (*Album, error) {
	var existing Album
	err := s.db.Where("external_id = ?", externalID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	album := Album{
		ExternalID: externalID,
		ArtistID:   artistID,
		Title:      title,
		Year:       year,
		CreatedAt:  time.Now(),
	}
	if err := s.db.Create(&album).Error; err != nil {
		return nil, err
	}
	return &album, nil
}

// InsertTrack 插入曲目，已存在时返回现有记录
func (s *Store) InsertTrack(externalID string, albumID, artistID int64, title string, trackNumber, discNumber, duration int) (*Track, error) {
	var existing Track
	err := s.db.Where("external_id = ?", externalID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	track := Track{
		ExternalID:  externalID,
		AlbumID:     albumID,
		ArtistID:    artistID,
		Title:       title,
		TrackNumber: trackNumber,
		DiscNumber:  discNumber,
		Duration:    duration,
		CreatedAt:   time.Now(),
	}
	if err := s.db.Create(&track).Error; err != nil {
		return nil, err
	}
	return &track, nil
}

// GetArtistByExternalID 按外部 ID 获取艺术家
func (s *Store) GetArtistByExternalID(externalID string) (*Artist, error) {
	var artist Artist
	err := s.db.Where("external_id = ?", externalID).First(&artist).Error
	if err != nil {
		return nil, err
	}
	return &artist, nil
}
