// Package catalog 媒体库元数据
package catalog

import (
	"time"
)

// Artist 艺术家
type Artist struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID string    `gorm:"column:external_id;size:64;uniqueIndex" json:"external_id"`
	Name       string    `gorm:"column:name;size:255" json:"name"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (Artist) TableName() string {
	return "catalog_artists"
}

// Album 专辑
type Album struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID string    `gorm:"column:external_id;size:64;uniqueIndex" json:"external_id"`
	ArtistID   int64     `gorm:"column:artist_id;index" json:"artist_id"`
	Title      string    `gorm:"column:title;size:255" json:"title"`
	Year       int       `gorm:"column:year" json:"year"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (Album) TableName() string {
	return "catalog_albums"
}

// Track 曲目
type Track struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ExternalID  string    `gorm:"column:external_id;size:64;uniqueIndex" json:"external_id"`
	AlbumID     int64     `gorm:"column:album_id;index" json:"album_id"`
	ArtistID    int64     `gorm:"column:artist_id;index" json:"artist_id"`
	Title       string    `gorm:"column:title;size:255" json:"title"`
	TrackNumber int       `gorm:"column:track_number" json:"track_number"`
	DiscNumber  int       `gorm:"column:disc_number" json:"disc_number"`
	Duration    int       `gorm:"column:duration_seconds" json:"duration_seconds"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 表名
func (Track) TableName() string {
	return "catalog_tracks"
}
