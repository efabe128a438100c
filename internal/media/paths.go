// Package media 媒体文件处理
package media

import (
	"path/filepath"
	"strings"
)

// ExtensionForContentType 根据上游声明的 Content-Type 选择扩展名
func ExtensionForContentType(contentType string) string {
	// 去掉参数部分，如 "audio/mpeg; charset=..."
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	switch strings.TrimSpace(strings.ToLower(contentType)) {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/flac", "audio/x-flac":
		return "flac"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "wav"
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "audio/aac":
		return "m4a"
	case "audio/ogg":
		return "ogg"
	default:
		return "mp3"
	}
}

// AudioPath 曲目音频存储路径
func AudioPath(root, trackID, ext string) string {
	return filepath.Join(root, "audio", trackID+"."+ext)
}

// ImagePath 图片存储路径，图片统一存为 jpg
func ImagePath(root, imageID string) string {
	return filepath.Join(root, "images", imageID+".jpg")
}
