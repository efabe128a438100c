// Package media 媒体文件处理
package media

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
)

// TrackTags 写入音频文件的标签
type TrackTags struct {
	Title       string
	Artist      string
	Album       string
	Year        int
	TrackNumber int
	DiscNumber  int
}

// TagTrack 把媒体库元数据写入 MP3 的 ID3 标签
//
// 只支持 mp3，其他格式直接跳过。标签写入失败不影响下载结果，
// 调用方按需记日志即可。
func TagTrack(path string, tags TrackTags) error {
	if !strings.HasSuffix(strings.ToLower(path), ".mp3") {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("打开标签失败: %w", err)
	}
	defer tag.Close()

	if tags.Title != "" {
		tag.SetTitle(tags.Title)
	}
	if tags.Artist != "" {
		tag.SetArtist(tags.Artist)
	}
	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	if tags.Year > 0 {
		tag.SetYear(strconv.Itoa(tags.Year))
	}
	if tags.TrackNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"),
			tag.DefaultEncoding(), strconv.Itoa(tags.TrackNumber))
	}
	if tags.DiscNumber > 0 {
		tag.AddTextFrame(tag.CommonID("Part of a set"),
			tag.DefaultEncoding(), strconv.Itoa(tags.DiscNumber))
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("保存标签失败: %w", err)
	}
	return nil
}
