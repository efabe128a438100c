// Package media 媒体文件处理
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// EnsureJPEG 把下载的封面统一转成 JPEG
//
// 上游图片可能是 jpeg/png/webp；已是 jpeg 的原样返回。
func EnsureJPEG(data []byte) ([]byte, error) {
	if isJPEG(data) {
		return data, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("转码 %s 到 jpeg 失败: %w", format, err)
	}
	return buf.Bytes(), nil
}

// isJPEG 检查 JPEG 魔数
func isJPEG(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}
