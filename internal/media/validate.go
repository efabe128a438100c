// Package media 媒体文件处理
package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrCorrupt 音频内容未通过格式校验
//
// 损坏检测器只关心这一类失败，其他错误不算损坏。
var ErrCorrupt = errors.New("音频文件损坏")

// ValidateAudio 校验下载完成的音频文件能否按格式解码
func ValidateAudio(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开文件失败: %w", err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		return validateMP3(f)
	case ".wav":
		return validateWAV(f)
	case ".flac":
		return validateMagic(f, []byte("fLaC"), 0)
	case ".m4a":
		return validateMagic(f, []byte("ftyp"), 4)
	default:
		return validateNonEmpty(f)
	}
}

// validateMP3 尝试解码 MP3 帧
func validateMP3(f *os.File) error {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	// 解出一小段 PCM，能解就认为格式有效
	buf := make([]byte, 8192)
	if _, err := decoder.Read(buf); err != nil && err != io.EOF {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// validateWAV 校验 WAV 头
func validateWAV(f *os.File) error {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return fmt.Errorf("%w: 无效的 WAV 头", ErrCorrupt)
	}
	return nil
}

// validateMagic 校验指定偏移处的魔数
func validateMagic(f *os.File, magic []byte, offset int64) error {
	buf := make([]byte, len(magic))
	if _, err := f.ReadAt(buf, offset); err != nil {
		return fmt.Errorf("%w: 文件过短", ErrCorrupt)
	}
	if !bytes.Equal(buf, magic) {
		return fmt.Errorf("%w: 魔数不匹配", ErrCorrupt)
	}
	return nil
}

// validateNonEmpty 未知格式只检查非空
func validateNonEmpty(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("读取文件信息失败: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: 文件为空", ErrCorrupt)
	}
	return nil
}

// IsCorrupt 是否属于损坏类失败
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
