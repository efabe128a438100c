// Package media 媒体处理测试
package media

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestExtensionForContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		expected    string
	}{
		{"mpeg", "audio/mpeg", "mp3"},
		{"flac", "audio/flac", "flac"},
		{"x-flac", "audio/x-flac", "flac"},
		{"wav", "audio/wav", "wav"},
		{"m4a", "audio/mp4", "m4a"},
		{"带参数", "audio/mpeg; charset=utf-8", "mp3"},
		{"大写", "AUDIO/FLAC", "flac"},
		{"未知类型回退 mp3", "application/octet-stream", "mp3"},
		{"空串回退 mp3", "", "mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtensionForContentType(tt.contentType); got != tt.expected {
				t.Errorf("ExtensionForContentType(%q) = %q, want %q", tt.contentType, got, tt.expected)
			}
		})
	}
}

func TestAudioPath(t *testing.T) {
	got := AudioPath("/srv/media", "trk123", "flac")
	want := filepath.Join("/srv/media", "audio", "trk123.flac")
	if got != want {
		t.Errorf("AudioPath = %q, want %q", got, want)
	}
}

func TestImagePath(t *testing.T) {
	got := ImagePath("/srv/media", "a1b2c3")
	want := filepath.Join("/srv/media", "images", "a1b2c3.jpg")
	if got != want {
		t.Errorf("ImagePath = %q, want %q", got, want)
	}
}

func TestValidateAudio_CorruptFLAC(t *testing.T) {
	path := writeTempFile(t, "bad.flac", []byte("not a flac file at all"))

	err := ValidateAudio(path)
	if err == nil {
		t.Fatal("坏 FLAC 应该校验失败")
	}
	if !IsCorrupt(err) {
		t.Errorf("应归类为损坏，实际: %v", err)
	}
}

func TestValidateAudio_ValidFLACMagic(t *testing.T) {
	data := append([]byte("fLaC"), make([]byte, 64)...)
	path := writeTempFile(t, "ok.flac", data)

	if err := ValidateAudio(path); err != nil {
		t.Errorf("合法 FLAC 魔数不应报错: %v", err)
	}
}

func TestValidateAudio_CorruptMP3(t *testing.T) {
	path := writeTempFile(t, "bad.mp3", []byte{0x00, 0x01, 0x02, 0x03})

	err := ValidateAudio(path)
	if err == nil {
		t.Fatal("坏 MP3 应该校验失败")
	}
	if !IsCorrupt(err) {
		t.Errorf("应归类为损坏，实际: %v", err)
	}
}

func TestValidateAudio_EmptyUnknown(t *testing.T) {
	path := writeTempFile(t, "empty.ogg", nil)

	err := ValidateAudio(path)
	if !IsCorrupt(err) {
		t.Errorf("空文件应归类为损坏，实际: %v", err)
	}
}

func TestIsCorrupt_OtherError(t *testing.T) {
	if IsCorrupt(os.ErrNotExist) {
		t.Error("非损坏错误不应被当作损坏")
	}
}

func TestEnsureJPEG_PassthroughJPEG(t *testing.T) {
	src := encodeTestImage(t, "jpeg")

	out, err := EnsureJPEG(src)
	if err != nil {
		t.Fatalf("EnsureJPEG 失败: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("已是 jpeg 的数据应原样返回")
	}
}

func TestEnsureJPEG_ConvertPNG(t *testing.T) {
	src := encodeTestImage(t, "png")

	out, err := EnsureJPEG(src)
	if err != nil {
		t.Fatalf("EnsureJPEG 失败: %v", err)
	}
	if !isJPEG(out) {
		t.Error("PNG 应被转成 JPEG")
	}
}

func TestEnsureJPEG_Garbage(t *testing.T) {
	if _, err := EnsureJPEG([]byte("garbage")); err == nil {
		t.Error("无法解码的数据应报错")
	}
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("写临时文件失败: %v", err)
	}
	return path
}

func encodeTestImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "png":
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("编码测试图片失败: %v", err)
	}
	return buf.Bytes()
}
