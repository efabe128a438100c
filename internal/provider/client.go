// Package provider 上游内容源客户端
package provider

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/smysle/sakura-musicdl-go/pkg/logger"
)

// Album 专辑元数据
type Album struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ArtistID     string `json:"artist_id"`
	Year         int    `json:"year"`
	CoverImageID string `json:"cover_image_id"` // 十六进制文件 ID，可能为空
}

// Track 曲目元数据
type Track struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	AlbumID     string `json:"album_id"`
	ArtistID    string `json:"artist_id"`
	TrackNumber int    `json:"track_number"`
	DiscNumber  int    `json:"disc_number"`
	Duration    int    `json:"duration_seconds"`
}

// Artist 艺术家元数据
type Artist struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PortraitImageID string `json:"portrait_image_id"` // 十六进制文件 ID，可能为空
}

// Client 上游内容源 API 客户端
//
// 上游最多允许一个并发音频下载，冲突时返回 429。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *resty.Client
}

// NewClient 创建客户端
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	client := resty.New()
	client.SetTimeout(timeout)

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: client,
	}
}

// get 发送 GET 请求并处理状态码
func (c *Client) get(endpoint string) (*resty.Response, error) {
	resp, err := c.httpClient.R().
		SetHeader("X-Api-Key", c.apiKey).
		Get(c.baseURL + endpoint)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.IsError() {
		return nil, FromStatus(resp.StatusCode(), string(resp.Body()))
	}
	return resp, nil
}

// getJSON 发送 GET 请求并解析 JSON
func (c *Client) getJSON(endpoint string, out interface{}) error {
	resp, err := c.get(endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return NewError(ErrParse, "解析响应失败: %v", err)
	}
	return nil
}

// classifyTransport 把传输层错误归类
func classifyTransport(err error) *Error {
	if os.IsTimeout(err) {
		return NewError(ErrTimeout, "请求超时: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(ErrTimeout, "请求超时: %v", err)
	}
	return NewError(ErrConnection, "连接失败: %v", err)
}

// GetAlbum 获取专辑元数据
func (c *Client) GetAlbum(id string) (*Album, error) {
	var album Album
	if err := c.getJSON(fmt.Sprintf("/api/album/%s", id), &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// GetAlbumTracks 获取专辑曲目列表
func (c *Client) GetAlbumTracks(id string) ([]Track, error) {
	var tracks []Track
	if err := c.getJSON(fmt.Sprintf("/api/album/%s/tracks", id), &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// GetArtist 获取艺术家元数据
func (c *Client) GetArtist(id string) (*Artist, error) {
	var artist Artist
	if err := c.getJSON(fmt.Sprintf("/api/artist/%s", id), &artist); err != nil {
		return nil, err
	}
	return &artist, nil
}

// GetTrack 获取曲目元数据
func (c *Client) GetTrack(id string) (*Track, error) {
	var track Track
	if err := c.getJSON(fmt.Sprintf("/api/track/%s", id), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// DownloadTrackAudio 下载曲目音频
//
// 返回音频内容和上游声明的 Content-Type。
func (c *Client) DownloadTrackAudio(id string) ([]byte, string, error) {
	resp, err := c.get(fmt.Sprintf("/api/track/%s/audio", id))
	if err != nil {
		return nil, "", err
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

// DownloadImage 按十六进制文件 ID 下载图片
func (c *Client) DownloadImage(fileID string) ([]byte, error) {
	resp, err := c.get(fmt.Sprintf("/api/image/%s", fileID))
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// Restart 请求上游服务重启
func (c *Client) Restart() error {
	logger.Warn().Msg("请求上游服务重启")
	resp, err := c.httpClient.R().
		SetHeader("X-Api-Key", c.apiKey).
		Post(c.baseURL + "/api/restart")
	if err != nil {
		return classifyTransport(err)
	}
	if resp.IsError() {
		return FromStatus(resp.StatusCode(), string(resp.Body()))
	}
	return nil
}
