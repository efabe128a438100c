// Package config 配置管理模块
package config

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
)

// Config 全局配置结构
type Config struct {
	Debug bool `json:"debug"`

	Database DatabaseConfig `json:"database"`
	Provider ProviderConfig `json:"provider"`
	Queue    QueueConfig    `json:"queue"`
	Throttle ThrottleConfig `json:"throttle"`
	Watchdog WatchdogConfig `json:"watchdog"`
	Media    MediaConfig    `json:"media"`
	API      APIConfig      `json:"api"`
	Telegram TelegramConfig `json:"telegram"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// ProviderConfig 上游内容源配置
type ProviderConfig struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// QueueConfig 下载队列配置
type QueueConfig struct {
	TickSeconds           int     `json:"tick_seconds"`            // 处理循环间隔
	MaxRetries            int     `json:"max_retries"`             // 最大重试次数
	InitialBackoffSeconds int     `json:"initial_backoff_seconds"` // 首次重试等待
	BackoffMultiplier     float64 `json:"backoff_multiplier"`      // 退避倍数
	MaxBackoffSeconds     int     `json:"max_backoff_seconds"`     // 退避上限
	StaleMinutes          int     `json:"stale_minutes"`           // 处理中条目多久算滞留
	UserDailyLimit        int     `json:"user_daily_limit"`        // 每用户每日请求上限
	UserQueueLimit        int     `json:"user_queue_limit"`        // 每用户同时排队上限
}

// ThrottleConfig 带宽限速配置
type ThrottleConfig struct {
	MBPerMinute int `json:"mb_per_minute"`
	MBPerHour   int `json:"mb_per_hour"`
}

// WatchdogConfig 损坏检测配置
type WatchdogConfig struct {
	WindowSize            int `json:"window_size"`             // 滑动窗口大小
	FailThreshold         int `json:"fail_threshold"`          // 窗口内失败阈值
	SuccessesToDeescalate int `json:"successes_to_deescalate"` // 降级所需连续成功数
	CooldownBaseSeconds   int `json:"cooldown_base_seconds"`   // 冷却基础时长
	CooldownMaxSeconds    int `json:"cooldown_max_seconds"`    // 冷却上限
}

// MediaConfig 媒体文件存储配置
type MediaConfig struct {
	Root string `json:"root"` // 媒体根目录
}

// APIConfig Web API 配置
type APIConfig struct {
	Enabled      bool     `json:"enabled"`
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	AllowOrigins []string `json:"allow_origins"`
}

// TelegramConfig 告警通知配置
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	Owner   int64  `json:"owner"`
}

var (
	cfg     *Config
	cfgLock sync.RWMutex
)

// Load 加载配置文件
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	// 设置默认值
	config.setDefaults()

	cfgLock.Lock()
	cfg = &config
	cfgLock.Unlock()

	return &config, nil
}

// Get 获取全局配置（线程安全）
func Get() *Config {
	cfgLock.RLock()
	defer cfgLock.RUnlock()
	return cfg
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 60
	}
	if c.Queue.TickSeconds == 0 {
		c.Queue.TickSeconds = 5
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = 8
	}
	if c.Queue.InitialBackoffSeconds == 0 {
		c.Queue.InitialBackoffSeconds = 60
	}
	if c.Queue.BackoffMultiplier == 0 {
		c.Queue.BackoffMultiplier = 2.5
	}
	if c.Queue.MaxBackoffSeconds == 0 {
		c.Queue.MaxBackoffSeconds = 3600
	}
	if c.Queue.StaleMinutes == 0 {
		c.Queue.StaleMinutes = 60
	}
	if c.Queue.UserDailyLimit == 0 {
		c.Queue.UserDailyLimit = 20
	}
	if c.Queue.UserQueueLimit == 0 {
		c.Queue.UserQueueLimit = 5
	}
	if c.Throttle.MBPerMinute == 0 {
		c.Throttle.MBPerMinute = 20
	}
	if c.Throttle.MBPerHour == 0 {
		c.Throttle.MBPerHour = 1500
	}
	if c.Watchdog.WindowSize == 0 {
		c.Watchdog.WindowSize = 4
	}
	if c.Watchdog.FailThreshold == 0 {
		c.Watchdog.FailThreshold = 2
	}
	if c.Watchdog.SuccessesToDeescalate == 0 {
		c.Watchdog.SuccessesToDeescalate = 10
	}
	if c.Watchdog.CooldownBaseSeconds == 0 {
		c.Watchdog.CooldownBaseSeconds = 600
	}
	if c.Watchdog.CooldownMaxSeconds == 0 {
		c.Watchdog.CooldownMaxSeconds = 7200
	}
	if c.Media.Root == "" {
		c.Media.Root = "media"
	}
	if c.API.Port == 0 {
		c.API.Port = 8848
	}
	if len(c.API.AllowOrigins) == 0 {
		c.API.AllowOrigins = []string{"*"}
	}
}

// configPath 存储配置文件路径
var configPath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configPath = path
}

// ErrNoConfigPath 未记录配置文件路径，无法重载
var ErrNoConfigPath = errors.New("未记录配置文件路径")

// Reload 重新加载配置文件
func Reload() (*Config, error) {
	if configPath == "" {
		return nil, ErrNoConfigPath
	}
	return Load(configPath)
}
