// Package config 配置模块测试
package config

import (
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()

	if cfg.Database.Port != 3306 {
		t.Errorf("默认数据库端口应该是 3306，实际是 %d", cfg.Database.Port)
	}

	if cfg.Queue.TickSeconds != 5 {
		t.Errorf("默认处理间隔应该是 5 秒，实际是 %d", cfg.Queue.TickSeconds)
	}

	if cfg.Queue.MaxRetries != 8 {
		t.Errorf("默认最大重试次数应该是 8，实际是 %d", cfg.Queue.MaxRetries)
	}

	if cfg.Queue.InitialBackoffSeconds != 60 {
		t.Errorf("默认首次退避应该是 60 秒，实际是 %d", cfg.Queue.InitialBackoffSeconds)
	}

	if cfg.Queue.BackoffMultiplier != 2.5 {
		t.Errorf("默认退避倍数应该是 2.5，实际是 %f", cfg.Queue.BackoffMultiplier)
	}

	if cfg.Throttle.MBPerMinute != 20 {
		t.Errorf("默认每分钟带宽应该是 20 MB，实际是 %d", cfg.Throttle.MBPerMinute)
	}

	if cfg.Throttle.MBPerHour != 1500 {
		t.Errorf("默认每小时带宽应该是 1500 MB，实际是 %d", cfg.Throttle.MBPerHour)
	}

	if cfg.Watchdog.WindowSize != 4 {
		t.Errorf("默认窗口大小应该是 4，实际是 %d", cfg.Watchdog.WindowSize)
	}

	if cfg.Watchdog.FailThreshold != 2 {
		t.Errorf("默认失败阈值应该是 2，实际是 %d", cfg.Watchdog.FailThreshold)
	}

	if cfg.Watchdog.CooldownBaseSeconds != 600 {
		t.Errorf("默认冷却基础时长应该是 600 秒，实际是 %d", cfg.Watchdog.CooldownBaseSeconds)
	}

	if cfg.API.Port != 8848 {
		t.Errorf("默认 API 端口应该是 8848，实际是 %d", cfg.API.Port)
	}

	if cfg.Media.Root != "media" {
		t.Errorf("默认媒体根目录应该是 'media'，实际是 '%s'", cfg.Media.Root)
	}
}

func TestConfig_SetDefaults_KeepExisting(t *testing.T) {
	cfg := &Config{}
	cfg.Queue.MaxRetries = 3
	cfg.Watchdog.WindowSize = 8
	cfg.setDefaults()

	if cfg.Queue.MaxRetries != 3 {
		t.Errorf("已设置的最大重试次数不应被覆盖，实际是 %d", cfg.Queue.MaxRetries)
	}

	if cfg.Watchdog.WindowSize != 8 {
		t.Errorf("已设置的窗口大小不应被覆盖，实际是 %d", cfg.Watchdog.WindowSize)
	}
}
