// Package service 入队服务测试
package service

import (
	"testing"

	"github.com/smysle/sakura-musicdl-go/internal/database/models"
)

func TestPriorityFor(t *testing.T) {
	tests := []struct {
		name     string
		source   models.RequestSource
		expected models.Priority
	}{
		{"完整性修复最优先", models.SourceWatchdog, models.PriorityWatchdog},
		{"用户请求其次", models.SourceUser, models.PriorityUser},
		{"曲库扩充最后", models.SourceExpansion, models.PriorityExpansion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := priorityFor(tt.source); got != tt.expected {
				t.Errorf("priorityFor(%v) = %v, want %v", tt.source, got, tt.expected)
			}
		})
	}
}
