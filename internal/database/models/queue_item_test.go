// Package models 队列条目模型测试
package models

import (
	"testing"
	"time"
)

func TestQueueStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   QueueStatus
		expected bool
	}{
		{"pending 不是终态", StatusPending, false},
		{"in_progress 不是终态", StatusInProgress, false},
		{"retry_waiting 不是终态", StatusRetryWaiting, false},
		{"completed 是终态", StatusCompleted, true},
		{"failed 是终态", StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.expected {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestQueueItem_IsStale(t *testing.T) {
	old := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-1 * time.Minute)

	tests := []struct {
		name     string
		item     QueueItem
		expected bool
	}{
		{"处理中且超时", QueueItem{Status: StatusInProgress, StartedAt: &old}, true},
		{"处理中但未超时", QueueItem{Status: StatusInProgress, StartedAt: &recent}, false},
		{"非处理中不算滞留", QueueItem{Status: StatusPending, StartedAt: &old}, false},
		{"缺少开始时间", QueueItem{Status: StatusInProgress}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.IsStale(time.Hour); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestChildrenProgress_AllTerminal(t *testing.T) {
	tests := []struct {
		name     string
		progress ChildrenProgress
		expected bool
	}{
		{"全部完成", ChildrenProgress{Total: 3, Completed: 3}, true},
		{"完成加失败", ChildrenProgress{Total: 3, Completed: 2, Failed: 1}, true},
		{"还有等待中", ChildrenProgress{Total: 3, Completed: 2, Pending: 1}, false},
		{"没有子条目", ChildrenProgress{Total: 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.progress.AllTerminal(); got != tt.expected {
				t.Errorf("AllTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPriority_Order(t *testing.T) {
	// 数值越小越先出队
	if !(PriorityWatchdog < PriorityUser && PriorityUser < PriorityExpansion) {
		t.Error("优先级顺序应为 Watchdog < User < Expansion")
	}
}
