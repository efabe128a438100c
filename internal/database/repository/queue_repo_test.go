// Package repository 父条目终态推导测试
package repository

import (
	"testing"

	"github.com/smysle/sakura-musicdl-go/internal/database/models"
)

func TestDecideParentStatus(t *testing.T) {
	tests := []struct {
		name       string
		progress   models.ChildrenProgress
		wantStatus models.QueueStatus
		wantDone   bool
	}{
		{"全部完成", models.ChildrenProgress{Total: 11, Completed: 11}, models.StatusCompleted, true},
		{"一个失败其余完成", models.ChildrenProgress{Total: 11, Completed: 10, Failed: 1}, models.StatusFailed, true},
		{"全部失败", models.ChildrenProgress{Total: 3, Failed: 3}, models.StatusFailed, true},
		{"还有等待中", models.ChildrenProgress{Total: 11, Completed: 10, Pending: 1}, "", false},
		{"还有处理中", models.ChildrenProgress{Total: 2, Completed: 1, InProgress: 1}, "", false},
		{"还有等待重试", models.ChildrenProgress{Total: 2, Failed: 1, Retrying: 1}, "", false},
		{"没有子条目", models.ChildrenProgress{}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, done := DecideParentStatus(&tt.progress)
			if done != tt.wantDone {
				t.Errorf("done = %v, want %v", done, tt.wantDone)
			}
			if status != tt.wantStatus {
				t.Errorf("status = %v, want %v", status, tt.wantStatus)
			}
		})
	}
}

func TestAdminRetryPlan(t *testing.T) {
	tests := []struct {
		name       string
		item       models.QueueItem
		childCount int64
		want       retryPlan
	}{
		{"失败的音频子条目", models.QueueItem{Status: models.StatusFailed, ContentType: models.ContentTrackAudio}, 0, retryReEnqueue},
		{"失败的封面子条目", models.QueueItem{Status: models.StatusFailed, ContentType: models.ContentAlbumImage}, 0, retryReEnqueue},
		{"未拆分就失败的专辑", models.QueueItem{Status: models.StatusFailed, ContentType: models.ContentAlbum}, 0, retryReEnqueue},
		// 已拆分的专辑父条目直接回 pending 会跳过建子条目、永远滞留，
		// 必须走子条目重置路线
		{"已拆分子条目的专辑", models.QueueItem{Status: models.StatusFailed, ContentType: models.ContentAlbum}, 11, retryChildren},
		{"处理中的条目", models.QueueItem{Status: models.StatusInProgress, ContentType: models.ContentTrackAudio}, 0, retryNone},
		{"已完成的条目", models.QueueItem{Status: models.StatusCompleted, ContentType: models.ContentAlbum}, 11, retryNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adminRetryPlan(&tt.item, tt.childCount); got != tt.want {
				t.Errorf("plan = %v, want %v", got, tt.want)
			}
		})
	}
}

// 管理员重试失败子条目时父条目已是 failed，
// 子条目再次到终态后收口迁移必须对 failed 的父条目仍然生效
func TestParentSettleStatuses_AllowFailed(t *testing.T) {
	want := map[models.QueueStatus]bool{
		models.StatusInProgress: true,
		models.StatusFailed:     true,
	}
	if len(parentSettleStatuses) != len(want) {
		t.Fatalf("可收口状态数 = %d, want %d", len(parentSettleStatuses), len(want))
	}
	for _, s := range parentSettleStatuses {
		if !want[s] {
			t.Errorf("状态 %v 不应允许收口", s)
		}
		delete(want, s)
	}
	for s := range want {
		t.Errorf("缺少可收口状态 %v", s)
	}
}

// 最后一个子条目结束后绝不能再返回「尚未结束」
func TestDecideParentStatus_NeverPendingWhenAllTerminal(t *testing.T) {
	for failed := int64(0); failed <= 5; failed++ {
		progress := models.ChildrenProgress{
			Total:     5,
			Completed: 5 - failed,
			Failed:    failed,
		}
		status, done := DecideParentStatus(&progress)
		if !done {
			t.Fatalf("failed=%d 时应该已能推导终态", failed)
		}
		if failed == 0 && status != models.StatusCompleted {
			t.Errorf("无失败时应为 completed，实际 %v", status)
		}
		if failed > 0 && status != models.StatusFailed {
			t.Errorf("有失败时应为 failed，实际 %v", status)
		}
	}
}
