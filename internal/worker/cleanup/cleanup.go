// Package cleanup は失効済みセッションの定期削除ジョブを提供する。
// 一度も参照されずに失効したセッションはLookupで削除されないため、
// このジョブが一定間隔でまとめて削除する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval は既定の実行間隔。
const DefaultInterval = 10 * time.Minute

// SessionSweeper は失効済みセッションを削除するインターフェース。
// *session.Store が満たす。
type SessionSweeper interface {
	SweepExpired(ctx context.Context) int
}

// CleanupJob は失効済みセッションの削除ジョブ。
// 冪等であり、削除対象がない場合も正常に終了する。
type CleanupJob struct {
	sessions SessionSweeper
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 10分）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionSweeper, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions: sessions,
		logger:   logger,
		Interval: DefaultInterval,
	}
}

// Run は失効済みセッションを1回削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) int {
	start := time.Now()

	deleted := j.sessions.SweepExpired(ctx)

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return deleted
}

// Start はctxがキャンセルされるまでInterval間隔でRunを実行する。
// 呼び出し元のgoroutineをブロックする。
func (j *CleanupJob) Start(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
