package event

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/system"
	"gorm.io/gorm"
)

// StartCleanupWorker 启动定时清理协程
// days 指定已同步记录的保留天数，只清理 synced=true 的行，
// 未同步记录无论多旧都保留，本地持久性优先于磁盘占用
func (c Core) StartCleanupWorker(days int, outputDir string) {
	if days <= 0 {
		slog.Info("event cleanup disabled", "days", days)
		return
	}

	slog.Info("event cleanup worker started", "retain_days", days)

	// 启动时先执行一次清理
	c.cleanupExpiredEvents(days, outputDir)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanupExpiredEvents(days, outputDir)
	}
}

// cleanupExpiredEvents 删除过期的已同步事件行和落盘图片
func (c Core) cleanupExpiredEvents(days int, outputDir string) {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -days)

	slog.Info("starting event cleanup", "cutoff_time", cutoff.Format(time.DateTime), "retain_days", days)

	var barcodeDeleted, ingotDeleted int64
	err := c.store.Barcode().Session(ctx, func(tx *gorm.DB) error {
		res := tx.Where("synced = ?", true).
			Where("captured_at < ?", orm.Time{Time: cutoff}).
			Delete(&BarcodeEvent{})
		barcodeDeleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		slog.Warn("failed to delete expired barcode events", "err", err)
	}

	err = c.store.Ingot().Session(ctx, func(tx *gorm.DB) error {
		res := tx.Where("synced = ?", true).
			Where("captured_at < ?", orm.Time{Time: cutoff}).
			Delete(&IngotEvent{})
		ingotDeleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		slog.Warn("failed to delete expired ingot events", "err", err)
	}

	filesDeleted := cleanupOldFiles(filepath.Join(system.Getwd(), outputDir), cutoff)

	slog.Info("event cleanup completed",
		"barcodes_deleted", barcodeDeleted,
		"ingots_deleted", ingotDeleted,
		"files_deleted", filesDeleted,
	)
}

// cleanupOldFiles 递归删除修改时间早于 cutoff 的落盘图片
func cleanupOldFiles(dir string, cutoff time.Time) int {
	var deleted int
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			deleted += cleanupOldFiles(path, cutoff)
			// 子目录清空后一并删除
			if sub, err := os.ReadDir(path); err == nil && len(sub) == 0 {
				_ = os.Remove(path)
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deleted++
			}
		}
	}
	return deleted
}
