package data

import (
	"context"
	"log/slog"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/core/event"
	"gorm.io/gorm"
)

// LegacyBarcode 旧采集程序的条码表（用于迁移）
type LegacyBarcode struct {
	ID            int64  `gorm:"primaryKey"`
	CameraID      string `gorm:"column:camera_id"`
	Barcode       string `gorm:"column:barcode"`
	FrameDatetime string `gorm:"column:frame_datetime"`
	FrameData     []byte `gorm:"column:frame_data"`
	Memo          string `gorm:"column:memo"`
	Synced        int    `gorm:"column:synced"`
}

func (*LegacyBarcode) TableName() string {
	return "barcodes"
}

// LegacyIngot 旧采集程序的钢锭表（用于迁移）
type LegacyIngot struct {
	ID            int64   `gorm:"primaryKey"`
	CameraID      string  `gorm:"column:camera_id"`
	Height        float64 `gorm:"column:height"`
	Width         float64 `gorm:"column:width"`
	FrameDatetime string  `gorm:"column:frame_datetime"`
	FrameData     []byte  `gorm:"column:frame_data"`
	Memo          string  `gorm:"column:memo"`
	Synced        int     `gorm:"column:synced"`
}

func (*LegacyIngot) TableName() string {
	return "ingots"
}

// MigrateLegacyData 迁移旧采集程序的 barcodes 和 ingots 数据到事件表
// 迁移完成后，旧表数据保留，建议手动确认后删除
func MigrateLegacyData(db *gorm.DB) error {
	ctx := context.Background()

	hasBarcodes := db.Migrator().HasTable("barcodes")
	hasIngots := db.Migrator().HasTable("ingots")
	if !hasBarcodes && !hasIngots {
		return nil
	}

	if hasBarcodes {
		var rows []LegacyBarcode
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			slog.Error("查询 barcodes 旧表失败", "err", err)
			return err
		}

		migratedCount := 0
		for _, r := range rows {
			capturedAt := parseLegacyTime(r.FrameDatetime)
			// 按业务自然键检查，避免重复执行迁移时产生重复行
			var existing event.BarcodeEvent
			if err := db.WithContext(ctx).
				Where("source_id = ? AND barcode = ? AND captured_at = ?", r.CameraID, r.Barcode, capturedAt).
				First(&existing).Error; err == nil {
				continue
			}

			m := event.BarcodeEvent{
				SourceID:   r.CameraID,
				Barcode:    r.Barcode,
				CapturedAt: capturedAt,
				FrameData:  r.FrameData,
				Memo:       r.Memo,
				Synced:     r.Synced != 0,
			}
			if err := db.WithContext(ctx).Create(&m).Error; err != nil {
				slog.Error("迁移条码记录失败", "err", err, "barcode", r.Barcode)
				continue
			}
			migratedCount++
		}
		slog.Info("条码数据迁移完成", "total", len(rows), "migrated", migratedCount)
	}

	if hasIngots {
		var rows []LegacyIngot
		if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
			slog.Error("查询 ingots 旧表失败", "err", err)
			return err
		}

		migratedCount := 0
		for _, r := range rows {
			capturedAt := parseLegacyTime(r.FrameDatetime)
			var existing event.IngotEvent
			if err := db.WithContext(ctx).
				Where("source_id = ? AND height = ? AND width = ? AND captured_at = ?", r.CameraID, r.Height, r.Width, capturedAt).
				First(&existing).Error; err == nil {
				continue
			}

			m := event.IngotEvent{
				SourceID:   r.CameraID,
				Height:     r.Height,
				Width:      r.Width,
				CapturedAt: capturedAt,
				FrameData:  r.FrameData,
				Memo:       r.Memo,
				Synced:     r.Synced != 0,
			}
			if err := db.WithContext(ctx).Create(&m).Error; err != nil {
				slog.Error("迁移钢锭记录失败", "err", err)
				continue
			}
			migratedCount++
		}
		slog.Info("钢锭数据迁移完成", "total", len(rows), "migrated", migratedCount)
	}

	slog.Info("数据迁移全部完成！旧表数据已保留，请手动确认后删除。")
	return nil
}

// parseLegacyTime 旧表时间是文本列，存在两种历史格式
func parseLegacyTime(s string) orm.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return orm.Time{Time: t}
		}
	}
	return orm.Now()
}
