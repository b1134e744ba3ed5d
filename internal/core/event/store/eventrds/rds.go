// Package eventrds 把检测事件幂等写入远端主数据库
// 连接是懒建立的，任何写入失败后丢弃连接，下次调用重连
package eventrds

import (
	"context"
	"sync"

	"github.com/steelvision/ingot/internal/conf"
	"github.com/steelvision/ingot/internal/core/event"
	"github.com/steelvision/ingot/internal/data"
	"gorm.io/gorm"
)

var _ event.RemoteStorer = (*DB)(nil)

type DB struct {
	cfg conf.Database

	mu sync.Mutex
	db *gorm.DB
}

func NewDB(cfg conf.Database) *DB {
	return &DB{cfg: cfg}
}

// conn 返回已建立的连接，没有则新建
func (d *DB) conn() (*gorm.DB, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db != nil {
		return d.db, nil
	}
	db, err := data.OpenRemote(d.cfg)
	if err != nil {
		return nil, err
	}
	d.db = db
	return db, nil
}

// reset 丢弃当前连接，下次调用时重连
func (d *DB) reset() {
	d.mu.Lock()
	d.db = nil
	d.mu.Unlock()
}

// SaveBarcode 存在性检查加插入在同一事务内完成
// 自然键为 源+条码+采集时间，重复调用不产生重复行
func (d *DB) SaveBarcode(ctx context.Context, e *event.BarcodeEvent) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&event.BarcodeEvent{}).
			Where("source_id = ? AND barcode = ? AND captured_at = ?", e.SourceID, e.Barcode, e.CapturedAt).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		row := event.BarcodeEvent{
			SourceID:   e.SourceID,
			Barcode:    e.Barcode,
			CapturedAt: e.CapturedAt,
			FrameData:  e.FrameData,
			Memo:       e.Memo,
			Synced:     true,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		d.reset()
	}
	return err
}

// SaveIngot 自然键为 源+高+宽+采集时间
func (d *DB) SaveIngot(ctx context.Context, e *event.IngotEvent) error {
	db, err := d.conn()
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&event.IngotEvent{}).
			Where("source_id = ? AND height = ? AND width = ? AND captured_at = ?", e.SourceID, e.Height, e.Width, e.CapturedAt).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		row := event.IngotEvent{
			SourceID:   e.SourceID,
			Height:     e.Height,
			Width:      e.Width,
			CapturedAt: e.CapturedAt,
			FrameData:  e.FrameData,
			Memo:       e.Memo,
			Synced:     true,
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		d.reset()
	}
	return err
}
