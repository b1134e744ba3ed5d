package event

import (
	"github.com/ixugo/goddd/pkg/orm"
)

// BarcodeEvent 一次条码识别事件
// 先写本地库拿到自增 id，synced 由同步引擎置位，记录本身不再修改
type BarcodeEvent struct {
	ID         int64    `gorm:"primaryKey" json:"id"`
	SourceID   string   `gorm:"column:source_id;index" json:"source_id"`
	Barcode    string   `gorm:"column:barcode" json:"barcode"`
	CapturedAt orm.Time `gorm:"column:captured_at" json:"captured_at"`
	FrameData  []byte   `gorm:"column:frame_data" json:"-"`
	Memo       string   `gorm:"column:memo" json:"memo"`
	Synced     bool     `gorm:"column:synced;default:false;index" json:"synced"`
}

func (*BarcodeEvent) TableName() string {
	return "barcode_events"
}

// IngotEvent 一次钢锭过线计数事件，每个跟踪目标只产生一条
type IngotEvent struct {
	ID         int64    `gorm:"primaryKey" json:"id"`
	SourceID   string   `gorm:"column:source_id;index" json:"source_id"`
	Height     float64  `gorm:"column:height" json:"height"`
	Width      float64  `gorm:"column:width" json:"width"`
	CapturedAt orm.Time `gorm:"column:captured_at" json:"captured_at"`
	FrameData  []byte   `gorm:"column:frame_data" json:"-"`
	Memo       string   `gorm:"column:memo" json:"memo"`
	Synced     bool     `gorm:"column:synced;default:false;index" json:"synced"`
}

func (*IngotEvent) TableName() string {
	return "ingot_events"
}
