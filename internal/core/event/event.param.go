package event

import (
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
)

type AddBarcodeInput struct {
	SourceID   string   `json:"source_id"`
	Barcode    string   `json:"barcode"`
	CapturedAt orm.Time `json:"captured_at"`
	FrameData  []byte   `json:"-"`
	Memo       string   `json:"memo"`
}

type AddIngotInput struct {
	SourceID   string   `json:"source_id"`
	Height     float64  `json:"height"`
	Width      float64  `json:"width"`
	CapturedAt orm.Time `json:"captured_at"`
	FrameData  []byte   `json:"-"`
	Memo       string   `json:"memo"`
}

type FindEventInput struct {
	web.PagerFilter
	SourceID string `form:"source_id"` // 源 ID，空值查询全部
}
