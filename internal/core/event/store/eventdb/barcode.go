package eventdb

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/core/event"
	"gorm.io/gorm"
)

var _ event.BarcodeStorer = Barcode{}

type Barcode struct {
	db *gorm.DB
}

func NewBarcode(db *gorm.DB) Barcode {
	return Barcode{db: db}
}

func (s Barcode) Add(ctx context.Context, m *event.BarcodeEvent) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s Barcode) Get(ctx context.Context, out *event.BarcodeEvent, opts ...orm.QueryOption) error {
	db := s.db.WithContext(ctx)
	for _, opt := range opts {
		db = opt(db)
	}
	return db.First(out).Error
}

func (s Barcode) Find(ctx context.Context, out *[]*event.BarcodeEvent, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := s.db.WithContext(ctx).Model(&event.BarcodeEvent{})
	for _, opt := range opts {
		db = opt(db)
	}
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return 0, err
	}
	if pager != nil {
		db = db.Offset(pager.Offset()).Limit(pager.Limit())
	}
	return total, db.Find(out).Error
}

// FindUnsynced 按 id 升序取一批未同步记录，隐式的同步游标
func (s Barcode) FindUnsynced(ctx context.Context, limit int) ([]*event.BarcodeEvent, error) {
	items := make([]*event.BarcodeEvent, 0, limit)
	err := s.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// MarkSynced 只翻转给定 id 的标记，同步引擎整批成功后调用一次
func (s Barcode) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&event.BarcodeEvent{}).
		Where("id IN ?", ids).
		Update("synced", true).Error
}

func (s Barcode) Session(ctx context.Context, fns ...func(*gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range fns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
