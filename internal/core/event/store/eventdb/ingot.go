package eventdb

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/core/event"
	"gorm.io/gorm"
)

var _ event.IngotStorer = Ingot{}

type Ingot struct {
	db *gorm.DB
}

func NewIngot(db *gorm.DB) Ingot {
	return Ingot{db: db}
}

func (s Ingot) Add(ctx context.Context, m *event.IngotEvent) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s Ingot) Get(ctx context.Context, out *event.IngotEvent, opts ...orm.QueryOption) error {
	db := s.db.WithContext(ctx)
	for _, opt := range opts {
		db = opt(db)
	}
	return db.First(out).Error
}

func (s Ingot) Find(ctx context.Context, out *[]*event.IngotEvent, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	db := s.db.WithContext(ctx).Model(&event.IngotEvent{})
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

func (s Ingot) FindUnsynced(ctx context.Context, limit int) ([]*event.IngotEvent, error) {
	items := make([]*event.IngotEvent, 0, limit)
	err := s.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (s Ingot) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&event.IngotEvent{}).
		Where("id IN ?", ids).
		Update("synced", true).Error
}

func (s Ingot) Session(ctx context.Context, fns ...func(*gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, fn := range fns {
			if err := fn(tx); err != nil {
				return err
			}
		}
		return nil
	})
}
