package eventdb

import (
	"github.com/steelvision/ingot/internal/core/event"
	"gorm.io/gorm"
)

type DB struct {
	db *gorm.DB
}

func NewDB(db *gorm.DB) DB {
	return DB{db: db}
}

// AutoMigrate 按需自动建表
func (d DB) AutoMigrate(ok bool) DB {
	if !ok {
		return d
	}
	if err := d.db.AutoMigrate(
		&event.BarcodeEvent{},
		&event.IngotEvent{},
	); err != nil {
		panic(err)
	}
	return d
}

func (d DB) Barcode() event.BarcodeStorer {
	return Barcode{db: d.db}
}

func (d DB) Ingot() event.IngotStorer {
	return Ingot{db: d.db}
}
