package event

import (
	"context"
	"log/slog"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
	"github.com/steelvision/ingot/internal/conf"
	"gorm.io/gorm"
)

// Storer data persistence
type Storer interface {
	Barcode() BarcodeStorer
	Ingot() IngotStorer
}

// BarcodeStorer Instantiation interface
type BarcodeStorer interface {
	Add(context.Context, *BarcodeEvent) error
	Get(context.Context, *BarcodeEvent, ...orm.QueryOption) error
	Find(context.Context, *[]*BarcodeEvent, orm.Pager, ...orm.QueryOption) (int64, error)
	FindUnsynced(context.Context, int) ([]*BarcodeEvent, error)
	MarkSynced(context.Context, []int64) error
	Session(context.Context, ...func(*gorm.DB) error) error
}

type IngotStorer interface {
	Add(context.Context, *IngotEvent) error
	Get(context.Context, *IngotEvent, ...orm.QueryOption) error
	Find(context.Context, *[]*IngotEvent, orm.Pager, ...orm.QueryOption) (int64, error)
	FindUnsynced(context.Context, int) ([]*IngotEvent, error)
	MarkSynced(context.Context, []int64) error
	Session(context.Context, ...func(*gorm.DB) error) error
}

// RemoteStorer 远端主数据库，按业务自然键幂等写入
// 每条记录的存在性检查与插入是一次原子操作，重复调用不产生重复行
type RemoteStorer interface {
	SaveBarcode(context.Context, *BarcodeEvent) error
	SaveIngot(context.Context, *IngotEvent) error
}

// Core business domain
type Core struct {
	store  Storer
	remote RemoteStorer
	conf   *conf.Sync
}

type Option func(*Core)

// WithRemote 注入远端主数据库，供同步引擎使用
func WithRemote(remote RemoteStorer) Option {
	return func(c *Core) {
		c.remote = remote
	}
}

// WithConfig 注入同步配置
func WithConfig(conf *conf.Sync) Option {
	return func(c *Core) {
		c.conf = conf
	}
}

// NewCore create business domain
func NewCore(store Storer, opts ...Option) Core {
	c := Core{store: store}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// AddBarcode 同步落盘一条条码事件
// 返回时记录已持久化并分配了单调递增 id，synced=false
func (c Core) AddBarcode(ctx context.Context, in *AddBarcodeInput) (*BarcodeEvent, error) {
	var out BarcodeEvent
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	if err := c.store.Barcode().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}

// AddIngot 同步落盘一条钢锭计数事件
func (c Core) AddIngot(ctx context.Context, in *AddIngotInput) (*IngotEvent, error) {
	var out IngotEvent
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	if err := c.store.Ingot().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}

// GetBarcode 按 id 取一条条码事件
func (c Core) GetBarcode(ctx context.Context, id int64) (*BarcodeEvent, error) {
	var out BarcodeEvent
	if err := c.store.Barcode().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound
		}
		return nil, reason.ErrDB.Withf(`Get id[%d] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// GetIngot 按 id 取一条钢锭计数事件
func (c Core) GetIngot(ctx context.Context, id int64) (*IngotEvent, error) {
	var out IngotEvent
	if err := c.store.Ingot().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound
		}
		return nil, reason.ErrDB.Withf(`Get id[%d] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// FindBarcodes 分页查询条码事件，支持按源筛选
func (c Core) FindBarcodes(ctx context.Context, in *FindEventInput) ([]*BarcodeEvent, int64, error) {
	query := orm.NewQuery(2).OrderBy("id DESC")
	if in.SourceID != "" {
		query.Where("source_id = ?", in.SourceID)
	}
	items := make([]*BarcodeEvent, 0, in.Limit())
	total, err := c.store.Barcode().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// FindIngots 分页查询钢锭计数事件
func (c Core) FindIngots(ctx context.Context, in *FindEventInput) ([]*IngotEvent, int64, error) {
	query := orm.NewQuery(2).OrderBy("id DESC")
	if in.SourceID != "" {
		query.Where("source_id = ?", in.SourceID)
	}
	items := make([]*IngotEvent, 0, in.Limit())
	total, err := c.store.Ingot().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}
