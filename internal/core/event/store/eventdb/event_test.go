package eventdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/core/event"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	return db, mock, err
}

func TestBarcodeGet(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	barcodeDB := NewBarcode(db)

	mock.ExpectQuery(`SELECT \* FROM "barcode_events" WHERE id=\$1 (.+) LIMIT \$2`).
		WithArgs(int64(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode"}).AddRow(int64(1), "10000001"))
	var out event.BarcodeEvent
	if err := barcodeDB.Get(context.Background(), &out, orm.Where("id=?", int64(1))); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

// openTempDB 打开临时文件上的 sqlite 库并迁移表结构
func openTempDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db
}

func addBarcodes(t *testing.T, store DB, codes ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		m := event.BarcodeEvent{
			SourceID:   "camera1",
			Barcode:    code,
			CapturedAt: orm.Now(),
		}
		if err := store.Barcode().Add(context.Background(), &m); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, m.ID)
	}
	return ids
}

// 进程重启后未同步记录仍在，本地库是持久化的事实来源
func TestBarcodeSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")

	store := NewDB(openTempDB(t, path)).AutoMigrate(true)
	addBarcodes(t, store, "10000001", "10000002")
	sqlDB, _ := store.db.DB()
	if err := sqlDB.Close(); err != nil {
		t.Fatal(err)
	}

	store = NewDB(openTempDB(t, path)).AutoMigrate(true)
	records, err := store.Barcode().FindUnsynced(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expect 2 records after reopen, got %d", len(records))
	}
	t.Log("重启后记录仍然存在")
}

// FindUnsynced 按 id 升序返回，id 充当隐式同步游标
func TestFindUnsyncedOrderAndLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	store := NewDB(openTempDB(t, path)).AutoMigrate(true)
	ids := addBarcodes(t, store, "10000001", "10000002", "10000003", "10000004")

	ctx := context.Background()
	records, err := store.Barcode().FindUnsynced(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expect 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ID <= records[i-1].ID {
			t.Fatalf("records not in ascending id order: %d then %d", records[i-1].ID, records[i].ID)
		}
	}
	if records[0].ID != ids[0] {
		t.Fatalf("expect first unsynced id %d, got %d", ids[0], records[0].ID)
	}
}

// MarkSynced 只翻转给定 id，其余记录保持未同步
func TestMarkSyncedExact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	store := NewDB(openTempDB(t, path)).AutoMigrate(true)
	ids := addBarcodes(t, store, "10000001", "10000002", "10000003")

	ctx := context.Background()
	if err := store.Barcode().MarkSynced(ctx, ids[:2]); err != nil {
		t.Fatal(err)
	}

	records, err := store.Barcode().FindUnsynced(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != ids[2] {
		t.Fatalf("expect only id %d unsynced, got %+v", ids[2], records)
	}

	// 空 id 列表不触发任何更新
	if err := store.Barcode().MarkSynced(ctx, nil); err != nil {
		t.Fatal(err)
	}
}

func TestIngotAddAndFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")
	store := NewDB(openTempDB(t, path)).AutoMigrate(true)

	ctx := context.Background()
	m := event.IngotEvent{
		SourceID:   "camera2",
		Height:     1.25,
		Width:      0.8,
		CapturedAt: orm.Time{Time: time.Now()},
	}
	if err := store.Ingot().Add(ctx, &m); err != nil {
		t.Fatal(err)
	}
	if m.ID == 0 {
		t.Fatal("expect assigned id")
	}

	var items []*event.IngotEvent
	total, err := store.Ingot().Find(ctx, &items, nil)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expect 1 ingot, got total=%d len=%d", total, len(items))
	}
	if items[0].Synced {
		t.Fatal("new record must start unsynced")
	}
}
