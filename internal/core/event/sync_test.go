package event_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/conf"
	"github.com/steelvision/ingot/internal/core/event"
	"github.com/steelvision/ingot/internal/core/event/store/eventdb"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeRemote 内存版远端主数据库，按自然键幂等
type fakeRemote struct {
	mu       sync.Mutex
	failing  bool
	failAt   int // >0 时第 n 次写入失败，用于模拟批次中途断连
	calls    int
	barcodes map[string]int
	ingots   map[string]int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		barcodes: make(map[string]int),
		ingots:   make(map[string]int),
	}
}

func (f *fakeRemote) SaveBarcode(_ context.Context, m *event.BarcodeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing || (f.failAt > 0 && f.calls == f.failAt) {
		return errors.New("remote unavailable")
	}
	key := fmt.Sprintf("%s/%s/%d", m.SourceID, m.Barcode, m.CapturedAt.Unix())
	f.barcodes[key]++
	return nil
}

func (f *fakeRemote) SaveIngot(_ context.Context, m *event.IngotEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing || (f.failAt > 0 && f.calls == f.failAt) {
		return errors.New("remote unavailable")
	}
	key := fmt.Sprintf("%s/%.2f/%.2f/%d", m.SourceID, m.Height, m.Width, m.CapturedAt.Unix())
	f.ingots[key]++
	return nil
}

func (f *fakeRemote) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func newTestCore(t *testing.T, remote event.RemoteStorer, batchSize int) (event.Core, event.Storer) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "local.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatal(err)
	}
	store := eventdb.NewDB(db).AutoMigrate(true)
	core := event.NewCore(store,
		event.WithRemote(remote),
		event.WithConfig(&conf.Sync{BatchSize: batchSize}),
	)
	return core, store
}

func addBarcodes(t *testing.T, core event.Core, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := core.AddBarcode(context.Background(), &event.AddBarcodeInput{
			SourceID:   "camera1",
			Barcode:    fmt.Sprintf("1000%04d", i),
			CapturedAt: orm.Now(),
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func countUnsynced(t *testing.T, store event.Storer) int {
	t.Helper()
	records, err := store.Barcode().FindUnsynced(context.Background(), 1000)
	if err != nil {
		t.Fatal(err)
	}
	return len(records)
}

func TestSynchronizeMirrorsAndMarks(t *testing.T) {
	remote := newFakeRemote()
	core, store := newTestCore(t, remote, 100)
	addBarcodes(t, core, 5)

	core.Synchronize(context.Background())

	if got := len(remote.barcodes); got != 5 {
		t.Fatalf("expect 5 remote rows, got %d", got)
	}
	if got := countUnsynced(t, store); got != 0 {
		t.Fatalf("expect all marked synced, %d left", got)
	}
}

// 同步是幂等的，重复周期不会在远端产生重复行
func TestSynchronizeIdempotent(t *testing.T) {
	remote := newFakeRemote()
	core, _ := newTestCore(t, remote, 2)
	addBarcodes(t, core, 5)

	ctx := context.Background()
	core.Synchronize(ctx)
	core.Synchronize(ctx)

	for key, n := range remote.barcodes {
		if n != 1 {
			t.Fatalf("remote row %s written %d times", key, n)
		}
	}
	if got := len(remote.barcodes); got != 5 {
		t.Fatalf("expect 5 distinct remote rows, got %d", got)
	}
}

// 远端长时间不可达，本地记录原样累积，恢复后一次性补齐
func TestSynchronizeRecoversAfterOutage(t *testing.T) {
	remote := newFakeRemote()
	remote.setFailing(true)
	core, store := newTestCore(t, remote, 100)
	addBarcodes(t, core, 3)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		core.Synchronize(ctx)
	}
	if got := countUnsynced(t, store); got != 3 {
		t.Fatalf("expect 3 unsynced during outage, got %d", got)
	}
	if got := len(remote.barcodes); got != 0 {
		t.Fatalf("expect no remote rows during outage, got %d", got)
	}

	remote.setFailing(false)
	core.Synchronize(ctx)

	if got := countUnsynced(t, store); got != 0 {
		t.Fatalf("expect all synced after recovery, %d left", got)
	}
	if got := len(remote.barcodes); got != 3 {
		t.Fatalf("expect 3 remote rows after recovery, got %d", got)
	}
}

// 批次中途失败不做部分标记，整批等下个周期重试
func TestSynchronizeNoPartialMark(t *testing.T) {
	remote := newFakeRemote()
	remote.failAt = 2
	core, store := newTestCore(t, remote, 100)
	addBarcodes(t, core, 3)

	core.Synchronize(context.Background())

	if got := countUnsynced(t, store); got != 3 {
		t.Fatalf("expect no records marked after mid-batch failure, %d unsynced", got)
	}

	// 下个周期重试整批，已写过的第一条由远端的幂等写入兜底
	core.Synchronize(context.Background())
	if got := countUnsynced(t, store); got != 0 {
		t.Fatalf("expect all synced after retry, %d left", got)
	}
	if got := len(remote.barcodes); got != 3 {
		t.Fatalf("expect 3 distinct remote rows, got %d", got)
	}
}
