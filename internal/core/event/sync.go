package event

import (
	"context"
	"log/slog"
	"time"
)

// StartSyncWorker 启动后台同步协程，整个进程只运行一个实例
// 每个周期把本地未同步记录按 id 升序分批镜像到远端主数据库，
// 远端不可达时仅记录日志，未同步记录继续在本地累积
func (c Core) StartSyncWorker(ctx context.Context) {
	if c.remote == nil {
		slog.Warn("remote store not configured, sync disabled")
		return
	}

	interval := c.conf.Interval.Duration()
	slog.Info("sync worker started", "interval", interval, "batch_size", c.conf.BatchSize)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sync worker stopped")
			return
		case <-ticker.C:
			c.Synchronize(ctx)
		}
	}
}

// Synchronize 执行一轮同步，先条码表后钢锭表
// 任意一批失败即放弃该表余下的批次，等待下个周期重试
func (c Core) Synchronize(ctx context.Context) {
	if err := c.syncBarcodes(ctx); err != nil {
		slog.Error("barcode sync aborted", "err", err)
	}
	if err := c.syncIngots(ctx); err != nil {
		slog.Error("ingot sync aborted", "err", err)
	}
}

// syncBarcodes 分批镜像条码事件，批内任一记录失败则整批不标记
func (c Core) syncBarcodes(ctx context.Context) error {
	for {
		records, err := c.store.Barcode().FindUnsynced(ctx, c.conf.BatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(records))
		for _, rec := range records {
			// 远端按自然键幂等写入，broker 的至少一次投递可能造成重复记录，
			// 由存在性检查兜底
			if err := c.remote.SaveBarcode(ctx, rec); err != nil {
				return err
			}
			ids = append(ids, rec.ID)
		}
		if err := c.store.Barcode().MarkSynced(ctx, ids); err != nil {
			return err
		}
		slog.Info("synced barcode events", "count", len(ids))

		if len(records) < c.conf.BatchSize {
			return nil
		}
	}
}

// syncIngots 分批镜像钢锭计数事件
func (c Core) syncIngots(ctx context.Context) error {
	for {
		records, err := c.store.Ingot().FindUnsynced(ctx, c.conf.BatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(records))
		for _, rec := range records {
			if err := c.remote.SaveIngot(ctx, rec); err != nil {
				return err
			}
			ids = append(ids, rec.ID)
		}
		if err := c.store.Ingot().MarkSynced(ctx, ids); err != nil {
			return err
		}
		slog.Info("synced ingot events", "count", len(ids))

		if len(records) < c.conf.BatchSize {
			return nil
		}
	}
}
