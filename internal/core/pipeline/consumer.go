package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/steelvision/ingot/internal/core/event"
	"github.com/steelvision/ingot/internal/core/vision"
	"github.com/steelvision/ingot/pkg/framebroker"
)

// consumeState 消费任务的识别去重状态，随任务生灭
type consumeState struct {
	lastBarcode   string
	lastBarcodeAt time.Time
}

// runConsumer 取帧-识别-落盘循环
// 帧损坏只丢弃当前帧，基础设施故障退避后继续，不会让任务退出
func (c *Core) runConsumer(ctx context.Context, r *runner) {
	defer close(r.consumerDone)

	log := slog.With("source", r.source.ID, "task", r.taskID)
	queueName := framebroker.QueueName(r.source.ID)
	reader := vision.NewBarcodeReader(c.ocr)
	counter := vision.NewLineCounter(c.tracker, r.source.CountingLineX, c.conf.Pipeline.MatchThreshold)
	roi := vision.Rect{
		XMin: r.source.BBox.XMin,
		YMin: r.source.BBox.YMin,
		XMax: r.source.BBox.XMax,
		YMax: r.source.BBox.YMax,
	}
	target := time.Second / time.Duration(r.source.FPS)
	poll := c.conf.Pipeline.PollInterval.Duration()
	log.Info("consumer started", "queue", queueName)

	var st consumeState
	for ctx.Err() == nil {
		start := time.Now()
		body, ok, err := c.queue.TakeOne(ctx, queueName)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("take frame", "err", err)
			if !sleepCtx(ctx, c.conf.Pipeline.RetryBackoff.Duration()) {
				return
			}
			continue
		}
		if !ok {
			select {
			case <-r.sourceDone:
				// 文件源已读完且队列排空，消费端随之结束
				log.Info("queue drained after source completion, consumer exiting")
				return
			default:
			}
			if !sleepCtx(ctx, poll) {
				return
			}
			continue
		}

		c.processFrame(ctx, r, &st, reader, counter, roi, body, log)

		// 消费节奏与源帧率对齐，避免空转打满分析服务
		if d := target - time.Since(start); d > 0 {
			if !sleepCtx(ctx, d) {
				return
			}
		}
	}
}

// processFrame 对一帧做条码识别与过线计数，各自独立失败互不影响
func (c *Core) processFrame(ctx context.Context, r *runner, st *consumeState, reader vision.BarcodeReader, counter *vision.LineCounter, roi vision.Rect, body []byte, log *slog.Logger) {
	env, err := DecodeEnvelope(body)
	if err != nil {
		log.Warn("corrupted envelope, frame dropped", "err", err)
		return
	}
	frame, err := jpeg.Decode(bytes.NewReader(env.Payload))
	if err != nil {
		log.Warn("corrupted frame, dropped", "err", err)
		return
	}

	code, roiJPEG, err := reader.Read(ctx, frame, roi)
	if err != nil {
		log.Error("barcode read", "err", err)
	} else if code != "" && st.shouldPersist(code, c.conf.Pipeline.DedupWindow.Duration()) {
		_, err := c.events.AddBarcode(ctx, &event.AddBarcodeInput{
			SourceID:   r.source.ID,
			Barcode:    code,
			CapturedAt: orm.Time{Time: env.CapturedAt},
			FrameData:  env.Payload,
		})
		if err != nil {
			log.Error("persist barcode", "barcode", code, "err", err)
		} else {
			st.lastBarcode = code
			st.lastBarcodeAt = time.Now()
			log.Info("barcode detected", "barcode", code)
			c.saveImage(r.source.ID, fmt.Sprintf("barcode_%s_%d.jpg", code, env.CapturedAt.UnixMilli()), roiJPEG, log)
		}
	}

	res, err := counter.Process(ctx, env.Payload)
	if err != nil {
		log.Error("ingot tracking", "err", err)
		return
	}
	for i := 0; i < res.NewlyCounted; i++ {
		_, err := c.events.AddIngot(ctx, &event.AddIngotInput{
			SourceID:   r.source.ID,
			Height:     res.Heights[i],
			Width:      res.Widths[i],
			CapturedAt: orm.Time{Time: env.CapturedAt},
			FrameData:  env.Payload,
		})
		if err != nil {
			log.Error("persist ingot", "err", err)
		}
	}
	if res.NewlyCounted > 0 {
		log.Info("ingot crossed counting line", "count", res.NewlyCounted)
		c.saveImage(r.source.ID, fmt.Sprintf("ingot_%d.jpg", env.CapturedAt.UnixMilli()), env.Payload, log)
	}
}

// shouldPersist 去重判定
// 与上一条持久化的条码不同则记录；相同时仅在窗口期满后重新记录，
// 窗口为 0 表示任务生命周期内不再重复记录
func (st *consumeState) shouldPersist(code string, window time.Duration) bool {
	if code != st.lastBarcode {
		return true
	}
	return window > 0 && time.Since(st.lastBarcodeAt) >= window
}

// saveImage 事件图片落盘，失败只记日志不影响主流程
func (c *Core) saveImage(sourceID, name string, data []byte, log *slog.Logger) {
	if len(data) == 0 {
		return
	}
	dir := filepath.Join(c.conf.Pipeline.OutputDir, sourceID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("create output dir", "err", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		log.Error("save image", "name", name, "err", err)
	}
}
