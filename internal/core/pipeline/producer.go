package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/steelvision/ingot/pkg/ffkit"
	"github.com/steelvision/ingot/pkg/framebroker"
)

// runProducer 采集-发布循环
// 源或队列故障时退避后整体重建，文件源读完后通知消费端并退出
func (c *Core) runProducer(ctx context.Context, r *runner) {
	defer close(r.producerDone)

	log := slog.With("source", r.source.ID, "task", r.taskID)
	queueName := framebroker.QueueName(r.source.ID)
	backoff := c.conf.Pipeline.RetryBackoff.Duration()
	log.Info("producer started", "queue", queueName, "fps", r.source.FPS)

	for ctx.Err() == nil {
		source, err := c.open(r.source)
		if err != nil {
			log.Error("open source", "err", err)
			if !sleepCtx(ctx, backoff) {
				return
			}
			continue
		}
		if err := source.Start(); err != nil {
			log.Error("start source", "err", err)
			if !sleepCtx(ctx, backoff) {
				return
			}
			continue
		}

		err = c.produceFrames(ctx, r, source, queueName)
		_ = source.Stop()

		if errors.Is(err, ffkit.ErrStreamEnded) && r.source.IsFile() {
			log.Info("video file exhausted, producer exiting")
			close(r.sourceDone)
			return
		}
		if ctx.Err() != nil {
			log.Info("producer stopped")
			return
		}
		log.Error("feed failure, restarting after backoff", "err", err)
		if !sleepCtx(ctx, backoff) {
			return
		}
	}
}

// produceFrames 单次连接内的逐帧循环，任何读帧或发布失败都返回交给外层重建
func (c *Core) produceFrames(ctx context.Context, r *runner, source FrameSource, queueName string) error {
	interval := time.Second / time.Duration(r.source.FPS)
	readTimeout := max(10*interval, 5*time.Second)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame, err := source.GetFrame(readTimeout)
		if err != nil {
			return err
		}

		start := time.Now()
		env := FrameEnvelope{
			SourceID:   r.source.ID,
			CapturedAt: frame.Timestamp,
			Payload:    frame.Data,
		}
		// 取消只在迭代边界生效，进行中的发布不中断
		if err := c.queue.Publish(context.WithoutCancel(ctx), queueName, env.Encode()); err != nil {
			return err
		}

		// 发布耗时不足目标间隔时补足剩余时间，保持软限速
		if d := interval - time.Since(start); d > 0 {
			if !sleepCtx(ctx, d) {
				return ctx.Err()
			}
		}
	}
}

// sleepCtx 可取消休眠，被取消时返回 false
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
