// Package pipeline 采集与处理管线的业务域
//
// 每路源一条管线，由一个生产任务和一个消费任务组成，
// 两者只通过帧队列耦合，队列掉线或消费卡顿都不影响采集端。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/steelvision/ingot/internal/conf"
	"github.com/steelvision/ingot/internal/core/event"
	"github.com/steelvision/ingot/internal/core/vision"
	"github.com/steelvision/ingot/pkg/ffkit"
	"github.com/steelvision/ingot/pkg/framebroker"
)

// FrameQueue 生产与消费两端共同依赖的帧队列
// 队列容量有上限，写满时丢弃最旧消息，消息驻留超时自动过期
type FrameQueue interface {
	Publish(ctx context.Context, queue string, body []byte) error
	// TakeOne 非阻塞取一条消息，队列为空时第二个返回值为 false
	TakeOne(ctx context.Context, queue string) ([]byte, bool, error)
}

// FrameSource 一路已配置好的帧来源
type FrameSource interface {
	Start() error
	GetFrame(timeout time.Duration) (*ffkit.FrameData, error)
	Stop() error
}

// SourceOpener 按源配置构造帧来源，生产端每次重连都会重新构造
type SourceOpener func(src conf.Source) (FrameSource, error)

// runner 一路源的运行态
type runner struct {
	taskID    string
	source    conf.Source
	startedAt time.Time
	dynamic   bool // 运行期临时加入的视频文件源

	cancel       context.CancelFunc
	producerDone chan struct{}
	consumerDone chan struct{}
	sourceDone   chan struct{} // 文件源读完后由生产端关闭，消费端排空队列后退出
}

// Core business domain
type Core struct {
	conf    *conf.Bootstrap
	queue   FrameQueue
	events  event.Core
	ocr     vision.OCREngine
	tracker vision.Tracker
	open    SourceOpener
	runners *conc.Map[string, *runner]
}

type Option func(*Core)

// WithSourceOpener 替换帧来源构造器，测试注入假源
func WithSourceOpener(open SourceOpener) Option {
	return func(c *Core) {
		c.open = open
	}
}

// NewCore create business domain
func NewCore(cfg *conf.Bootstrap, queue FrameQueue, events event.Core, ocr vision.OCREngine, tracker vision.Tracker, opts ...Option) *Core {
	c := Core{
		conf:    cfg,
		queue:   queue,
		events:  events,
		ocr:     ocr,
		tracker: tracker,
		runners: conc.NewMap[string, *runner](),
	}
	c.open = c.openFFmpeg
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// openFFmpeg 默认帧来源，ffmpeg 子进程输出 MJPEG
func (c *Core) openFFmpeg(src conf.Source) (FrameSource, error) {
	input := src.RTSP
	if src.IsFile() {
		input = src.File
	}
	return ffkit.NewFrameCapture(ffkit.Config{
		Source:  input,
		IsFile:  src.IsFile(),
		FPS:     src.FPS,
		Quality: c.conf.Pipeline.JPEGQuality,
		Name:    src.ID,
	})
}

// Start 启动配置中一路源的管线
// 源未配置或已在运行返回错误，不产生任何任务
func (c *Core) Start(sourceID string) (*RunnerInfo, error) {
	src, ok := c.conf.GetSource(sourceID)
	if !ok {
		return nil, reason.ErrBadRequest.Withf(`unknown source[%s]`, sourceID)
	}
	return c.startSource(src, false)
}

// StartFile 启动一路运行期加入的视频文件源，返回生成的源 ID
// 文件读完且队列排空后管线自行结束
func (c *Core) StartFile(in *StartFileInput) (*RunnerInfo, error) {
	src := conf.Source{
		ID:            fmt.Sprintf("video_%d", time.Now().Unix()),
		File:          in.Path,
		FPS:           in.FPS,
		CountingLineX: c.conf.Pipeline.DefaultCountingLineX,
		BBox:          c.conf.Pipeline.DefaultBBox,
	}
	if src.FPS <= 0 {
		src.FPS = c.conf.Pipeline.FrameRate
	}
	return c.startSource(src, true)
}

func (c *Core) startSource(src conf.Source, dynamic bool) (*RunnerInfo, error) {
	ctx, cancel := context.WithCancel(context.Background())
	r := runner{
		taskID:       uuid.NewString(),
		source:       src,
		startedAt:    time.Now(),
		dynamic:      dynamic,
		cancel:       cancel,
		producerDone: make(chan struct{}),
		consumerDone: make(chan struct{}),
		sourceDone:   make(chan struct{}),
	}
	if _, loaded := c.runners.LoadOrStore(src.ID, &r); loaded {
		cancel()
		return nil, reason.ErrBadRequest.Withf(`source[%s] already running`, src.ID)
	}

	go c.runProducer(ctx, &r)
	go c.runConsumer(ctx, &r)
	// 两个任务都结束后回收运行态，文件源读完会自然走到这里
	go func() {
		<-r.producerDone
		<-r.consumerDone
		cancel()
		c.runners.Delete(src.ID)
	}()

	out := r.info()
	return &out, nil
}

// StartConfigured 启动配置中的全部源，服务启动时调用一次
func (c *Core) StartConfigured() {
	for _, src := range c.conf.Sources {
		if _, err := c.startSource(src, false); err != nil {
			slog.Error("start configured source", "source", src.ID, "err", err)
		} else {
			slog.Info("pipeline started", "source", src.ID)
		}
	}
}

// Stop 停止一路管线，阻塞至两个任务退出或超时
// 超时未退出的任务被放弃，结果中单独标记
func (c *Core) Stop(sourceID string) (*StopOutput, error) {
	r, ok := c.runners.Load(sourceID)
	if !ok {
		return nil, reason.ErrNotFound.Withf(`source[%s] is not running`, sourceID)
	}
	r.cancel()

	out := StopOutput{SourceID: sourceID}
	deadline := time.After(c.conf.Pipeline.StopTimeout.Duration())
	for _, done := range []chan struct{}{r.producerDone, r.consumerDone} {
		select {
		case <-done:
		case <-deadline:
			out.Forced = true
		}
	}
	c.runners.Delete(sourceID)
	return &out, nil
}

// StopAll 停机时停止所有管线
func (c *Core) StopAll() {
	ids := make([]string, 0, 8)
	c.runners.Range(func(id string, _ *runner) bool {
		ids = append(ids, id)
		return true
	})
	for _, id := range ids {
		_, _ = c.Stop(id)
	}
}

// Status 当前所有运行中的管线
func (c *Core) Status() []RunnerInfo {
	out := make([]RunnerInfo, 0, 8)
	c.runners.Range(func(_ string, r *runner) bool {
		out = append(out, r.info())
		return true
	})
	return out
}

func (r *runner) info() RunnerInfo {
	return RunnerInfo{
		SourceID:  r.source.ID,
		TaskID:    r.taskID,
		Queue:     framebroker.QueueName(r.source.ID),
		IsFile:    r.source.IsFile(),
		Dynamic:   r.dynamic,
		StartedAt: r.startedAt,
	}
}
