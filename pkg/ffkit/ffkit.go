// Package ffkit 基于 ffmpeg 子进程的帧采集
//
// 输出 MJPEG 流，帧在管道里就是压缩好的 JPEG，按 SOI/EOI 标记切分，
// 相机源与视频文件源共用同一条采集管线。
package ffkit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

// ErrStreamEnded 源已读完，视频文件耗尽时返回，区别于取消
var ErrStreamEnded = errors.New("stream ended")

type (
	Config struct {
		Source       string // rtsp 地址或本地文件路径
		IsFile       bool
		FPS          int
		Quality      int // ffmpeg -q:v，2 最好 31 最差
		Transport    string
		UseWallClock bool
		Name         string
	}
	FrameData struct {
		FrameNum  uint64
		Timestamp time.Time
		Data      []byte // JPEG 字节
	}
	FrameCapture struct {
		Name    string
		config  Config
		FrameCh chan *FrameData
		errCh   chan error
		ctx     context.Context
		cancel  context.CancelFunc
		m       sync.Mutex
		started bool
		cmd     *exec.Cmd

		lastFrame  time.Time
		wg         sync.WaitGroup
		ffmpegLog  *queue.CirQueue[string]
		frameCount uint64
		skipCount  uint64
	}
	Stats struct {
		Name                  string
		FrameCount, SkipCount uint64
		LastFrame             time.Time
		IsRunning             bool
	}
)

func NewFrameCapture(cfg Config) (*FrameCapture, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps: %d", cfg.FPS)
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 7
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FrameCapture{
		Name:      cfg.Name,
		config:    cfg,
		FrameCh:   make(chan *FrameData, 10),
		errCh:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (fc *FrameCapture) buildFFmpegArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-threads", "2",
	}
	if !fc.config.IsFile {
		args = append(args,
			"-rtsp_transport", fc.config.Transport,
			"-skip_frame", "nokey",
			"-timeout", "10000000",
		)
		if fc.config.UseWallClock {
			args = append(args, "-use_wallclock_as_timestamps", "1")
		}
	}
	args = append(args, "-i", fc.config.Source)
	args = append(args,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", strconv.Itoa(fc.config.Quality),
		"-r", strconv.Itoa(fc.config.FPS),
		"-vsync", "0",
		"pipe:1",
	)
	return args
}

func (fc *FrameCapture) Start() error {
	fc.m.Lock()
	defer fc.m.Unlock()
	if fc.started {
		return fmt.Errorf("frame capture already started")
	}

	args := fc.buildFFmpegArgs()
	fc.cmd = exec.CommandContext(fc.ctx, "ffmpeg", args...)
	stdout, err := fc.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := fc.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := fc.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	fc.started = true
	fc.lastFrame = time.Now()

	fc.wg.Go(func() { fc.captureLoop(stdout) })
	fc.wg.Go(func() { fc.readStderr(stderr) })
	return nil
}

// captureLoop 从 ffmpeg 的 stdout 切分 JPEG 帧
// MJPEG 流中帧以 SOI 开始 EOI 结束，熵编码数据因字节填充不会出现裸标记
func (fc *FrameCapture) captureLoop(stdout io.Reader) {
	defer close(fc.FrameCh)

	scan := bufio.NewScanner(stdout)
	scan.Buffer(make([]byte, 1<<20), 32<<20)
	scan.Split(SplitJPEG)

	for scan.Scan() {
		select {
		case <-fc.ctx.Done():
			return
		default:
		}

		frameBytes := make([]byte, len(scan.Bytes()))
		copy(frameBytes, scan.Bytes())

		frameNum := atomic.AddUint64(&fc.frameCount, 1)
		now := time.Now()
		fc.m.Lock()
		fc.lastFrame = now
		fc.m.Unlock()

		frame := FrameData{
			FrameNum:  frameNum,
			Timestamp: now,
			Data:      frameBytes,
		}
		select {
		case fc.FrameCh <- &frame:
		case <-fc.ctx.Done():
			return
		default:
			atomic.AddUint64(&fc.skipCount, 1)
		}
	}

	err := scan.Err()
	if err == nil {
		// 正常 EOF，文件源读完
		err = fmt.Errorf("%s: %w", fc.config.Source, ErrStreamEnded)
	}
	select {
	case fc.errCh <- err:
	default:
	}
}

// readStderr 读取 ffmpeg 的 stderr 输出用于日志记录
func (fc *FrameCapture) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		fc.ffmpegLog.Push(scan.Text())
	}
}

func (fc *FrameCapture) Frames() <-chan *FrameData {
	return fc.FrameCh
}

func (fc *FrameCapture) Error() <-chan error {
	return fc.errCh
}

func (fc *FrameCapture) Log() []string {
	return fc.ffmpegLog.Range()
}

// GetFrame 取下一帧，超时或源结束返回错误
func (fc *FrameCapture) GetFrame(timeout time.Duration) (*FrameData, error) {
	select {
	case frame, ok := <-fc.FrameCh:
		if !ok {
			select {
			case err := <-fc.errCh:
				return nil, err
			default:
				return nil, ErrStreamEnded
			}
		}
		return frame, nil
	case err := <-fc.errCh:
		return nil, err
	case <-fc.ctx.Done():
		return nil, fc.ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout")
	}
}

func (fc *FrameCapture) Stop() error {
	fc.m.Lock()
	if !fc.started {
		fc.m.Unlock()
		return nil
	}
	fc.m.Unlock()

	if cancel := fc.cancel; cancel != nil {
		cancel()
	}
	fc.wg.Wait()

	if fc.cmd != nil && fc.cmd.Process != nil {
		done := make(chan error, 1)
		defer close(done)
		go func() {
			done <- fc.cmd.Wait()
		}()

		select {
		case <-time.After(5 * time.Second):
			if err := fc.cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill ffmpeg: %w", err)
			}
			<-done
		case <-done:
		}
	}
	return nil
}

func (fc *FrameCapture) GetStats() Stats {
	fc.m.Lock()
	defer fc.m.Unlock()
	return Stats{
		Name:       fc.config.Name,
		FrameCount: atomic.LoadUint64(&fc.frameCount),
		SkipCount:  atomic.LoadUint64(&fc.skipCount),
		LastFrame:  fc.lastFrame,
		IsRunning:  fc.started,
	}
}
