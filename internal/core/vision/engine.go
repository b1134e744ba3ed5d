package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	apiOCR   = "/api/v1/ocr"
	apiTrack = "/api/v1/track"
)

// Engine 分析服务的 HTTP 客户端，同时实现 OCREngine 和 Tracker
// 推理进程独立部署，崩溃或升级不影响采集管线
type Engine struct {
	url string
	cli *http.Client
}

var (
	_ OCREngine = Engine{}
	_ Tracker   = Engine{}
)

func NewEngine(url string, timeout time.Duration) Engine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return Engine{
		url: url,
		cli: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 30,
				MaxConnsPerHost:     100,
			},
		},
	}
}

// Recognize 上传 JPEG，返回识别出的文本行
func (e Engine) Recognize(ctx context.Context, jpeg []byte) ([]string, error) {
	var out struct {
		Texts []string `json:"texts"`
	}
	if err := e.postImage(ctx, apiOCR, jpeg, &out); err != nil {
		return nil, err
	}
	return out.Texts, nil
}

// Track 上传 JPEG，返回带跟踪 id 的目标框
func (e Engine) Track(ctx context.Context, jpeg []byte) ([]TrackedBox, error) {
	var out struct {
		Boxes []TrackedBox `json:"boxes"`
	}
	if err := e.postImage(ctx, apiTrack, jpeg, &out); err != nil {
		return nil, err
	}
	return out.Boxes, nil
}

// postImage 发送 JPEG 到分析服务并解析 JSON 响应
func (e Engine) postImage(ctx context.Context, path string, img []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url+path, bytes.NewReader(img))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/jpeg")
	resp, err := e.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analysis service %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
