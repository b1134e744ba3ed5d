// Package vision 把外部 AI 分析能力接入帧处理管线
//
// OCR 与目标跟踪由独立的分析服务完成，这里只做识别区域裁剪、
// 结果过滤和过线计数，推理引擎通过接口注入，测试时可替换为假实现。
package vision

import "context"

// Rect 识别区域，像素坐标
type Rect struct {
	XMin, YMin, XMax, YMax int
}

// TrackedBox 跟踪结果框，X Y 为中心点坐标，ID 在目标整个跟踪周期内不变
type TrackedBox struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// OCREngine 外部文字识别服务，入参为 JPEG 字节
type OCREngine interface {
	Recognize(ctx context.Context, jpeg []byte) ([]string, error)
}

// Tracker 外部目标跟踪服务，返回当前帧所有在跟踪目标
type Tracker interface {
	Track(ctx context.Context, jpeg []byte) ([]TrackedBox, error)
}
