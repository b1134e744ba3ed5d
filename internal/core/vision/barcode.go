package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"regexp"
	"strings"
)

var digitsRe = regexp.MustCompile(`\d+`)

// BarcodeReader 从帧的识别区域读取 8 位钢坯条码
type BarcodeReader struct {
	ocr OCREngine
}

func NewBarcodeReader(ocr OCREngine) BarcodeReader {
	return BarcodeReader{ocr: ocr}
}

// Read 裁剪识别区域后调用 OCR，提取第一个 8 位数字串
// 没有识别到条码返回空串，不算错误；返回裁剪区域的 JPEG 供落盘
func (r BarcodeReader) Read(ctx context.Context, frame image.Image, roi Rect) (string, []byte, error) {
	cropped := crop(frame, roi)
	if cropped == nil {
		return "", nil, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropped, &jpeg.Options{Quality: 80}); err != nil {
		return "", nil, fmt.Errorf("encode roi: %w", err)
	}

	texts, err := r.ocr.Recognize(ctx, buf.Bytes())
	if err != nil {
		return "", nil, err
	}
	if len(texts) == 0 {
		return "", nil, nil
	}

	for _, number := range digitsRe.FindAllString(strings.Join(texts, " "), -1) {
		if len(number) == 8 {
			return number, buf.Bytes(), nil
		}
	}
	return "", nil, nil
}

// crop 取识别区域子图，区域为空或越界时返回 nil
func crop(frame image.Image, roi Rect) image.Image {
	rect := image.Rect(roi.XMin, roi.YMin, roi.XMax, roi.YMax).Intersect(frame.Bounds())
	if rect.Empty() {
		return nil
	}
	sub, ok := frame.(interface {
		SubImage(image.Rectangle) image.Image
	})
	if !ok {
		return frame
	}
	return sub.SubImage(rect)
}
