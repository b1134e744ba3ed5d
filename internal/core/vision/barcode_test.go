package vision

import (
	"context"
	"image"
	"testing"
)

type stubOCR struct {
	texts []string
	err   error
	got   []byte
}

func (s *stubOCR) Recognize(_ context.Context, jpeg []byte) ([]string, error) {
	s.got = jpeg
	return s.texts, s.err
}

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 200, 100))
}

func TestBarcodeReaderExtractsEightDigits(t *testing.T) {
	ocr := stubOCR{texts: []string{"ingot", "sn: 12345678 lot 42"}}
	reader := NewBarcodeReader(&ocr)

	code, roiJPEG, err := reader.Read(context.Background(), testFrame(), Rect{XMin: 10, YMin: 10, XMax: 100, YMax: 60})
	if err != nil {
		t.Fatal(err)
	}
	if code != "12345678" {
		t.Fatalf("expect 12345678, got %q", code)
	}
	if len(roiJPEG) == 0 {
		t.Fatal("expect roi jpeg for persistence")
	}
	if len(ocr.got) == 0 {
		t.Fatal("ocr did not receive cropped image")
	}
}

// 没有 8 位数字串时不算条码，也不算错误
func TestBarcodeReaderIgnoresOtherNumbers(t *testing.T) {
	ocr := stubOCR{texts: []string{"lot 42", "sn 123456789"}}
	reader := NewBarcodeReader(&ocr)

	code, _, err := reader.Read(context.Background(), testFrame(), Rect{XMax: 200, YMax: 100})
	if err != nil {
		t.Fatal(err)
	}
	if code != "" {
		t.Fatalf("expect no barcode, got %q", code)
	}
}

// 识别区域与帧不相交时跳过 OCR
func TestBarcodeReaderEmptyROI(t *testing.T) {
	ocr := stubOCR{texts: []string{"12345678"}}
	reader := NewBarcodeReader(&ocr)

	code, _, err := reader.Read(context.Background(), testFrame(), Rect{XMin: 500, YMin: 500, XMax: 600, YMax: 600})
	if err != nil {
		t.Fatal(err)
	}
	if code != "" {
		t.Fatalf("expect no barcode for empty roi, got %q", code)
	}
	if ocr.got != nil {
		t.Fatal("ocr must not be called for empty roi")
	}
}
