package ffkit

import (
	"bufio"
	"bytes"
	"testing"
)

func frameBytes(payload ...byte) []byte {
	b := []byte{0xFF, 0xD8}
	b = append(b, payload...)
	return append(b, 0xFF, 0xD9)
}

func TestSplitJPEGSplitsFrames(t *testing.T) {
	f1 := frameBytes(0x01, 0x02, 0x03)
	f2 := frameBytes(0x04)
	f3 := frameBytes(0x05, 0x06)

	var stream []byte
	stream = append(stream, f1...)
	stream = append(stream, f2...)
	stream = append(stream, f3...)

	scan := bufio.NewScanner(bytes.NewReader(stream))
	scan.Split(SplitJPEG)

	want := [][]byte{f1, f2, f3}
	for i, w := range want {
		if !scan.Scan() {
			t.Fatalf("expect frame %d, scanner stopped: %v", i, scan.Err())
		}
		if !bytes.Equal(scan.Bytes(), w) {
			t.Fatalf("frame %d mismatch: % X", i, scan.Bytes())
		}
	}
	if scan.Scan() {
		t.Fatal("expect end of stream")
	}
}

// ffmpeg 启动时 stdout 前面可能带非帧数据，SOI 之前的内容要丢掉
func TestSplitJPEGDiscardsLeadingGarbage(t *testing.T) {
	frame := frameBytes(0xAA, 0xBB)
	stream := append([]byte("noise-before-frame"), frame...)

	scan := bufio.NewScanner(bytes.NewReader(stream))
	scan.Split(SplitJPEG)

	if !scan.Scan() {
		t.Fatalf("expect one frame: %v", scan.Err())
	}
	if !bytes.Equal(scan.Bytes(), frame) {
		t.Fatalf("frame mismatch: % X", scan.Bytes())
	}
}

// 小读缓冲把标记切成两半，切分函数要能跨块重组
func TestSplitJPEGAcrossSmallReads(t *testing.T) {
	f1 := frameBytes(bytes.Repeat([]byte{0x01}, 20)...)
	f2 := frameBytes(0x06, 0x07)
	stream := append(append([]byte{}, f1...), f2...)

	scan := bufio.NewScanner(bytes.NewReader(stream))
	scan.Buffer(make([]byte, 16), 64)
	scan.Split(SplitJPEG)

	var got [][]byte
	for scan.Scan() {
		frame := make([]byte, len(scan.Bytes()))
		copy(frame, scan.Bytes())
		got = append(got, frame)
	}
	if err := scan.Err(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !bytes.Equal(got[0], f1) || !bytes.Equal(got[1], f2) {
		t.Fatalf("expect both frames, got %d", len(got))
	}
}

func TestSplitJPEGIncompleteFrameAtEOF(t *testing.T) {
	// 缺少 EOI 的尾部数据整体丢弃
	stream := []byte{0xFF, 0xD8, 0x01, 0x02}
	scan := bufio.NewScanner(bytes.NewReader(stream))
	scan.Split(SplitJPEG)
	if scan.Scan() {
		t.Fatal("expect no frame from truncated stream")
	}
	if err := scan.Err(); err != nil {
		t.Fatal(err)
	}
}
