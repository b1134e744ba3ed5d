package ffkit

import "bytes"

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJPEG bufio.Scanner 切分函数，从字节流中切出完整 JPEG 帧
// SOI 之前的脏数据被丢弃，不完整的帧等待更多数据
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// 保留末尾一个字节，防止 SOI 被截断
		if n := len(data) - 1; n > 0 {
			return n, nil, nil
		}
		return 0, nil, nil
	}

	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}

	frameEnd := start + 2 + end + 2
	return frameEnd, data[start:frameEnd], nil
}
