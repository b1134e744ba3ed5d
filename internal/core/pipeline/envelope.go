package pipeline

import (
	"encoding/binary"
	"fmt"
	"time"
)

const envelopeVersion = 1

// FrameEnvelope 帧在队列上的传输单元
type FrameEnvelope struct {
	SourceID   string
	CapturedAt time.Time
	Payload    []byte // JPEG 字节
}

// Encode 二进制编码
// 版本 1 字节，采集时间毫秒 8 字节大端，源 ID 长度 2 字节大端加内容，其余为负载
func (e FrameEnvelope) Encode() []byte {
	buf := make([]byte, 0, 1+8+2+len(e.SourceID)+len(e.Payload))
	buf = append(buf, envelopeVersion)
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.CapturedAt.UnixMilli()))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(e.SourceID)))
	buf = append(buf, e.SourceID...)
	buf = append(buf, e.Payload...)
	return buf
}

// DecodeEnvelope 解码队列消息，格式不符返回错误由消费端丢弃
func DecodeEnvelope(b []byte) (FrameEnvelope, error) {
	var e FrameEnvelope
	if len(b) < 11 {
		return e, fmt.Errorf("envelope too short: %d bytes", len(b))
	}
	if b[0] != envelopeVersion {
		return e, fmt.Errorf("unsupported envelope version %d", b[0])
	}
	ms := int64(binary.BigEndian.Uint64(b[1:9]))
	idLen := int(binary.BigEndian.Uint16(b[9:11]))
	if len(b) < 11+idLen {
		return e, fmt.Errorf("envelope truncated: source id length %d", idLen)
	}
	e.CapturedAt = time.UnixMilli(ms)
	e.SourceID = string(b[11 : 11+idLen])
	e.Payload = b[11+idLen:]
	return e, nil
}
