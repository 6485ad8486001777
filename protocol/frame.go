package protocol

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// MaxFrameSize 单帧最大负载
const MaxFrameSize = 64 << 10

// WriteFrame 写出一帧：[uint32 length][payload]，一次 Write 调用
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return &ProtocolError{Op: "write frame", Tag: -1, Err: ErrFrameTooLarge}
	}
	buf := make([]byte, 4, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return errors.Wrap(err, "write frame")
}

// ReadFrame 读取一帧负载。长度越界返回 *ProtocolError；连接层错误原样（包装后）返回
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "read frame header")
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, &ProtocolError{Op: "read frame", Tag: -1, Err: ErrFrameTooLarge}
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "read frame body")
	}
	return payload, nil
}
