package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrTruncated     = errors.New("truncated message")
	ErrUnknownTag    = errors.New("unknown message tag")
	ErrTrailingBytes = errors.New("trailing bytes after message")
	ErrBadCount      = errors.New("invalid element count")
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// ProtocolError 报文畸形（截断、未知 tag、计数非法等）。调用方应视为连接失步并断开。
type ProtocolError struct {
	Op  string // "decode server" / "decode client" / "read frame"
	Tag int32
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s (tag %d): %v", e.Op, e.Tag, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError 判断 err 链中是否含有 ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
