package client

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrSendQueueFull = errors.New("client: send queue full")
	ErrClosed        = errors.New("client: session closed")
)

// ConnectError 连接服务端失败（会话进入 Failed，不重试）
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// TimeoutError 超过 Silence 未收到服务端任何消息
type TimeoutError struct {
	Silence time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no packet from server for %v", e.Silence)
}
