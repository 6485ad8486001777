package server

import (
	"fmt"
	"time"
)

// CapacityError 已达到最大连接数，新连接被拒绝直到有空位
type CapacityError struct {
	Max int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("server full: %d peers connected", e.Max)
}

// TimeoutError 连接在 Silence 内没有任何入站消息
type TimeoutError struct {
	Peer    PeerID
	Silence time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("peer %d timed out after %v", e.Peer, e.Silence)
}
