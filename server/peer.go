package server

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"skyfront/protocol"
)

// PeerID 连接的稳定句柄，不随其他连接离开而改变
type PeerID uint64

// PeerState 连接生命周期：Connecting → Ready → (TimedOut | Disconnected)
type PeerState int

const (
	PeerConnecting PeerState = iota
	PeerReady
	PeerTimedOut
	PeerDisconnected
)

func (s PeerState) String() string {
	switch s {
	case PeerConnecting:
		return "connecting"
	case PeerReady:
		return "ready"
	case PeerTimedOut:
		return "timed_out"
	case PeerDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const writeWait = 5 * time.Second

// Peer 一个 TCP 客户端连接；除读写协程外的字段只在持有 Server.mu 时访问
type Peer struct {
	ID         PeerID
	conn       net.Conn
	send       chan []byte
	state      PeerState
	lastPacket time.Duration
	aircraft   []protocol.AircraftID
	limiter    *rate.Limiter
	closed     bool
	closeOnce  sync.Once
}

func newPeer(id PeerID, conn net.Conn, cfg Config) *Peer {
	return &Peer{
		ID:      id,
		conn:    conn,
		send:    make(chan []byte, cfg.SendQueue),
		limiter: rate.NewLimiter(rate.Limit(cfg.InboundRate), cfg.InboundBurst),
	}
}

// RemoteAddr 对端地址
func (p *Peer) RemoteAddr() string {
	if a := p.conn.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// owns 该连接是否拥有飞机 id
func (p *Peer) owns(id protocol.AircraftID) bool {
	for _, a := range p.aircraft {
		if a == id {
			return true
		}
	}
	return false
}

// Enqueue 将已编码的消息压入发送队列（非阻塞，满则丢弃）
func (p *Peer) Enqueue(b []byte) bool {
	if p.closed {
		return false
	}
	select {
	case p.send <- b:
		return true
	default:
		// 队列满说明对端处理不过来，丢弃以保证循环不被阻塞
		return false
	}
}

// Close 关闭发送队列与底层连接
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.closed = true
		close(p.send)
		_ = p.conn.Close()
	})
}

// writePump 独立协程，负责从 send 队列按帧写出
func (p *Peer) writePump() {
	defer p.conn.Close()
	for msg := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := protocol.WriteFrame(p.conn, msg); err != nil {
			return
		}
	}
}

// readPump 读取客户端消息并交给循环线程；连接出错时上报后退出
func (p *Peer) readPump(out chan<- inbound, done <-chan struct{}) {
	for {
		payload, err := protocol.ReadFrame(p.conn)
		in := inbound{peer: p}
		if err != nil {
			in.connErr = err
		} else if in.msg, err = protocol.DecodeClient(payload); err != nil {
			in.decodeErr = err
		}
		select {
		case out <- in:
		case <-done:
			return
		}
		if in.connErr != nil {
			return
		}
	}
}
