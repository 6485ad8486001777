package server

import (
	"sync/atomic"
)

// ServerMetrics 服务端运行期的关键指标（用于监控与调试）
type ServerMetrics struct {
	TickCount      int64 // Tick 次数
	TotalTickNs    int64 // Tick 累计耗时（纳秒）
	PeersAccepted  int64 // 接入的连接数
	PeersRejected  int64 // 因满员被拒绝的连接数
	Timeouts       int64 // 超时或退出的连接数
	Malformed      int64 // 被丢弃的畸形消息数
	Relayed        int64 // 转发的玩家输入数
	RateLimited    int64 // 因入站限流被丢弃的消息数
	SendDropped    int64 // 因发送队列满被丢弃的消息数
	EnemiesSpawned int64
	PickupsSpawned int64
}

func (m *ServerMetrics) IncAccepted()    { atomic.AddInt64(&m.PeersAccepted, 1) }
func (m *ServerMetrics) IncRejected()    { atomic.AddInt64(&m.PeersRejected, 1) }
func (m *ServerMetrics) IncTimeouts()    { atomic.AddInt64(&m.Timeouts, 1) }
func (m *ServerMetrics) IncMalformed()   { atomic.AddInt64(&m.Malformed, 1) }
func (m *ServerMetrics) IncRelayed()     { atomic.AddInt64(&m.Relayed, 1) }
func (m *ServerMetrics) IncRateLimited() { atomic.AddInt64(&m.RateLimited, 1) }
func (m *ServerMetrics) IncSendDropped() { atomic.AddInt64(&m.SendDropped, 1) }
func (m *ServerMetrics) IncPickups()     { atomic.AddInt64(&m.PickupsSpawned, 1) }
func (m *ServerMetrics) AddEnemies(n int) {
	atomic.AddInt64(&m.EnemiesSpawned, int64(n))
}
func (m *ServerMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *ServerMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":      tick,
		"avg_tick_ms":     avgMs,
		"peers_accepted":  atomic.LoadInt64(&m.PeersAccepted),
		"peers_rejected":  atomic.LoadInt64(&m.PeersRejected),
		"timeouts":        atomic.LoadInt64(&m.Timeouts),
		"malformed":       atomic.LoadInt64(&m.Malformed),
		"relayed":         atomic.LoadInt64(&m.Relayed),
		"rate_limited":    atomic.LoadInt64(&m.RateLimited),
		"send_dropped":    atomic.LoadInt64(&m.SendDropped),
		"enemies_spawned": atomic.LoadInt64(&m.EnemiesSpawned),
		"pickups_spawned": atomic.LoadInt64(&m.PickupsSpawned),
	}
}
