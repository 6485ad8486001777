// Package server 权威服务端：维护所有连接与飞机记录，按固定频率推进卷轴、
// 生成敌机并向客户端广播世界状态。另提供管理接口与观战 WebSocket。
package server

import (
	"math/rand"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"skyfront/protocol"
)

type rect struct {
	Left, Top, Width, Height float32
}

// Server 权威服务端。peers 与 records 由 mu 保护；
// 循环线程与其他线程的通知调用都先获取 mu
type Server struct {
	cfg     Config
	log     *zap.SugaredLogger
	rng     *rand.Rand
	metrics *ServerMetrics
	hub     *spectatorHub

	mu           deadlock.Mutex
	peers        []*Peer
	records      map[protocol.AircraftID]*AircraftRecord
	nextAircraft protocol.AircraftID
	nextPeer     PeerID
	battlefield  rect
	now          time.Duration
	epoch        time.Time
	stepAcc      time.Duration
	tickAcc      time.Duration
	lastSpawn    time.Duration
	nextSpawn    time.Duration
	missionDone  bool
	listening    bool

	listener net.Listener
	conns    chan net.Conn
	inbound  chan inbound
	done     chan struct{}
	stopping atomic.Bool
	started  atomic.Bool
	wg       sync.WaitGroup
}

// Option 构造选项
type Option func(*Server)

// WithRand 注入随机源（测试中使用固定种子）
func WithRand(r *rand.Rand) Option { return func(s *Server) { s.rng = r } }

// WithListener 使用已创建的监听器
func WithListener(ln net.Listener) Option { return func(s *Server) { s.listener = ln } }

// WithLogger 使用指定日志
func WithLogger(l *zap.SugaredLogger) Option { return func(s *Server) { s.log = l } }

// New 创建服务端；战场初始位于世界底部
func New(cfg Config, opts ...Option) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg:          cfg,
		log:          Log,
		metrics:      &ServerMetrics{},
		records:      make(map[protocol.AircraftID]*AircraftRecord),
		nextAircraft: 1,
		nextPeer:     1,
		battlefield: rect{
			Top:    cfg.WorldHeight - cfg.BattlefieldHeight,
			Width:  cfg.BattlefieldWidth,
			Height: cfg.BattlefieldHeight,
		},
		epoch:     time.Unix(0, 0),
		nextSpawn: cfg.FirstSpawnDelay,
		listening: true,
		conns:     make(chan net.Conn, cfg.MaxPeers),
		inbound:   make(chan inbound, 1024),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	s.hub = newSpectatorHub(s.log)
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Metrics 运行指标
func (s *Server) Metrics() *ServerMetrics { return s.metrics }

// Addr 监听地址（未启动时为 nil）
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start 监听并启动接入协程与循环协程
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	if s.listener == nil {
		ln, err := net.Listen("tcp", s.cfg.Addr)
		if err != nil {
			return errors.Wrapf(err, "listen %s", s.cfg.Addr)
		}
		s.listener = ln
	}
	s.log.Infow("server listening", "addr", s.listener.Addr().String())

	s.wg.Add(2)
	go s.acceptLoop()
	go s.run()
	return nil
}

// Stop 设置退出标志，等待循环协程结束（至多一个休眠间隔），然后关闭所有连接
func (s *Server) Stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	for _, p := range s.peers {
		p.state = PeerDisconnected
		p.Close()
	}
	s.peers = nil
	s.mu.Unlock()
	s.hub.closeAll()
	s.log.Infow("server stopped")
}

// AddConn 接入一个已建立的连接（与 Accept 得到的连接同样处理）
func (s *Server) AddConn(c net.Conn) {
	select {
	case s.conns <- c:
	case <-s.done:
		_ = c.Close()
	}
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		c, err := s.listener.Accept()
		if err != nil {
			if s.stopping.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warnw("accept failed", "err", err)
			continue
		}
		s.AddConn(c)
	}
}

func (s *Server) run() {
	defer s.wg.Done()
	last := time.Now()
	for !s.stopping.Load() {
		now := time.Now()
		s.update(now.Sub(last))
		last = now
		time.Sleep(s.cfg.LoopSleep)
	}
}

// update 循环的一次迭代：入站消息 → 新连接 → 固定步卷轴 → 固定 Tick
func (s *Server) update(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now += elapsed
	s.handleIncomingPackets()
	s.handleIncomingConnections()

	step := s.cfg.stepInterval()
	for s.stepAcc += elapsed; s.stepAcc >= step; s.stepAcc -= step {
		s.battlefield.Top += s.cfg.ScrollSpeed * float32(step.Seconds())
	}

	tick := s.cfg.tickInterval()
	for s.tickAcc += elapsed; s.tickAcc >= tick; s.tickAcc -= tick {
		start := time.Now()
		s.tick()
		s.metrics.AddTick(time.Since(start).Nanoseconds())
	}
}

func (s *Server) handleIncomingPackets() {
	detectedTimeout := false
	for drained := false; !drained; {
		select {
		case in := <-s.inbound:
			if s.handleInbound(in) {
				detectedTimeout = true
			}
		default:
			drained = true
		}
	}

	for _, p := range s.peers {
		if p.state != PeerReady {
			continue
		}
		if silence := s.now - p.lastPacket; silence > s.cfg.ClientTimeout {
			s.log.Infow("peer timed out", "peer", p.ID, "err", &TimeoutError{Peer: p.ID, Silence: silence})
			p.state = PeerTimedOut
		}
		if p.state == PeerTimedOut {
			detectedTimeout = true
		}
	}

	if detectedTimeout {
		s.handleDisconnections()
	}
}

// handleInbound 处理一条入站结果，返回该连接是否已进入 TimedOut
func (s *Server) handleInbound(in inbound) bool {
	p := in.peer
	if p.state != PeerReady {
		return false
	}
	switch {
	case in.connErr != nil:
		s.log.Infow("peer connection closed", "peer", p.ID, "err", in.connErr)
		p.state = PeerTimedOut
	case in.decodeErr != nil:
		// 帧边界完好，单个畸形消息丢弃即可
		s.metrics.IncMalformed()
		s.log.Warnw("discard malformed packet", "peer", p.ID, "err", in.decodeErr)
	case !isControl(in.msg) && !p.limiter.AllowN(s.epoch.Add(s.now), 1):
		p.lastPacket = s.now
		s.metrics.IncRateLimited()
	default:
		p.lastPacket = s.now
		s.handleMessage(p, in.msg)
	}
	return p.state == PeerTimedOut
}

// isControl 退出与协作请求不受入站限流影响
func isControl(m protocol.ClientMessage) bool {
	switch m.(type) {
	case *protocol.Quit, *protocol.RequestCoopPartner:
		return true
	}
	return false
}

func (s *Server) handleIncomingConnections() {
	for {
		select {
		case c := <-s.conns:
			s.acceptPeer(c)
		default:
			return
		}
	}
}

func (s *Server) acceptPeer(c net.Conn) {
	if len(s.peers) >= s.cfg.MaxPeers {
		err := &CapacityError{Max: s.cfg.MaxPeers}
		s.log.Warnw("reject connection", "remote", c.RemoteAddr(), "err", err)
		s.metrics.IncRejected()
		_ = c.Close()
		s.setListening(false)
		return
	}

	p := newPeer(s.nextPeer, c, s.cfg)
	s.nextPeer++
	id := s.allocateAircraft(p)
	rec := s.records[id]

	s.broadcastMessage("New player!")
	s.informWorldState(p, id)
	s.notifyPlayerSpawn(id)
	s.enqueue(p, &protocol.SpawnSelf{ID: id, Position: rec.Position})

	p.state = PeerReady
	p.lastPacket = s.now
	s.peers = append(s.peers, p)
	s.metrics.IncAccepted()
	s.log.Infow("peer connected", "peer", p.ID, "aircraft", id, "remote", p.RemoteAddr(), "peers", len(s.peers))

	go p.writePump()
	go p.readPump(s.inbound, s.done)

	if len(s.peers) >= s.cfg.MaxPeers {
		s.setListening(false)
	}
}

// allocateAircraft 为连接分配新飞机，记录放在战场中心
func (s *Server) allocateAircraft(p *Peer) protocol.AircraftID {
	id := s.nextAircraft
	s.nextAircraft++
	s.records[id] = newAircraftRecord(protocol.Vec2{
		X: s.battlefield.Width / 2,
		Y: s.battlefield.Top + s.battlefield.Height/2,
	})
	p.aircraft = append(p.aircraft, id)
	return id
}

// informWorldState 向新连接发送世界快照（不含它自己的飞机）
func (s *Server) informWorldState(p *Peer, self protocol.AircraftID) {
	msg := &protocol.InitialState{
		WorldHeight:  s.cfg.WorldHeight,
		ScrollOffset: s.leadingEdge(),
	}
	for _, id := range s.sortedAircraft() {
		if id == self {
			continue
		}
		msg.Aircraft = append(msg.Aircraft, s.records[id].state(id).wire())
	}
	s.enqueue(p, msg)
}

func (s *Server) handleDisconnections() {
	var gone []*Peer
	kept := s.peers[:0]
	for _, p := range s.peers {
		if p.state == PeerTimedOut {
			gone = append(gone, p)
		} else {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(s.peers); i++ {
		s.peers[i] = nil
	}
	s.peers = kept

	for _, p := range gone {
		for _, id := range p.aircraft {
			s.sendToAll(&protocol.PlayerDisconnect{ID: id})
			delete(s.records, id)
		}
		p.state = PeerDisconnected
		p.Close()
		s.metrics.IncTimeouts()
		s.log.Infow("peer disconnected", "peer", p.ID, "aircraft", p.aircraft, "peers", len(s.peers))

		if len(s.peers) < s.cfg.MaxPeers {
			s.setListening(true)
		}
		s.broadcastMessage("An ally has disconnected.")
	}
}

func (s *Server) setListening(on bool) {
	if s.listening == on {
		return
	}
	s.listening = on
	s.log.Infow("listening state changed", "listening", on)
}

// isHost 第一个（最早接入且仍在线的）连接
func (s *Server) isHost(p *Peer) bool { return len(s.peers) > 0 && s.peers[0] == p }

func (s *Server) leadingEdge() float32 { return s.battlefield.Top + s.battlefield.Height }

func (s *Server) sortedAircraft() []protocol.AircraftID {
	ids := make([]protocol.AircraftID, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Server) enqueue(p *Peer, m protocol.ServerMessage) {
	if !p.Enqueue(protocol.EncodeServer(m)) {
		s.metrics.IncSendDropped()
	}
}

// sendToAll 向所有 Ready 连接发送
func (s *Server) sendToAll(m protocol.ServerMessage) {
	s.sendExcept(nil, m)
}

func (s *Server) sendExcept(skip *Peer, m protocol.ServerMessage) {
	b := protocol.EncodeServer(m)
	for _, p := range s.peers {
		if p == skip || p.state != PeerReady {
			continue
		}
		if !p.Enqueue(b) {
			s.metrics.IncSendDropped()
		}
	}
}

func (s *Server) broadcastMessage(text string) {
	s.sendToAll(&protocol.BroadcastMessage{Text: text})
}

func (s *Server) notifyPlayerSpawn(id protocol.AircraftID) {
	rec, ok := s.records[id]
	if !ok {
		return
	}
	s.sendToAll(&protocol.PlayerConnect{ID: id, Position: rec.Position})
}

// BroadcastMessage 向所有玩家广播文本
func (s *Server) BroadcastMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastMessage(text)
}

// NotifyPlayerSpawn 通知所有玩家飞机 id 已加入
func (s *Server) NotifyPlayerSpawn(id protocol.AircraftID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyPlayerSpawn(id)
}

// NotifyPlayerRealtimeChange 记录并广播实时动作变化
func (s *Server) NotifyPlayerRealtimeChange(id protocol.AircraftID, action protocol.Action, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[id]; ok {
		rec.RealtimeActions[action] = enabled
	}
	s.sendToAll(&protocol.PlayerRealtimeChange{ID: id, Action: action, Enabled: enabled})
}

// NotifyPlayerEvent 广播一次性动作
func (s *Server) NotifyPlayerEvent(id protocol.AircraftID, action protocol.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendToAll(&protocol.PlayerEvent{ID: id, Action: action})
}
