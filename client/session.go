// Package client 联机客户端：会话（接收服务端权威状态并与本地预测协调）、
// 玩家输入代理与按键绑定。渲染与音效通过 World 接口留给外部实现。
package client

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"skyfront/protocol"
)

// InterpolationFactor 远端飞机每收到一次权威位置，向其移动剩余距离的比例
const InterpolationFactor = 0.1

const (
	writeWait   = 5 * time.Second
	sendBufSize = 256
	recvBufSize = 256
)

// State 会话状态
type State int

const (
	StateConnected State = iota
	StateFailed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// EventKind 会话向上层报告的事件
type EventKind int

const (
	EventBroadcast EventKind = iota
	EventMissionSuccess
	EventGameOver
	EventConnectionLost
	EventReturnToMenu
)

// Event 会话事件；Text 仅对广播与断线有效
type Event struct {
	Kind EventKind
	Text string
}

// Config 会话参数
type Config struct {
	ConnectWait  time.Duration
	Timeout      time.Duration
	FailedLinger time.Duration
	PositionRate float64 // Hz
	BroadcastTTL time.Duration
	// Host 与服务端同进程的客户端，关闭时不发送 Quit
	Host bool
	// Bindings 第一、第二架本地飞机的按键
	Bindings [2]*KeyBinding
	Logger   *zap.SugaredLogger
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		ConnectWait:  5 * time.Second,
		Timeout:      2 * time.Second,
		FailedLinger: 5 * time.Second,
		PositionRate: 20,
		BroadcastTTL: 2500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ConnectWait <= 0 {
		c.ConnectWait = d.ConnectWait
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.FailedLinger <= 0 {
		c.FailedLinger = d.FailedLinger
	}
	if c.PositionRate <= 0 {
		c.PositionRate = d.PositionRate
	}
	if c.BroadcastTTL <= 0 {
		c.BroadcastTTL = d.BroadcastTTL
	}
	if c.Bindings[0] == nil {
		c.Bindings[0] = NewKeyBinding(1)
	}
	if c.Bindings[1] == nil {
		c.Bindings[1] = NewKeyBinding(2)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop().Sugar()
	}
	return c
}

// Session 一条到服务端的连接及其本地镜像。
// 除读写协程外，所有方法都应在同一帧循环协程中调用
type Session struct {
	cfg   Config
	log   *zap.SugaredLogger
	world World
	keys  KeyState

	conn       net.Conn
	send       chan []byte
	incoming   chan protocol.ServerMessage
	readErr    chan error
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	malformed  atomic.Int64

	state     State
	err       error
	closed    bool
	failedFor time.Duration
	returned  bool

	players map[protocol.AircraftID]*Player
	order   []protocol.AircraftID
	local   []protocol.AircraftID
	// craft 本地飞机的实体引用；飞机从世界移除后仍可读出最后的状态
	craft map[protocol.AircraftID]Aircraft

	gameStarted bool
	gameOver    bool
	active      bool
	focused     bool

	clock           time.Duration
	epoch           time.Time
	sinceLastPacket time.Duration
	positions       *rate.Limiter

	broadcasts       []string
	broadcastElapsed time.Duration
	events           []Event
}

// Dial 连接 addr（缺省端口为 protocol.ServerPort）。连接失败时仍返回会话，
// 状态为 StateFailed，等待 FailedLinger 后报告 EventReturnToMenu
func Dial(ctx context.Context, addr string, w World, keys KeyState, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(protocol.ServerPort))
	}
	d := net.Dialer{Timeout: cfg.ConnectWait}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		s := newSession(nil, w, keys, cfg)
		s.fail(StateFailed, &ConnectError{Addr: addr, Err: err}, "Could not connect to the remote server")
		return s, s.err
	}
	cfg.Logger.Infow("connected to server", "addr", addr)
	return NewSession(conn, w, keys, cfg), nil
}

// NewSession 在已建立的连接上启动会话
func NewSession(conn net.Conn, w World, keys KeyState, cfg Config) *Session {
	return newSession(conn, w, keys, cfg.withDefaults())
}

func newSession(conn net.Conn, w World, keys KeyState, cfg Config) *Session {
	s := &Session{
		cfg:        cfg,
		log:        cfg.Logger,
		world:      w,
		keys:       keys,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		incoming:   make(chan protocol.ServerMessage, recvBufSize),
		readErr:    make(chan error, 1),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
		players:    make(map[protocol.AircraftID]*Player),
		craft:      make(map[protocol.AircraftID]Aircraft),
		active:     true,
		focused:    true,
		epoch:      time.Unix(0, 0),
		positions:  rate.NewLimiter(rate.Limit(cfg.PositionRate), 1),
	}
	if conn != nil {
		go s.readLoop()
		go s.writeLoop()
	} else {
		close(s.writerDone)
	}
	return s
}

func (s *Session) State() State { return s.state }

// Err 会话失败原因（*ConnectError、*TimeoutError 或连接错误）
func (s *Session) Err() error { return s.err }

// Malformed 被丢弃的畸形消息数
func (s *Session) Malformed() int64 { return s.malformed.Load() }

// LocalAircraft 本机控制的飞机
func (s *Session) LocalAircraft() []protocol.AircraftID {
	return append([]protocol.AircraftID(nil), s.local...)
}

// Player 查找飞机的输入代理
func (s *Session) Player(id protocol.AircraftID) (*Player, bool) {
	p, ok := s.players[id]
	return p, ok
}

// PollEvent 按发生顺序取出一个事件
func (s *Session) PollEvent() (Event, bool) {
	if len(s.events) == 0 {
		return Event{}, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

// CurrentBroadcast 当前应显示的广播文本
func (s *Session) CurrentBroadcast() (string, bool) {
	if len(s.broadcasts) == 0 {
		return "", false
	}
	return s.broadcasts[0], true
}

// Send 非阻塞入队一条客户端消息
func (s *Session) Send(m protocol.ClientMessage) error {
	if s.state != StateConnected || s.closed {
		return ErrClosed
	}
	select {
	case s.send <- protocol.EncodeClient(m):
		return nil
	default:
		s.log.Warnw("send queue full, message dropped", "tag", m.ClientTag())
		return ErrSendQueueFull
	}
}

// Update 推进一帧
func (s *Session) Update(dt time.Duration) {
	if s.state != StateConnected {
		s.failedFor += dt
		if s.failedFor >= s.cfg.FailedLinger && !s.returned {
			s.returned = true
			s.emit(EventReturnToMenu, "")
		}
		return
	}
	s.clock += dt

	s.world.Update(dt)
	s.pruneProxies()

	q := s.world.Commands()
	if s.active && s.focused {
		for _, id := range s.order {
			s.players[id].HandleRealtimeInput(s.keys, q)
		}
	}
	for _, id := range s.order {
		s.players[id].HandleRealtimeNetworkInput(q)
	}

	if n := s.drain(); n > 0 {
		s.sinceLastPacket = 0
	} else if s.state == StateConnected && s.sinceLastPacket > s.cfg.Timeout {
		s.fail(StateDisconnected, &TimeoutError{Silence: s.sinceLastPacket}, "Lost connection to server")
	}
	if s.state != StateConnected {
		return
	}

	s.expireBroadcasts(dt)
	s.forwardGameActions()
	s.sendPositions()
	s.sinceLastPacket += dt
}

// HandleKey 处理离散输入事件
func (s *Session) HandleKey(ev KeyEvent) {
	switch ev.Type {
	case GainedFocus:
		s.focused = true
		return
	case LostFocus:
		s.focused = false
		return
	}
	if s.state != StateConnected {
		return
	}
	if s.active {
		q := s.world.Commands()
		for _, id := range s.order {
			if err := s.players[id].HandleEvent(ev, q); err != nil {
				s.log.Warnw("send player input failed", "aircraft", id, "err", err)
			}
		}
	}
	if ev.Type != KeyPressed {
		return
	}
	switch ev.Key {
	case KeyEnter:
		if len(s.local) == 1 {
			if err := s.Send(&protocol.RequestCoopPartner{}); err != nil {
				s.log.Warnw("request coop partner failed", "err", err)
			}
		}
	case KeyEscape:
		s.Pause()
	}
}

// Pause 暂停本地输入并松开所有实时动作
func (s *Session) Pause() {
	s.active = false
	for _, id := range s.local {
		if err := s.players[id].DisableAllRealtimeActions(); err != nil {
			s.log.Warnw("release realtime actions failed", "aircraft", id, "err", err)
		}
	}
}

// Resume 恢复本地输入
func (s *Session) Resume() { s.active = true }

// Close 非宿主客户端先发送 Quit，再关闭连接
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	if s.state == StateConnected && !s.cfg.Host {
		if err := s.Send(&protocol.Quit{}); err != nil {
			s.log.Warnw("send quit failed", "err", err)
		}
	}
	s.closed = true
	s.shutdown(true)
	return nil
}

func (s *Session) shutdown(wait bool) {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn == nil {
			return
		}
		close(s.send)
		if wait {
			select {
			case <-s.writerDone:
			case <-time.After(writeWait):
			}
		}
		_ = s.conn.Close()
	})
}

func (s *Session) fail(state State, err error, text string) {
	s.state = state
	s.err = err
	s.failedFor = 0
	s.log.Warnw("session lost", "state", state.String(), "err", err)
	s.emit(EventConnectionLost, text)
	s.shutdown(false)
}

func (s *Session) emit(kind EventKind, text string) {
	s.events = append(s.events, Event{Kind: kind, Text: text})
}

func (s *Session) readLoop() {
	for {
		payload, err := protocol.ReadFrame(s.conn)
		if err != nil {
			s.readErr <- errors.Wrap(err, "read from server")
			return
		}
		m, err := protocol.DecodeServer(payload)
		if err != nil {
			s.malformed.Add(1)
			s.log.Warnw("discard malformed packet", "err", err)
			continue
		}
		select {
		case s.incoming <- m:
		case <-s.done:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	for b := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := protocol.WriteFrame(s.conn, b); err != nil {
			s.log.Debugw("write to server failed", "err", err)
			return
		}
	}
}

// drain 处理本帧开始时已排队的全部消息
func (s *Session) drain() int {
	n := len(s.incoming)
	for i := 0; i < n; i++ {
		s.handle(<-s.incoming)
	}
	if n == 0 {
		select {
		case err := <-s.readErr:
			s.fail(StateDisconnected, err, "Lost connection to server")
		default:
		}
	}
	return n
}

func (s *Session) handle(msg protocol.ServerMessage) {
	q := s.world.Commands()
	switch m := msg.(type) {
	case *protocol.BroadcastMessage:
		s.broadcasts = append(s.broadcasts, m.Text)
		s.emit(EventBroadcast, m.Text)

	case *protocol.SpawnSelf:
		a := s.world.AddAircraft(m.ID)
		a.SetPosition(m.Position)
		s.addPlayer(m.ID, a, s.cfg.Bindings[0])
		s.gameStarted = true

	case *protocol.PlayerConnect:
		a := s.world.AddAircraft(m.ID)
		a.SetPosition(m.Position)
		s.addPlayer(m.ID, a, nil)

	case *protocol.PlayerDisconnect:
		s.world.RemoveAircraft(m.ID)
		s.removePlayer(m.ID)

	case *protocol.InitialState:
		s.world.SetWorldHeight(m.WorldHeight)
		s.world.SetCurrentBattlefieldPosition(m.ScrollOffset)
		for _, st := range m.Aircraft {
			a := s.world.AddAircraft(st.ID)
			a.SetPosition(st.Position)
			a.SetHitpoints(st.Hitpoints)
			a.SetMissileAmmo(st.MissileAmmo)
			s.addPlayer(st.ID, a, nil)
		}

	case *protocol.AcceptCoopPartner:
		a := s.world.AddAircraft(m.ID)
		a.SetPosition(m.Position)
		s.addPlayer(m.ID, a, s.cfg.Bindings[1])

	case *protocol.PlayerEvent:
		if p, ok := s.players[m.ID]; ok {
			p.HandleNetworkEvent(m.Action, q)
		}

	case *protocol.PlayerRealtimeChange:
		if p, ok := s.players[m.ID]; ok {
			p.HandleNetworkRealtimeChange(m.Action, m.Enabled)
		}

	case *protocol.SpawnEnemy:
		s.world.AddEnemy(m.Type, m.RelativeX, m.Height)
		s.world.SortEnemies()

	case *protocol.MissionSuccess:
		s.emit(EventMissionSuccess, "")

	case *protocol.SpawnPickup:
		s.world.CreatePickup(m.Type, m.Position)

	case *protocol.UpdateClientState:
		s.reconcile(m)
	}
}

// reconcile 按双方视野前沿之比修正卷轴速度，并平滑远端飞机位置
func (s *Session) reconcile(m *protocol.UpdateClientState) {
	if m.ScrollOffset != 0 {
		s.world.SetScrollCompensation(s.world.LeadingEdge() / m.ScrollOffset)
	}
	for _, st := range m.Aircraft {
		a, ok := s.world.Aircraft(st.ID)
		if !ok || s.isLocal(st.ID) {
			continue
		}
		a.SetPosition(a.Position().Approach(st.Position, InterpolationFactor))
	}
}

func (s *Session) isLocal(id protocol.AircraftID) bool {
	for _, l := range s.local {
		if l == id {
			return true
		}
	}
	return false
}

func (s *Session) addPlayer(id protocol.AircraftID, a Aircraft, binding *KeyBinding) {
	if _, exists := s.players[id]; !exists {
		s.order = append(s.order, id)
	}
	s.players[id] = NewPlayer(s, id, binding)
	if binding != nil {
		if !s.isLocal(id) {
			s.local = append(s.local, id)
		}
		s.craft[id] = a
	}
}

func (s *Session) removePlayer(id protocol.AircraftID) {
	if _, ok := s.players[id]; !ok {
		return
	}
	delete(s.players, id)
	delete(s.craft, id)
	s.order = removeID(s.order, id)
	s.local = removeID(s.local, id)
}

func removeID(ids []protocol.AircraftID, id protocol.AircraftID) []protocol.AircraftID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// pruneProxies 移除飞机已消失的代理；全部消失或本地飞机全灭即游戏结束。
// 本地飞机消失时立即上报一次最终状态（血量 <= 0），服务端据此回收记录
func (s *Session) pruneProxies() {
	removed := false
	var wrecks []protocol.AircraftState
	for _, id := range append([]protocol.AircraftID(nil), s.order...) {
		if _, ok := s.world.Aircraft(id); ok {
			continue
		}
		if a, ok := s.craft[id]; ok {
			wrecks = append(wrecks, wreckState(id, a))
		}
		s.removePlayer(id)
		removed = true
	}
	if len(wrecks) > 0 {
		if err := s.Send(&protocol.PositionUpdate{Aircraft: wrecks}); err != nil {
			s.log.Warnw("report destroyed aircraft failed", "err", err)
		}
	}
	if s.gameOver {
		return
	}
	if (removed && len(s.order) == 0) || (s.gameStarted && len(s.local) == 0) {
		s.gameOver = true
		s.emit(EventGameOver, "")
	}
}

func (s *Session) expireBroadcasts(dt time.Duration) {
	if len(s.broadcasts) == 0 {
		return
	}
	s.broadcastElapsed += dt
	if s.broadcastElapsed >= s.cfg.BroadcastTTL {
		s.broadcasts = s.broadcasts[1:]
		s.broadcastElapsed = 0
	}
}

func (s *Session) forwardGameActions() {
	for {
		ev, ok := s.world.PollGameAction()
		if !ok {
			return
		}
		if err := s.Send(&ev); err != nil {
			s.log.Warnw("forward game event failed", "err", err)
		}
	}
}

func wreckState(id protocol.AircraftID, a Aircraft) protocol.AircraftState {
	hp := a.Hitpoints()
	if hp > 0 {
		hp = 0
	}
	return protocol.AircraftState{ID: id, Position: a.Position(), Hitpoints: hp, MissileAmmo: a.MissileAmmo()}
}

// sendPositions 按模拟时钟限速上报本地飞机状态；没有本地飞机时也发送，兼作心跳
func (s *Session) sendPositions() {
	if !s.positions.AllowN(s.epoch.Add(s.clock), 1) {
		return
	}
	msg := &protocol.PositionUpdate{}
	for _, id := range s.local {
		a, ok := s.world.Aircraft(id)
		if !ok {
			continue
		}
		msg.Aircraft = append(msg.Aircraft, protocol.AircraftState{
			ID:          id,
			Position:    a.Position(),
			Hitpoints:   a.Hitpoints(),
			MissileAmmo: a.MissileAmmo(),
		})
	}
	if err := s.Send(msg); err != nil {
		s.log.Warnw("send position update failed", "err", err)
	}
}
