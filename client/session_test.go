package client_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skyfront/client"
	"skyfront/protocol"
	"skyfront/world"
)

type fakeKeys map[client.Key]bool

func (k fakeKeys) IsKeyPressed(key client.Key) bool { return k[key] }

// fakeServer 管道另一端：收集客户端发来的消息
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	mu   sync.Mutex
	got  []protocol.ClientMessage
}

func (f *fakeServer) readLoop() {
	for {
		payload, err := protocol.ReadFrame(f.conn)
		if err != nil {
			return
		}
		m, err := protocol.DecodeClient(payload)
		if err != nil {
			continue
		}
		f.mu.Lock()
		f.got = append(f.got, m)
		f.mu.Unlock()
	}
}

func (f *fakeServer) deliver(msgs ...protocol.ServerMessage) {
	for _, m := range msgs {
		require.NoError(f.t, protocol.WriteFrame(f.conn, protocol.EncodeServer(m)))
	}
}

func (f *fakeServer) received(tag protocol.ClientTag) []protocol.ClientMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []protocol.ClientMessage
	for _, m := range f.got {
		if m.ClientTag() == tag {
			out = append(out, m)
		}
	}
	return out
}

func newTestSession(t *testing.T, keys client.KeyState) (*client.Session, *world.World, *fakeServer) {
	t.Helper()
	cliConn, srvConn := net.Pipe()
	srv := &fakeServer{t: t, conn: srvConn}
	go srv.readLoop()

	w := world.New(1024, 768)
	s := client.NewSession(cliConn, w, keys, client.DefaultConfig())
	t.Cleanup(func() {
		_ = srvConn.Close()
		_ = s.Close()
	})
	return s, w, srv
}

// waitFor 以零时长帧推进会话，直到 cond 成立
func waitFor(t *testing.T, s *client.Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.Update(0)
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func drainEvents(s *client.Session) []client.Event {
	var out []client.Event
	for {
		ev, ok := s.PollEvent()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestSessionInitialStateAndSpawnSelf(t *testing.T) {
	s, w, srv := newTestSession(t, fakeKeys{})
	srv.deliver(
		&protocol.InitialState{
			WorldHeight:  5000,
			ScrollOffset: 5000,
			Aircraft: []protocol.AircraftState{
				{ID: 1, Position: protocol.Vec2{X: 300, Y: 4500}, Hitpoints: 50, MissileAmmo: 1},
			},
		},
		&protocol.SpawnSelf{ID: 2, Position: protocol.Vec2{X: 512, Y: 4616}},
	)
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 1 })

	assert.Equal(t, []protocol.AircraftID{2}, s.LocalAircraft())
	remote, ok := s.Player(1)
	require.True(t, ok)
	assert.False(t, remote.IsLocal())

	a, ok := w.Player(1)
	require.True(t, ok)
	assert.Equal(t, int32(50), a.Hitpoints())
	assert.Equal(t, int32(1), a.MissileAmmo())
	assert.Equal(t, protocol.Vec2{X: 300, Y: 4500}, a.Position())
}

func TestSessionInterpolatesRemoteAircraftOnly(t *testing.T) {
	s, w, srv := newTestSession(t, fakeKeys{})
	start := protocol.Vec2{X: 300, Y: 4500}
	self := protocol.Vec2{X: 512, Y: 4616}
	srv.deliver(
		&protocol.InitialState{WorldHeight: 5000, ScrollOffset: 5000},
		&protocol.PlayerConnect{ID: 1, Position: start},
		&protocol.SpawnSelf{ID: 2, Position: self},
	)
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 1 })

	edge := w.LeadingEdge()
	target := protocol.Vec2{X: 400, Y: 4400}
	srv.deliver(&protocol.UpdateClientState{
		ScrollOffset: 4000,
		Aircraft: []protocol.AircraftPosition{
			{ID: 1, Position: target},
			{ID: 2, Position: protocol.Vec2{X: 100, Y: 4300}},
		},
	})
	remote, _ := w.Player(1)
	waitFor(t, s, func() bool { return remote.Position() != start })

	assert.Equal(t, start.Approach(target, client.InterpolationFactor), remote.Position())
	assert.Equal(t, protocol.Vec2{X: 310, Y: 4490}, remote.Position())
	assert.InDelta(t, edge/4000, w.ScrollCompensation(), 1e-6)

	local, _ := w.Player(2)
	assert.Equal(t, self, local.Position())
}

func TestSessionTimeoutAfterSilence(t *testing.T) {
	s, _, _ := newTestSession(t, fakeKeys{})

	for i := 0; i < 21; i++ {
		s.Update(100 * time.Millisecond)
	}
	require.Equal(t, client.StateConnected, s.State())

	s.Update(100 * time.Millisecond)
	require.Equal(t, client.StateDisconnected, s.State())
	var te *client.TimeoutError
	assert.True(t, errors.As(s.Err(), &te))

	events := drainEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, client.EventConnectionLost, events[0].Kind)

	s.Update(5 * time.Second)
	events = drainEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, client.EventReturnToMenu, events[0].Kind)
}

func TestDialFailureReturnsToMenuAfterLinger(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s, err := client.Dial(context.Background(), addr, world.New(1024, 768), fakeKeys{}, client.DefaultConfig())
	require.Error(t, err)
	require.NotNil(t, s)
	var ce *client.ConnectError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, addr, ce.Addr)
	assert.Equal(t, client.StateFailed, s.State())

	s.Update(4 * time.Second)
	events := drainEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, client.EventConnectionLost, events[0].Kind)

	s.Update(time.Second)
	events = drainEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, client.EventReturnToMenu, events[0].Kind)

	s.Update(time.Second)
	assert.Empty(t, drainEvents(s))
}

func TestSessionPositionUpdateCadence(t *testing.T) {
	s, _, srv := newTestSession(t, fakeKeys{})
	srv.deliver(&protocol.SpawnSelf{ID: 7, Position: protocol.Vec2{X: 512, Y: 4616}})
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 1 })
	before := len(srv.received(protocol.ClientPositionUpdate))

	for i := 0; i < 100; i++ {
		s.Update(10 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		return len(srv.received(protocol.ClientPositionUpdate))-before >= 19
	}, time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, len(srv.received(protocol.ClientPositionUpdate))-before, 21)

	ups := srv.received(protocol.ClientPositionUpdate)
	last := ups[len(ups)-1].(*protocol.PositionUpdate)
	require.Len(t, last.Aircraft, 1)
	assert.Equal(t, protocol.AircraftID(7), last.Aircraft[0].ID)
	assert.Equal(t, int32(100), last.Aircraft[0].Hitpoints)
}

func TestSessionDiscreteActionRunsOnEcho(t *testing.T) {
	s, w, srv := newTestSession(t, fakeKeys{})
	srv.deliver(&protocol.SpawnSelf{ID: 4, Position: protocol.Vec2{X: 512, Y: 4616}})
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 1 })

	s.HandleKey(client.KeyEvent{Type: client.KeyPressed, Key: client.KeyM})
	require.Eventually(t, func() bool {
		return len(srv.received(protocol.ClientPlayerEvent)) == 1
	}, time.Second, 5*time.Millisecond)
	ev := srv.received(protocol.ClientPlayerEvent)[0].(*protocol.PlayerEvent)
	assert.Equal(t, protocol.PlayerEvent{ID: 4, Action: protocol.LaunchMissile}, *ev)

	a, _ := w.Player(4)
	s.Update(0)
	assert.Equal(t, int32(2), a.MissileAmmo())

	srv.deliver(&protocol.PlayerEvent{ID: 4, Action: protocol.LaunchMissile})
	waitFor(t, s, func() bool { return a.MissileAmmo() == 1 })
}

func TestSessionRemoteRealtimeChangeMovesMirror(t *testing.T) {
	s, w, srv := newTestSession(t, fakeKeys{})
	start := protocol.Vec2{X: 300, Y: 4500}
	srv.deliver(
		&protocol.PlayerConnect{ID: 3, Position: start},
		&protocol.PlayerRealtimeChange{ID: 3, Action: protocol.MoveRight, Enabled: true},
	)
	waitFor(t, s, func() bool {
		_, ok := s.Player(3)
		return ok
	})
	// 再推进几帧，确保实时变化已被处理
	for i := 0; i < 5; i++ {
		s.Update(0)
		time.Sleep(2 * time.Millisecond)
	}
	s.Update(100 * time.Millisecond)

	a, _ := w.Player(3)
	assert.Greater(t, a.Position().X, start.X)
}

func TestSessionGameOverWhenLocalAircraftDestroyed(t *testing.T) {
	s, w, srv := newTestSession(t, fakeKeys{})
	srv.deliver(&protocol.SpawnSelf{ID: 1, Position: protocol.Vec2{X: 512, Y: 4616}})
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 1 })

	a, _ := w.Player(1)
	a.Damage(a.Hitpoints())
	s.Update(0)

	var kinds []client.EventKind
	for _, ev := range drainEvents(s) {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, client.EventGameOver)
	assert.Empty(t, s.LocalAircraft())

	s.Update(0)
	assert.NotContains(t, drainEvents(s), client.Event{Kind: client.EventGameOver})
}

func TestSessionReportsDestroyedLocalAircraft(t *testing.T) {
	s, w, srv := newTestSession(t, fakeKeys{})
	srv.deliver(
		&protocol.SpawnSelf{ID: 1, Position: protocol.Vec2{X: 512, Y: 4616}},
		&protocol.PlayerConnect{ID: 2, Position: protocol.Vec2{X: 300, Y: 4500}},
	)
	waitFor(t, s, func() bool {
		_, ok := s.Player(2)
		return ok && len(s.LocalAircraft()) == 1
	})

	a, _ := w.Player(1)
	a.Damage(a.Hitpoints())
	remote, _ := w.Player(2)
	remote.Damage(remote.Hitpoints())
	for i := 0; i < 20; i++ {
		s.Update(10 * time.Millisecond)
	}

	reported := map[protocol.AircraftID]int32{}
	require.Eventually(t, func() bool {
		for _, m := range srv.received(protocol.ClientPositionUpdate) {
			for _, st := range m.(*protocol.PositionUpdate).Aircraft {
				if st.Hitpoints <= 0 {
					reported[st.ID] = st.Hitpoints
				}
			}
		}
		return len(reported) > 0
	}, time.Second, 2*time.Millisecond)

	assert.Contains(t, reported, protocol.AircraftID(1))
	// 远端飞机由其所属客户端上报
	assert.NotContains(t, reported, protocol.AircraftID(2))
}

func TestSessionBroadcastQueue(t *testing.T) {
	s, _, srv := newTestSession(t, fakeKeys{})
	srv.deliver(&protocol.BroadcastMessage{Text: "New player!"})
	waitFor(t, s, func() bool {
		_, ok := s.CurrentBroadcast()
		return ok
	})
	text, _ := s.CurrentBroadcast()
	assert.Equal(t, "New player!", text)
	assert.Equal(t, []client.Event{{Kind: client.EventBroadcast, Text: "New player!"}}, drainEvents(s))

	s.Update(2500 * time.Millisecond)
	_, ok := s.CurrentBroadcast()
	assert.False(t, ok)
}

func TestSessionDiscardsMalformedPacket(t *testing.T) {
	s, _, srv := newTestSession(t, fakeKeys{})
	require.NoError(t, protocol.WriteFrame(srv.conn, []byte{0, 0, 0, 99}))
	srv.deliver(&protocol.BroadcastMessage{Text: "still here"})

	waitFor(t, s, func() bool {
		_, ok := s.CurrentBroadcast()
		return ok
	})
	assert.Equal(t, int64(1), s.Malformed())
	assert.Equal(t, client.StateConnected, s.State())
}

func TestSessionEnterRequestsCoopPartnerOnce(t *testing.T) {
	s, _, srv := newTestSession(t, fakeKeys{})
	srv.deliver(&protocol.SpawnSelf{ID: 1, Position: protocol.Vec2{X: 512, Y: 4616}})
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 1 })

	s.HandleKey(client.KeyEvent{Type: client.KeyPressed, Key: client.KeyEnter})
	require.Eventually(t, func() bool {
		return len(srv.received(protocol.ClientRequestCoopPartner)) == 1
	}, time.Second, 5*time.Millisecond)

	srv.deliver(&protocol.AcceptCoopPartner{ID: 2, Position: protocol.Vec2{X: 512, Y: 4616}})
	waitFor(t, s, func() bool { return len(s.LocalAircraft()) == 2 })

	s.HandleKey(client.KeyEvent{Type: client.KeyPressed, Key: client.KeyEnter})
	s.Update(0)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, srv.received(protocol.ClientRequestCoopPartner), 1)
}

func TestSessionCloseSendsQuit(t *testing.T) {
	s, _, srv := newTestSession(t, fakeKeys{})
	require.NoError(t, s.Close())
	require.Eventually(t, func() bool {
		return len(srv.received(protocol.ClientQuit)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Send(&protocol.Quit{}), client.ErrClosed)
}
