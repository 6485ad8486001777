package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionUpdateRoundTrip(t *testing.T) {
	in := &PositionUpdate{Aircraft: []AircraftState{
		{ID: 1, Position: Vec2{X: 512, Y: 4616.5}, Hitpoints: 100, MissileAmmo: 2},
		{ID: 7, Position: Vec2{X: -3.25, Y: 0}, Hitpoints: 40, MissileAmmo: 0},
	}}

	out, err := DecodeClient(EncodeClient(in))
	require.NoError(t, err)

	got, ok := out.(*PositionUpdate)
	require.True(t, ok, "decoded %T", out)
	require.Len(t, got.Aircraft, 2)
	for i := range in.Aircraft {
		assert.Equal(t, in.Aircraft[i], got.Aircraft[i])
	}
}

func TestPositionUpdateLayout(t *testing.T) {
	b := EncodeClient(&PositionUpdate{Aircraft: []AircraftState{{ID: 1, Hitpoints: 100, MissileAmmo: 2}}})
	// tag + count + (id, x, y, hp, ammo)
	require.Len(t, b, 4+4+aircraftStateSize)
	assert.Equal(t, []byte{0, 0, 0, 3}, b[0:4])
	assert.Equal(t, []byte{0, 0, 0, 1}, b[4:8])
	assert.Equal(t, []byte{0, 0, 0, 1}, b[8:12])
}

func TestServerMessagesRoundTrip(t *testing.T) {
	msgs := []ServerMessage{
		&BroadcastMessage{Text: "New player!"},
		&SpawnSelf{ID: 3, Position: Vec2{X: 512, Y: 4616}},
		&InitialState{WorldHeight: 5000, ScrollOffset: 4800, Aircraft: []AircraftState{{ID: 1, Position: Vec2{X: 1, Y: 2}, Hitpoints: 90, MissileAmmo: 1}}},
		&PlayerEvent{ID: 2, Action: LaunchMissile},
		&PlayerRealtimeChange{ID: 2, Action: Fire, Enabled: true},
		&PlayerConnect{ID: 4, Position: Vec2{X: 5, Y: 6}},
		&PlayerDisconnect{ID: 4},
		&AcceptCoopPartner{ID: 5, Position: Vec2{X: 7, Y: 8}},
		&SpawnEnemy{Type: 2, Height: 700, RelativeX: -120},
		&SpawnPickup{Type: 1, Position: Vec2{X: 9, Y: 10}},
		&UpdateClientState{ScrollOffset: 4700, Aircraft: []AircraftPosition{{ID: 1, Position: Vec2{X: 11, Y: 12}}}},
		&MissionSuccess{},
	}
	for _, m := range msgs {
		t.Run(m.ServerTag().String(), func(t *testing.T) {
			out, err := DecodeServer(EncodeServer(m))
			require.NoError(t, err)
			assert.Equal(t, m, out)
		})
	}
}

func TestClientMessagesRoundTrip(t *testing.T) {
	msgs := []ClientMessage{
		&PlayerEvent{ID: 1, Action: LaunchMissile},
		&PlayerRealtimeChange{ID: 1, Action: MoveLeft, Enabled: false},
		&RequestCoopPartner{},
		&GameEvent{Kind: EnemyExplode, Position: Vec2{X: 100, Y: 200}},
		&Quit{},
	}
	for _, m := range msgs {
		t.Run(m.ClientTag().String(), func(t *testing.T) {
			out, err := DecodeClient(EncodeClient(m))
			require.NoError(t, err)
			assert.Equal(t, m, out)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	full := EncodeClient(&PositionUpdate{Aircraft: []AircraftState{{ID: 1}, {ID: 2}}})

	cases := map[string]struct {
		payload []byte
		want    error
	}{
		"empty":          {payload: nil, want: ErrTruncated},
		"truncated":      {payload: full[:len(full)-3], want: ErrTruncated},
		"unknown tag":    {payload: []byte{0, 0, 0, 99}, want: ErrUnknownTag},
		"trailing bytes": {payload: append(append([]byte{}, full...), 0xff), want: ErrTrailingBytes},
		"negative count": {payload: []byte{0, 0, 0, 3, 0xff, 0xff, 0xff, 0xff}, want: ErrBadCount},
		"huge count":     {payload: []byte{0, 0, 0, 3, 0x7f, 0xff, 0xff, 0xff}, want: ErrTruncated},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClient(tc.payload)
			require.Error(t, err)
			assert.True(t, IsProtocolError(err))
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestDecodeServerRejectsClientOnlyTag(t *testing.T) {
	// 服务端 tag 11 之后没有定义
	_, err := DecodeServer([]byte{0, 0, 0, 12})
	assert.True(t, errors.Is(err, ErrUnknownTag))
}

func TestStringLengthBeyondPayload(t *testing.T) {
	payload := []byte{0, 0, 0, 0, 0, 0, 0, 10, 'h', 'i'}
	_, err := DecodeServer(payload)
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	first := EncodeServer(&BroadcastMessage{Text: "hello"})
	second := EncodeServer(&MissionSuccess{})
	require.NoError(t, WriteFrame(&buf, first))
	require.NoError(t, WriteFrame(&buf, second))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = ReadFrame(&buf)
	assert.Error(t, err)
	assert.False(t, IsProtocolError(err))
}

func TestFrameTooLarge(t *testing.T) {
	r := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	_, err := ReadFrame(r)
	assert.True(t, IsProtocolError(err))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))

	err = WriteFrame(&bytes.Buffer{}, make([]byte, MaxFrameSize+1))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestApproach(t *testing.T) {
	points := [][2]Vec2{
		{{X: 0, Y: 0}, {X: 10, Y: -10}},
		{{X: 512.5, Y: 4616.25}, {X: 498.125, Y: 4601}},
		{{X: -1e6, Y: 3.3}, {X: 1e6, Y: -7.7}},
	}
	for _, pq := range points {
		p, q := pq[0], pq[1]
		got := p.Approach(q, 0.1)
		wantX := p.X + float32(float32(0.1)*(q.X-p.X))
		wantY := p.Y + float32(float32(0.1)*(q.Y-p.Y))
		assert.Equal(t, wantX, got.X)
		assert.Equal(t, wantY, got.Y)
	}
}

func TestIsRealtime(t *testing.T) {
	for _, a := range []Action{MoveLeft, MoveRight, MoveUp, MoveDown, Fire} {
		assert.True(t, IsRealtime(a), a.String())
	}
	assert.False(t, IsRealtime(LaunchMissile))
}
