package protocol

import (
	"encoding/binary"
	"math"
)

const (
	aircraftStateSize    = 4 + 8 + 4 + 4
	aircraftPositionSize = 4 + 8
)

// writer 顺序写入大端字段，无填充
type writer struct {
	buf []byte
}

func (w *writer) int32(v int32) { w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v)) }

func (w *writer) float32(v float32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, math.Float32bits(v))
}

func (w *writer) bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) string(s string) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) vec2(v Vec2) { w.float32(v.X); w.float32(v.Y) }

func (w *writer) aircraftState(a AircraftState) {
	w.int32(int32(a.ID))
	w.vec2(a.Position)
	w.int32(a.Hitpoints)
	w.int32(a.MissileAmmo)
}

// reader 顺序读取字段；首次出错后所有读取返回零值，由调用方最后检查 err
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrTruncated
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *reader) float32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func (r *reader) bool() bool {
	b := r.take(1)
	if b == nil {
		return false
	}
	return b[0] != 0
}

func (r *reader) string() string {
	b := r.take(4)
	if b == nil {
		return ""
	}
	n := binary.BigEndian.Uint32(b)
	if uint64(n) > uint64(len(r.buf)-r.off) {
		r.err = ErrTruncated
		return ""
	}
	return string(r.take(int(n)))
}

func (r *reader) vec2() Vec2 { return Vec2{X: r.float32(), Y: r.float32()} }

func (r *reader) aircraftState() AircraftState {
	return AircraftState{
		ID:          AircraftID(r.int32()),
		Position:    r.vec2(),
		Hitpoints:   r.int32(),
		MissileAmmo: r.int32(),
	}
}

// count 读取元素个数，并按每个元素的字节数校验剩余长度，避免恶意计数导致的大分配
func (r *reader) count(elemSize int) int {
	n := r.int32()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.err = ErrBadCount
		return 0
	}
	if int64(n)*int64(elemSize) > int64(len(r.buf)-r.off) {
		r.err = ErrTruncated
		return 0
	}
	return int(n)
}

func (r *reader) finish() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return ErrTrailingBytes
	}
	return nil
}

// EncodeServer 编码服务端消息：[int32 tag][fields...]
func EncodeServer(m ServerMessage) []byte {
	w := writer{buf: make([]byte, 0, 64)}
	w.int32(int32(m.ServerTag()))
	m.encode(&w)
	return w.buf
}

// EncodeClient 编码客户端消息
func EncodeClient(m ClientMessage) []byte {
	w := writer{buf: make([]byte, 0, 64)}
	w.int32(int32(m.ClientTag()))
	m.encode(&w)
	return w.buf
}

func newServerMessage(t ServerTag) ServerMessage {
	switch t {
	case ServerBroadcastMessage:
		return &BroadcastMessage{}
	case ServerSpawnSelf:
		return &SpawnSelf{}
	case ServerInitialState:
		return &InitialState{}
	case ServerPlayerEvent:
		return &PlayerEvent{}
	case ServerPlayerRealtimeChange:
		return &PlayerRealtimeChange{}
	case ServerPlayerConnect:
		return &PlayerConnect{}
	case ServerPlayerDisconnect:
		return &PlayerDisconnect{}
	case ServerAcceptCoopPartner:
		return &AcceptCoopPartner{}
	case ServerSpawnEnemy:
		return &SpawnEnemy{}
	case ServerSpawnPickup:
		return &SpawnPickup{}
	case ServerUpdateClientState:
		return &UpdateClientState{}
	case ServerMissionSuccess:
		return &MissionSuccess{}
	}
	return nil
}

func newClientMessage(t ClientTag) ClientMessage {
	switch t {
	case ClientPlayerEvent:
		return &PlayerEvent{}
	case ClientPlayerRealtimeChange:
		return &PlayerRealtimeChange{}
	case ClientRequestCoopPartner:
		return &RequestCoopPartner{}
	case ClientPositionUpdate:
		return &PositionUpdate{}
	case ClientGameEvent:
		return &GameEvent{}
	case ClientQuit:
		return &Quit{}
	}
	return nil
}

// DecodeServer 解码服务端消息，失败返回 *ProtocolError
func DecodeServer(payload []byte) (ServerMessage, error) {
	r := reader{buf: payload}
	tag := r.int32()
	if r.err != nil {
		return nil, &ProtocolError{Op: "decode server", Tag: -1, Err: r.err}
	}
	m := newServerMessage(ServerTag(tag))
	if m == nil {
		return nil, &ProtocolError{Op: "decode server", Tag: tag, Err: ErrUnknownTag}
	}
	m.decode(&r)
	if err := r.finish(); err != nil {
		return nil, &ProtocolError{Op: "decode server", Tag: tag, Err: err}
	}
	return m, nil
}

// DecodeClient 解码客户端消息，失败返回 *ProtocolError
func DecodeClient(payload []byte) (ClientMessage, error) {
	r := reader{buf: payload}
	tag := r.int32()
	if r.err != nil {
		return nil, &ProtocolError{Op: "decode client", Tag: -1, Err: r.err}
	}
	m := newClientMessage(ClientTag(tag))
	if m == nil {
		return nil, &ProtocolError{Op: "decode client", Tag: tag, Err: ErrUnknownTag}
	}
	m.decode(&r)
	if err := r.finish(); err != nil {
		return nil, &ProtocolError{Op: "decode client", Tag: tag, Err: err}
	}
	return m, nil
}
