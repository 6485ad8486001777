package protocol

// ServerMessage 服务端 -> 客户端消息（封闭集合，仅本包类型实现）
type ServerMessage interface {
	ServerTag() ServerTag
	encode(w *writer)
	decode(r *reader)
}

// ClientMessage 客户端 -> 服务端消息
type ClientMessage interface {
	ClientTag() ClientTag
	encode(w *writer)
	decode(r *reader)
}

// AircraftState 飞机完整状态（InitialState / PositionUpdate 条目）
type AircraftState struct {
	ID          AircraftID
	Position    Vec2
	Hitpoints   int32
	MissileAmmo int32
}

// AircraftPosition 飞机位置（UpdateClientState 条目）
type AircraftPosition struct {
	ID       AircraftID
	Position Vec2
}

// BroadcastMessage 广播给所有玩家的文本
type BroadcastMessage struct {
	Text string
}

// SpawnSelf 命令新连接的客户端生成自己的飞机
type SpawnSelf struct {
	ID       AircraftID
	Position Vec2
}

// InitialState 新连接时的世界快照
type InitialState struct {
	WorldHeight  float32
	ScrollOffset float32
	Aircraft     []AircraftState
}

// PlayerEvent 一次性动作（双向）
type PlayerEvent struct {
	ID     AircraftID
	Action Action
}

// PlayerRealtimeChange 实时动作按下/松开（双向）
type PlayerRealtimeChange struct {
	ID      AircraftID
	Action  Action
	Enabled bool
}

// PlayerConnect 其他玩家的飞机加入
type PlayerConnect struct {
	ID       AircraftID
	Position Vec2
}

// PlayerDisconnect 飞机随其玩家离开
type PlayerDisconnect struct {
	ID AircraftID
}

// AcceptCoopPartner 同意请求方控制第二架飞机
type AcceptCoopPartner struct {
	ID       AircraftID
	Position Vec2
}

// SpawnEnemy 敌机生成：Height 为相对出生点的高度，RelativeX 为相对水平中心的偏移
type SpawnEnemy struct {
	Type      int32
	Height    float32
	RelativeX float32
}

// SpawnPickup 道具生成
type SpawnPickup struct {
	Type     int32
	Position Vec2
}

// UpdateClientState 周期性权威状态
type UpdateClientState struct {
	ScrollOffset float32
	Aircraft     []AircraftPosition
}

// MissionSuccess 所有飞机抵达终点
type MissionSuccess struct{}

// RequestCoopPartner 请求第二架本地飞机
type RequestCoopPartner struct{}

// PositionUpdate 客户端上报自己飞机的位置/血量/弹药
type PositionUpdate struct {
	Aircraft []AircraftState
}

// GameEvent 客户端观察到的游戏事件（如敌机爆炸）
type GameEvent struct {
	Kind     GameActionType
	Position Vec2
}

// Quit 客户端主动退出
type Quit struct{}

func (*BroadcastMessage) ServerTag() ServerTag     { return ServerBroadcastMessage }
func (*SpawnSelf) ServerTag() ServerTag            { return ServerSpawnSelf }
func (*InitialState) ServerTag() ServerTag         { return ServerInitialState }
func (*PlayerEvent) ServerTag() ServerTag          { return ServerPlayerEvent }
func (*PlayerRealtimeChange) ServerTag() ServerTag { return ServerPlayerRealtimeChange }
func (*PlayerConnect) ServerTag() ServerTag        { return ServerPlayerConnect }
func (*PlayerDisconnect) ServerTag() ServerTag     { return ServerPlayerDisconnect }
func (*AcceptCoopPartner) ServerTag() ServerTag    { return ServerAcceptCoopPartner }
func (*SpawnEnemy) ServerTag() ServerTag           { return ServerSpawnEnemy }
func (*SpawnPickup) ServerTag() ServerTag          { return ServerSpawnPickup }
func (*UpdateClientState) ServerTag() ServerTag    { return ServerUpdateClientState }
func (*MissionSuccess) ServerTag() ServerTag       { return ServerMissionSuccess }

func (*PlayerEvent) ClientTag() ClientTag          { return ClientPlayerEvent }
func (*PlayerRealtimeChange) ClientTag() ClientTag { return ClientPlayerRealtimeChange }
func (*RequestCoopPartner) ClientTag() ClientTag   { return ClientRequestCoopPartner }
func (*PositionUpdate) ClientTag() ClientTag       { return ClientPositionUpdate }
func (*GameEvent) ClientTag() ClientTag            { return ClientGameEvent }
func (*Quit) ClientTag() ClientTag                 { return ClientQuit }

func (m *BroadcastMessage) encode(w *writer) { w.string(m.Text) }
func (m *BroadcastMessage) decode(r *reader) { m.Text = r.string() }

func (m *SpawnSelf) encode(w *writer) { w.int32(int32(m.ID)); w.vec2(m.Position) }
func (m *SpawnSelf) decode(r *reader) { m.ID = AircraftID(r.int32()); m.Position = r.vec2() }

func (m *InitialState) encode(w *writer) {
	w.float32(m.WorldHeight)
	w.float32(m.ScrollOffset)
	w.int32(int32(len(m.Aircraft)))
	for _, a := range m.Aircraft {
		w.aircraftState(a)
	}
}

func (m *InitialState) decode(r *reader) {
	m.WorldHeight = r.float32()
	m.ScrollOffset = r.float32()
	n := r.count(aircraftStateSize)
	m.Aircraft = make([]AircraftState, 0, n)
	for i := 0; i < n; i++ {
		m.Aircraft = append(m.Aircraft, r.aircraftState())
	}
}

func (m *PlayerEvent) encode(w *writer) { w.int32(int32(m.ID)); w.int32(int32(m.Action)) }
func (m *PlayerEvent) decode(r *reader) { m.ID = AircraftID(r.int32()); m.Action = Action(r.int32()) }

func (m *PlayerRealtimeChange) encode(w *writer) {
	w.int32(int32(m.ID))
	w.int32(int32(m.Action))
	w.bool(m.Enabled)
}

func (m *PlayerRealtimeChange) decode(r *reader) {
	m.ID = AircraftID(r.int32())
	m.Action = Action(r.int32())
	m.Enabled = r.bool()
}

func (m *PlayerConnect) encode(w *writer) { w.int32(int32(m.ID)); w.vec2(m.Position) }
func (m *PlayerConnect) decode(r *reader) { m.ID = AircraftID(r.int32()); m.Position = r.vec2() }

func (m *PlayerDisconnect) encode(w *writer) { w.int32(int32(m.ID)) }
func (m *PlayerDisconnect) decode(r *reader) { m.ID = AircraftID(r.int32()) }

func (m *AcceptCoopPartner) encode(w *writer) { w.int32(int32(m.ID)); w.vec2(m.Position) }
func (m *AcceptCoopPartner) decode(r *reader) { m.ID = AircraftID(r.int32()); m.Position = r.vec2() }

func (m *SpawnEnemy) encode(w *writer) {
	w.int32(m.Type)
	w.float32(m.Height)
	w.float32(m.RelativeX)
}

func (m *SpawnEnemy) decode(r *reader) {
	m.Type = r.int32()
	m.Height = r.float32()
	m.RelativeX = r.float32()
}

func (m *SpawnPickup) encode(w *writer) { w.int32(m.Type); w.vec2(m.Position) }
func (m *SpawnPickup) decode(r *reader) { m.Type = r.int32(); m.Position = r.vec2() }

func (m *UpdateClientState) encode(w *writer) {
	w.float32(m.ScrollOffset)
	w.int32(int32(len(m.Aircraft)))
	for _, a := range m.Aircraft {
		w.int32(int32(a.ID))
		w.vec2(a.Position)
	}
}

func (m *UpdateClientState) decode(r *reader) {
	m.ScrollOffset = r.float32()
	n := r.count(aircraftPositionSize)
	m.Aircraft = make([]AircraftPosition, 0, n)
	for i := 0; i < n; i++ {
		m.Aircraft = append(m.Aircraft, AircraftPosition{ID: AircraftID(r.int32()), Position: r.vec2()})
	}
}

func (*MissionSuccess) encode(*writer) {}
func (*MissionSuccess) decode(*reader) {}

func (*RequestCoopPartner) encode(*writer) {}
func (*RequestCoopPartner) decode(*reader) {}

func (m *PositionUpdate) encode(w *writer) {
	w.int32(int32(len(m.Aircraft)))
	for _, a := range m.Aircraft {
		w.aircraftState(a)
	}
}

func (m *PositionUpdate) decode(r *reader) {
	n := r.count(aircraftStateSize)
	m.Aircraft = make([]AircraftState, 0, n)
	for i := 0; i < n; i++ {
		m.Aircraft = append(m.Aircraft, r.aircraftState())
	}
}

func (m *GameEvent) encode(w *writer) { w.int32(int32(m.Kind)); w.vec2(m.Position) }
func (m *GameEvent) decode(r *reader) { m.Kind = GameActionType(r.int32()); m.Position = r.vec2() }

func (*Quit) encode(*writer) {}
func (*Quit) decode(*reader) {}
